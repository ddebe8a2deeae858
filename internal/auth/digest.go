package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zurustar/gb28181registrar/internal/sipaccount"
)

// SIPDigestAuthenticator implements RFC2617 digest authentication for the
// registrar's REGISTER/OPTIONS surface: MD5 challenge-response with an
// account's stored password hash standing in for HA1.
type SIPDigestAuthenticator struct {
	nonceStore NonceStore
}

// NewSIPDigestAuthenticator creates a digest authenticator backed by an
// in-memory nonce store whose entries expire after nonceTTL.
func NewSIPDigestAuthenticator(nonceTTL time.Duration) *SIPDigestAuthenticator {
	return &SIPDigestAuthenticator{
		nonceStore: NewMemoryNonceStore(nonceTTL),
	}
}

// NewSIPDigestAuthenticatorWithStore creates a digest authenticator against
// a caller-supplied nonce store, used by tests that need deterministic or
// pre-expired nonces.
func NewSIPDigestAuthenticatorWithStore(store NonceStore) *SIPDigestAuthenticator {
	return &SIPDigestAuthenticator{
		nonceStore: store,
	}
}

// GenerateChallenge creates a WWW-Authenticate header value for the given
// realm, minting and recording a fresh nonce.
func (d *SIPDigestAuthenticator) GenerateChallenge(realm string) (string, error) {
	nonce, err := d.GenerateNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	if err := d.nonceStore.StoreNonce(nonce); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}

	opaque, err := d.generateOpaque()
	if err != nil {
		return "", fmt.Errorf("failed to generate opaque: %w", err)
	}

	challenge := fmt.Sprintf(`Digest realm="%s", nonce="%s", opaque="%s", algorithm=MD5, qop="auth"`,
		realm, nonce, opaque)

	return challenge, nil
}

// ValidateCredentials validates a REGISTER's Authorization header against
// the account record it claims to register for.
func (d *SIPDigestAuthenticator) ValidateCredentials(authHeader string, method string, account *sipaccount.Account) (bool, error) {
	creds, err := d.ParseAuthorizationHeader(authHeader)
	if err != nil {
		return false, fmt.Errorf("failed to parse authorization header: %w", err)
	}

	if !d.ValidateNonce(creds.Nonce) {
		return false, fmt.Errorf("invalid or expired nonce")
	}

	if creds.Username != account.Username || creds.Realm != account.Realm {
		return false, fmt.Errorf("username or realm mismatch")
	}

	expectedResponse := d.calculateDigestResponse(creds, method, account.PasswordHash)
	if creds.Response != expectedResponse {
		return false, fmt.Errorf("invalid credentials")
	}

	return true, nil
}

// digestParamOrder lists the comma-separated Authorization parameters this
// registrar reads, in the order a compliant device is expected to send
// them; unrecognized parameters are ignored rather than rejected, since
// GB28181 devices are known to append vendor-specific ones.
var digestParamOrder = []string{
	"username", "realm", "nonce", "uri", "response",
	"algorithm", "opaque", "qop", "nc", "cnonce",
}

// ParseAuthorizationHeader splits a "Digest ..." Authorization value into
// its named parameters. Parameters are comma-separated name=value pairs,
// values optionally quoted, mirroring how the registrar's own header
// parameters (Via/Contact/To tag=, branch=) are read elsewhere in this
// tree rather than reaching for a regex per field.
func (d *SIPDigestAuthenticator) ParseAuthorizationHeader(authHeader string) (*DigestCredentials, error) {
	if !strings.HasPrefix(authHeader, "Digest ") {
		return nil, fmt.Errorf("not a digest authorization header")
	}

	params := parseDigestParams(strings.TrimPrefix(authHeader, "Digest "))

	creds := &DigestCredentials{
		Username:  params["username"],
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		URI:       params["uri"],
		Response:  params["response"],
		Algorithm: params["algorithm"],
		Opaque:    params["opaque"],
		QOP:       params["qop"],
		NC:        params["nc"],
		CNonce:    params["cnonce"],
	}

	switch {
	case creds.Username == "":
		return nil, fmt.Errorf("missing username in authorization header")
	case creds.Realm == "":
		return nil, fmt.Errorf("missing realm in authorization header")
	case creds.Nonce == "":
		return nil, fmt.Errorf("missing nonce in authorization header")
	case creds.URI == "":
		return nil, fmt.Errorf("missing uri in authorization header")
	case creds.Response == "":
		return nil, fmt.Errorf("missing response in authorization header")
	}

	if creds.Algorithm == "" {
		creds.Algorithm = "MD5"
	}

	return creds, nil
}

// parseDigestParams splits a comma-separated list of name=value or
// name="value" pairs into a lookup keyed by parameter name. Commas inside
// quoted values are preserved by tracking quote state rather than doing a
// blind strings.Split(",").
func parseDigestParams(digestPart string) map[string]string {
	params := make(map[string]string, len(digestParamOrder))

	var field strings.Builder
	inQuotes := false
	flush := func() {
		part := strings.TrimSpace(field.String())
		field.Reset()
		if part == "" {
			return
		}
		eq := strings.Index(part, "=")
		if eq == -1 {
			return
		}
		name := strings.TrimSpace(part[:eq])
		value := strings.TrimSpace(part[eq+1:])
		value = strings.Trim(value, `"`)
		params[name] = value
	}

	for _, r := range digestPart {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			field.WriteRune(r)
		case r == ',' && !inQuotes:
			flush()
		default:
			field.WriteRune(r)
		}
	}
	flush()

	return params
}

// GenerateNonce creates a nonce value combining random bytes with the
// current time, so two challenges issued in the same instant never
// collide even under concurrent registrations.
func (d *SIPDigestAuthenticator) GenerateNonce() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	timestamp := time.Now().Unix()
	nonceData := fmt.Sprintf("%x:%d", bytes, timestamp)

	hash := md5.Sum([]byte(nonceData))
	return hex.EncodeToString(hash[:]), nil
}

// ValidateNonce reports whether nonce was issued by this authenticator and
// has not yet expired.
func (d *SIPDigestAuthenticator) ValidateNonce(nonce string) bool {
	return d.nonceStore.ValidateNonce(nonce)
}

// calculateDigestResponse computes the RFC2617 response digest. The
// account's stored PasswordHash is MD5(username:realm:password) already,
// so it stands in directly for HA1.
func (d *SIPDigestAuthenticator) calculateDigestResponse(creds *DigestCredentials, method string, passwordHash string) string {
	ha1 := passwordHash

	ha2Data := fmt.Sprintf("%s:%s", method, creds.URI)
	ha2Hash := md5.Sum([]byte(ha2Data))
	ha2 := hex.EncodeToString(ha2Hash[:])

	var responseData string
	if creds.QOP == "auth" || creds.QOP == "auth-int" {
		responseData = fmt.Sprintf("%s:%s:%s:%s:%s:%s",
			ha1, creds.Nonce, creds.NC, creds.CNonce, creds.QOP, ha2)
	} else {
		responseData = fmt.Sprintf("%s:%s:%s", ha1, creds.Nonce, ha2)
	}

	responseHash := md5.Sum([]byte(responseData))
	return hex.EncodeToString(responseHash[:])
}

// generateOpaque produces the opaque token echoed in the WWW-Authenticate
// challenge and, per RFC2617, expected back unchanged on retry.
func (d *SIPDigestAuthenticator) generateOpaque() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// MemoryNonceStore tracks issued nonces and their expiry in memory. A
// single-process registrar has no need for a shared/distributed nonce
// store: every REGISTER a device retries lands on the same instance.
type MemoryNonceStore struct {
	nonces map[string]time.Time
	mutex  sync.RWMutex
	ttl    time.Duration
}

// NewMemoryNonceStore creates a nonce store whose entries expire ttl after
// being issued.
func NewMemoryNonceStore(ttl time.Duration) *MemoryNonceStore {
	store := &MemoryNonceStore{
		nonces: make(map[string]time.Time),
		ttl:    ttl,
	}

	go store.cleanupLoop()

	return store
}

// StoreNonce records nonce with an expiry ttl from now.
func (s *MemoryNonceStore) StoreNonce(nonce string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nonces[nonce] = time.Now().Add(s.ttl)
	return nil
}

// ValidateNonce reports whether nonce is known and not yet expired.
func (s *MemoryNonceStore) ValidateNonce(nonce string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	expiry, exists := s.nonces[nonce]
	if !exists {
		return false
	}

	return time.Now().Before(expiry)
}

// CleanupExpired removes nonces past their expiry.
func (s *MemoryNonceStore) CleanupExpired() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for nonce, expiry := range s.nonces {
		if now.After(expiry) {
			delete(s.nonces, nonce)
		}
	}
}

// cleanupLoop periodically sweeps expired nonces so a long-running
// registrar's nonce map doesn't grow unbounded under sustained traffic.
func (s *MemoryNonceStore) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.CleanupExpired()
	}
}
