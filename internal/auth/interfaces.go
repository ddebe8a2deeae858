package auth

import (
	"github.com/zurustar/gb28181registrar/internal/sipaccount"
)

// DigestAuthenticator defines the interface for SIP digest authentication
type DigestAuthenticator interface {
	// GenerateChallenge creates a WWW-Authenticate header value for digest authentication
	GenerateChallenge(realm string) (string, error)

	// ValidateCredentials validates Authorization header credentials against an account record
	ValidateCredentials(authHeader string, method string, account *sipaccount.Account) (bool, error)

	// ParseAuthorizationHeader parses an Authorization header and returns digest parameters
	ParseAuthorizationHeader(authHeader string) (*DigestCredentials, error)

	// GenerateNonce creates a new nonce value for authentication challenges
	GenerateNonce() (string, error)

	// ValidateNonce checks if a nonce is valid and not expired
	ValidateNonce(nonce string) bool
}

// DigestCredentials represents parsed digest authentication credentials
type DigestCredentials struct {
	Username  string
	Realm     string
	Nonce     string
	URI       string
	Response  string
	Algorithm string
	Opaque    string
	QOP       string
	NC        string
	CNonce    string
}

// NonceStore defines the interface for storing and validating nonces
type NonceStore interface {
	// StoreNonce stores a nonce with expiration time
	StoreNonce(nonce string) error

	// ValidateNonce checks if a nonce exists and is not expired
	ValidateNonce(nonce string) bool

	// CleanupExpired removes expired nonces
	CleanupExpired()
}

// Decision is the outcome of authenticating one REGISTER request against
// the digest collaborator, matching the registrar's {reject, challenge,
// accept} tri-state.
type Decision int

const (
	// Accepted means the request carried valid credentials (or
	// authentication is disabled) and registration processing may continue.
	Accepted Decision = iota
	// ChallengeRequired means the request lacked credentials, or its
	// credentials were invalid/expired; a fresh 401 challenge should be sent.
	ChallengeRequired
	// Rejected means the credentials named an identity that does not match
	// the account being registered; a 403 should be sent.
	Rejected
)

// Authenticator is the registrar worker's authentication collaborator: it
// decides, for one REGISTER request and the account it claims to be, what
// SIP-level outcome results.
type Authenticator interface {
	// Authenticate inspects authHeader (the request's Authorization header
	// value, empty if absent) against account and returns a Decision plus,
	// when a challenge is required, the WWW-Authenticate header value to send.
	Authenticate(authHeader, method string, account *sipaccount.Account) (Decision, string, error)
}
