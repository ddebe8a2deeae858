package auth

import (
	"github.com/zurustar/gb28181registrar/internal/sipaccount"
)

// RegistrarAuthenticator adapts a DigestAuthenticator into the registrar
// worker's Authenticate contract: given an Authorization header (possibly
// empty) and the account the request claims to be, decide between
// accepting, challenging, or rejecting.
type RegistrarAuthenticator struct {
	digest DigestAuthenticator
	realm  string
}

// NewRegistrarAuthenticator wraps digest with the realm used to mint
// WWW-Authenticate challenges.
func NewRegistrarAuthenticator(digest DigestAuthenticator, realm string) *RegistrarAuthenticator {
	return &RegistrarAuthenticator{digest: digest, realm: realm}
}

// Authenticate implements Authenticator.
//
// - no Authorization header → ChallengeRequired, with a fresh challenge.
// - header present but its username doesn't match the account → Rejected.
// - header present but nonce/response invalid or expired → ChallengeRequired,
//   with a fresh challenge (the stale nonce is not reusable).
// - header present and valid → Accepted.
func (a *RegistrarAuthenticator) Authenticate(authHeader, method string, account *sipaccount.Account) (Decision, string, error) {
	if authHeader == "" {
		challenge, err := a.digest.GenerateChallenge(a.realm)
		if err != nil {
			return ChallengeRequired, "", err
		}
		return ChallengeRequired, challenge, nil
	}

	creds, err := a.digest.ParseAuthorizationHeader(authHeader)
	if err != nil {
		challenge, cerr := a.digest.GenerateChallenge(a.realm)
		if cerr != nil {
			return ChallengeRequired, "", cerr
		}
		return ChallengeRequired, challenge, nil
	}

	if creds.Username != account.Username {
		return Rejected, "", nil
	}

	valid, verr := a.digest.ValidateCredentials(authHeader, method, account)
	if !valid || verr != nil {
		challenge, cerr := a.digest.GenerateChallenge(a.realm)
		if cerr != nil {
			return ChallengeRequired, "", cerr
		}
		return ChallengeRequired, challenge, nil
	}

	return Accepted, "", nil
}
