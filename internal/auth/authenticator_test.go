package auth

import (
	"crypto/md5"
	"fmt"
	"testing"
	"time"

	"github.com/zurustar/gb28181registrar/internal/sipaccount"
)

func TestRegistrarAuthenticator_NoHeaderChallenges(t *testing.T) {
	digest := NewSIPDigestAuthenticator(5 * time.Minute)
	a := NewRegistrarAuthenticator(digest, "example.com")

	account := &sipaccount.Account{Username: "alice", Realm: "example.com"}

	decision, challenge, err := a.Authenticate("", "REGISTER", account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != ChallengeRequired {
		t.Errorf("expected ChallengeRequired, got %v", decision)
	}
	if challenge == "" {
		t.Errorf("expected a non-empty challenge")
	}
}

func TestRegistrarAuthenticator_UsernameMismatchRejects(t *testing.T) {
	digest := NewSIPDigestAuthenticator(5 * time.Minute)
	a := NewRegistrarAuthenticator(digest, "example.com")

	account := &sipaccount.Account{Username: "alice", Realm: "example.com"}

	authHeader := `Digest username="bob", realm="example.com", nonce="x", uri="sip:example.com", response="y"`
	decision, _, err := a.Authenticate(authHeader, "REGISTER", account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != Rejected {
		t.Errorf("expected Rejected for username mismatch, got %v", decision)
	}
}

func TestRegistrarAuthenticator_ValidCredentialsAccept(t *testing.T) {
	digest := NewSIPDigestAuthenticator(5 * time.Minute)
	a := NewRegistrarAuthenticator(digest, "example.com")

	username, realm, password := "alice", "example.com", "secret123"
	passwordHash := fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s:%s:%s", username, realm, password))))
	account := &sipaccount.Account{Username: username, Realm: realm, PasswordHash: passwordHash}

	nonce, err := digest.GenerateNonce()
	if err != nil {
		t.Fatalf("failed to generate nonce: %v", err)
	}
	digest.nonceStore.StoreNonce(nonce)

	method, uri := "REGISTER", "sip:example.com"
	ha2 := fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s:%s", method, uri))))
	response := fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s:%s:%s", passwordHash, nonce, ha2))))

	authHeader := fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s", algorithm="MD5"`,
		username, realm, nonce, uri, response)

	decision, challengeOut, err := a.Authenticate(authHeader, method, account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != Accepted {
		t.Errorf("expected Accepted, got %v", decision)
	}
	if challengeOut != "" {
		t.Errorf("expected no challenge on accept, got %q", challengeOut)
	}
}

func TestRegistrarAuthenticator_StaleNonceChallenges(t *testing.T) {
	digest := NewSIPDigestAuthenticator(5 * time.Minute)
	a := NewRegistrarAuthenticator(digest, "example.com")

	account := &sipaccount.Account{Username: "alice", Realm: "example.com"}
	authHeader := `Digest username="alice", realm="example.com", nonce="not-stored", uri="sip:example.com", response="y"`

	decision, challenge, err := a.Authenticate(authHeader, "REGISTER", account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != ChallengeRequired {
		t.Errorf("expected ChallengeRequired for stale nonce, got %v", decision)
	}
	if challenge == "" {
		t.Errorf("expected a fresh challenge to be issued")
	}
}
