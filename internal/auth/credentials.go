package auth

import (
	"fmt"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	pkgauth "github.com/derushio/d-next-ddd-example-sub002/pkg/auth"
)

// PasswordComparer reports whether password matches hash (nil on match)
type PasswordComparer func(hash, password string) error

// CredentialVerifier checks a submitted password against an account's hash.
// Unknown accounts are checked against a dummy hash of the same cost, so
// "no such account" and "wrong password" do the same amount of work.
type CredentialVerifier struct {
	dummyHash string
	compare   PasswordComparer
}

// NewCredentialVerifier builds a verifier whose dummy hash uses cost, which
// should match the cost of stored account hashes.
func NewCredentialVerifier(cost int) (*CredentialVerifier, error) {
	dummy, err := pkgauth.NewDummyHash(cost)
	if err != nil {
		return nil, fmt.Errorf("failed to build credential verifier: %w", err)
	}
	return &CredentialVerifier{dummyHash: dummy, compare: pkgauth.ComparePassword}, nil
}

// Verify always performs exactly one hash comparison. It returns true only
// when user is non-nil, has a stored hash, and password matches it.
func (v *CredentialVerifier) Verify(password string, user *models.User) bool {
	hash := v.dummyHash
	known := user != nil && user.PasswordHash != ""
	if known {
		hash = user.PasswordHash
	}

	matched := v.compare(hash, password) == nil
	return known && matched
}
