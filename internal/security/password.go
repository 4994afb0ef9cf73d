package security

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher compares a supplied password against stored credential
// material.
type PasswordHasher interface {
	Name() string
	Verify(stored, supplied string) bool
}

// Supported password_hash values.
const (
	HashPlaintext = "plaintext"
	HashBcrypt    = "bcrypt"
)

// NewPasswordHasher returns the hasher for a password_hash setting. An empty
// name selects plaintext.
func NewPasswordHasher(name string) (PasswordHasher, error) {
	switch name {
	case "", HashPlaintext:
		return plaintextHasher{}, nil
	case HashBcrypt:
		return bcryptHasher{}, nil
	default:
		return nil, fmt.Errorf("%w: password_hash %q (supported: plaintext, bcrypt)", ErrUnknownVariant, name)
	}
}

type plaintextHasher struct{}

func (plaintextHasher) Name() string { return HashPlaintext }

func (plaintextHasher) Verify(stored, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

type bcryptHasher struct{}

func (bcryptHasher) Name() string { return HashBcrypt }

func (bcryptHasher) Verify(stored, supplied string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
}

// HashPassword produces a bcrypt hash suitable for a user store configured
// with password_hash: bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
