package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when a blank password is offered for storage.
var ErrEmptyPassword = errors.New("password is empty")

// HashPassword returns a bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	if _, err := bcrypt.Cost([]byte(stored)); err != nil {
		return false
	}
	return strings.HasPrefix(stored, "$2")
}

// CheckPassword reports whether plain matches stored. Stored values may be
// bcrypt hashes or, for rows written without hashing, plain text.
func CheckPassword(stored, plain string) bool {
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
}

// Prepare returns the value to store for plain: a hash when hashing is
// enabled, plain itself otherwise.
func Prepare(plain string, hash bool) (string, error) {
	if !hash {
		if plain == "" {
			return "", ErrEmptyPassword
		}
		return plain, nil
	}
	return HashPassword(plain)
}
