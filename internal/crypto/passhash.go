// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for staff password hashes.
const bcryptCost = bcrypt.DefaultCost

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword returns a bcrypt hash of password in modular crypt format.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// An empty hash (members have none) never matches.
func VerifyPassword(password, hashed string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
