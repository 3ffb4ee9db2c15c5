package auth

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost keeps hashing around a second on current hardware; login
// latency is the rate limit on offline guessing.
const bcryptCost = 14

// HashPassword hashes a cleartext password. Empty input is rejected
// before it reaches the hasher.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(h), err
}

// ComparePasswordAndHash validates the given cleartext password against
// the stored hash.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash returns the hash of a throwaway random password,
// used to fill the password column for accounts that cannot log in yet.
func RandomPasswordHash() string {
	for {
		if h, err := HashPassword(uuid.NewString()); err == nil {
			return h
		}
	}
}
