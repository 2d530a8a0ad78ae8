package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost 12 matches the stored hashes; changing it only affects new
// hashes, verification reads the cost from the hash itself.
const bcryptCost = 12

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored hash. A
// malformed or empty hash yields false, never an error: callers cannot
// distinguish "no such hash" from "wrong password".
func VerifyPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
