// Package auth provides password hashing for admin accounts.
package auth

import "golang.org/x/crypto/bcrypt"

// BcryptCost keeps a single verify in the hundreds of milliseconds, balancing
// brute-force resistance against login latency.
const BcryptCost = 12

// HashPassword hashes a password using bcrypt with the fixed work factor.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plain-text password with a bcrypt hash in constant
// time. A malformed hash verifies as false rather than returning an error.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
