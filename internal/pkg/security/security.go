// Package security provides functionality for handling password hashing and verification.
// It leverages the bcrypt algorithm to hash the admin password and to check login attempts against it.
package security

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any admin login mismatch.
var ErrInvalidCredentials = errors.New("security: invalid credentials")

// HashPassword takes a plaintext password and returns its bcrypt hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
// It returns nil on success, or an error on failure indicating that the passwords do not match.
func CheckPassword(hashedPassword, userPassword string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(userPassword))
}

// AdminCredentials holds the single admin account configured for the panel.
type AdminCredentials struct {
	username     string
	passwordHash string
}

// NewAdminCredentials builds the admin account from either a precomputed bcrypt hash or a
// plaintext password, which is hashed once here. The hash wins when both are set.
func NewAdminCredentials(username, password, passwordHash string) (*AdminCredentials, error) {
	if username == "" || (password == "" && passwordHash == "") {
		return nil, errors.New("security: admin username and password or password hash are required")
	}

	if passwordHash == "" {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		passwordHash = hash
	} else if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, err
	}

	return &AdminCredentials{username: username, passwordHash: passwordHash}, nil
}

// Verify checks a login attempt. Every mismatch yields ErrInvalidCredentials.
func (credentials *AdminCredentials) Verify(username, password string) error {
	usernameMatches := subtle.ConstantTimeCompare([]byte(username), []byte(credentials.username)) == 1
	passwordErr := CheckPassword(credentials.passwordHash, password)
	if !usernameMatches || passwordErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Username returns the configured admin username.
func (credentials *AdminCredentials) Username() string {
	return credentials.username
}
