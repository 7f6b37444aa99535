// Package lock implements the per-project access gate: bcrypt password
// hashes plus stateless HMAC capability tokens. A token proves the caller
// has previously supplied the correct password for a locked project; it is
// derived from the stored hash, so changing or clearing the password
// invalidates every outstanding token.
package lock

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Gate issues and verifies capability tokens with a process-wide secret.
type Gate struct {
	secret []byte
}

// NewGate creates a gate keyed by secret.
func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// HashPassword hashes a plaintext password for storage in the project
// document.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("lock: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(passwordHash, password string) bool {
	if passwordHash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

// Token derives the capability token for a project with the given stored
// password hash.
func (g *Gate) Token(project, passwordHash string) string {
	mac := hmac.New(sha256.New, g.secret)
	_, _ = mac.Write([]byte(project + ":" + passwordHash))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Valid reports whether token is the capability token for the project's
// current password hash. An unprotected project (empty hash) needs no token.
func (g *Gate) Valid(project, passwordHash, token string) bool {
	if passwordHash == "" {
		return true
	}
	if token == "" {
		return false
	}
	expected := g.Token(project, passwordHash)
	return hmac.Equal([]byte(token), []byte(expected))
}
