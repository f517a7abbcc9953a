// Package auth provides functionality for generating and parsing JSON Web Tokens (JWT)
// for user and admin sessions. It defines custom claims, token generation, and validation logic.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token lifetimes used when none is configured.
const (
	DefaultUserTokenTTL  = 24 * time.Hour
	DefaultAdminTokenTTL = 8 * time.Hour
)

// Claims represents the custom JWT claims shared by user and admin tokens.
// It embeds jwt.RegisteredClaims for standard fields like expiration time.
type Claims struct {
	UserID     int64  `json:"userId,omitempty"`
	TelegramID int64  `json:"telegramId,omitempty"`
	Username   string `json:"username,omitempty"`
	IsAdmin    bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies tokens with one HMAC secret.
// User and admin sessions use separate managers with distinct secrets.
type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

// NewTokenManager returns a TokenManager for the given secret and token lifetime.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secretKey: []byte(secret), ttl: ttl}
}

// TTL returns the lifetime of tokens issued by this manager.
func (manager *TokenManager) TTL() time.Duration {
	return manager.ttl
}

// GenerateToken signs claims with HS256 after setting the issue and expiration times.
func (manager *TokenManager) GenerateToken(claims Claims) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(manager.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(manager.secretKey)
}

// ParseToken validates the provided JWT token string and parses its claims.
// Tokens signed with another algorithm or secret, and expired tokens, are rejected.
func (manager *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return manager.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
