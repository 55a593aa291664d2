// Package auth issues and validates admin tokens for the status API.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Exmplr-AI/custom-x-ai-agent/internal/config"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userIDContextKey contextKey = "userID"

const (
	issuer = "x-agent"
	// AdminUser is the subject of every issued token.
	AdminUser = "admin"
)

var (
	// ErrLoginDisabled means no admin password or hash is configured.
	ErrLoginDisabled = errors.New("admin login is not configured")
	// ErrInvalidPassword is returned for a wrong password.
	ErrInvalidPassword = errors.New("invalid password")
)

// Config holds authentication configuration
type Config struct {
	JWTSecret     string
	AdminPassword string
	PasswordHash  string
	TokenDuration time.Duration
}

// FromConfig converts the environment configuration. A missing JWT secret is
// replaced by a random one, so tokens do not survive a restart.
func FromConfig(c config.AuthConfig) Config {
	secret := c.JWTSecret
	if secret == "" {
		b := make([]byte, 32)
		rand.Read(b)
		secret = hex.EncodeToString(b)
	}
	duration := c.TokenDuration
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	return Config{
		JWTSecret:     secret,
		AdminPassword: c.AdminPassword,
		PasswordHash:  c.PasswordHash,
		TokenDuration: duration,
	}
}

// Login checks password against the configured hash, or the plain admin
// password when no hash is set, and returns a signed token.
func (c Config) Login(password string) (string, error) {
	switch {
	case c.PasswordHash != "":
		if !CheckPassword(password, c.PasswordHash) {
			return "", ErrInvalidPassword
		}
	case c.AdminPassword != "":
		if subtle.ConstantTimeCompare([]byte(password), []byte(c.AdminPassword)) != 1 {
			return "", ErrInvalidPassword
		}
	default:
		return "", ErrLoginDisabled
	}
	return GenerateToken(AdminUser, c.JWTSecret, c.TokenDuration)
}

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token
func GenerateToken(userID string, secret string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns the user ID
func ValidateToken(tokenString string, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.UserID, nil
	}

	return "", fmt.Errorf("invalid token")
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Middleware rejects requests without a valid bearer token.
func Middleware(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			userID, err := ValidateToken(tokenString, config.JWTSecret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok
}
