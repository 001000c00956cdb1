// Package auth implements single-admin password login with JWT sessions.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Config holds auth settings. When PasswordHash is empty the service is
// disabled and the API runs unauthenticated.
type Config struct {
	PasswordHash string // bcrypt hash of the admin password
	JWTSecret    string
	SessionHours int
}

// Service verifies the admin password and issues session tokens.
type Service struct {
	config Config
	logger *zap.Logger
}

// NewService creates an auth service.
func NewService(cfg Config, logger *zap.Logger) *Service {
	if cfg.SessionHours <= 0 {
		cfg.SessionHours = 24
	}

	return &Service{
		config: cfg,
		logger: logger,
	}
}

// Enabled reports whether authentication is configured.
func (s *Service) Enabled() bool {
	return s.config.PasswordHash != ""
}

// Login checks the password against the configured hash and returns a signed
// session token.
func (s *Service) Login(password string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("authentication is not configured")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.config.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login attempt")
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.config.SessionHours) * time.Hour)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify validates a session token and returns its subject.
func (s *Service) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
