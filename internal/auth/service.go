// Package auth guards the admin API: a single configured account with a
// bcrypt password hash, exchanged for short-lived JWTs.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidPassword is returned when a new password is too short.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service provides authentication operations.
type Service struct {
	username     string
	passwordHash string
	jwtConfig    *JWTConfig
	clock        clock.Clock
}

// NewService creates a service for one admin account. A nil clock uses wall
// time.
func NewService(username, passwordHash string, jwtConfig *JWTConfig, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		username:     username,
		passwordHash: passwordHash,
		jwtConfig:    jwtConfig,
		clock:        clk,
	}
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(username, password string) (string, error) {
	if s.passwordHash == "" {
		return "", ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	if err := ComparePassword(s.passwordHash, password); err != nil || !userOK {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, s.username, s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// TTL returns how long issued tokens live.
func (s *Service) TTL() time.Duration {
	return s.jwtConfig.TTL
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString, jwt.WithTimeFunc(s.clock.Now))
}
