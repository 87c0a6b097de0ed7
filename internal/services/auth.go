// Package services contains the core business logic for OpenMic: host
// accounts, the room registry, and the song request queue.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/openmic/backend/internal/crypto"
	"github.com/openmic/backend/internal/store"
)

// Claims represents the JWT payload for authenticated host requests.
type Claims struct {
	HostID string `json:"hid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService handles host registration, login, and JWT issuance.
type AuthService struct {
	store         *store.Store
	secret        []byte
	tokenDuration time.Duration
}

// NewAuthService creates an AuthService with the given signing secret and
// token lifetime.
func NewAuthService(s *store.Store, secret string, tokenDuration time.Duration) *AuthService {
	return &AuthService{
		store:         s,
		secret:        []byte(secret),
		tokenDuration: tokenDuration,
	}
}

// Register creates a host account and returns it with a signed token.
// Fails with ErrAlreadyRegistered if the email is taken.
func (s *AuthService) Register(ctx context.Context, email, password string) (store.Host, string, error) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return store.Host{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	host := store.Host{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.store.CreateHost(ctx, host); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.Host{}, "", fmt.Errorf("%w: %s", ErrAlreadyRegistered, email)
		}
		return store.Host{}, "", fmt.Errorf("failed to create host: %w", err)
	}

	token, err := s.GenerateToken(host.ID, host.Email)
	if err != nil {
		return store.Host{}, "", err
	}
	return host, token, nil
}

// Login verifies host credentials and returns the host with a signed token.
// An unknown email and a wrong password both fail with ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (store.Host, string, error) {
	host, err := s.store.GetHostByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Host{}, "", ErrInvalidCredentials
		}
		return store.Host{}, "", fmt.Errorf("failed to look up host: %w", err)
	}

	ok, err := crypto.VerifyPassword(password, host.PasswordHash)
	if err != nil {
		return store.Host{}, "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return store.Host{}, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(host.ID, host.Email)
	if err != nil {
		return store.Host{}, "", err
	}
	return host, token, nil
}

// GenerateToken creates a signed JWT naming the host.
func (s *AuthService) GenerateToken(hostID, email string) (string, error) {
	claims := Claims{
		HostID: hostID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "openmic",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken verifies the JWT signature and expiry, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
