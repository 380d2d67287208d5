package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"babyofficehours/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenMissing = errors.New("missing bearer token")
)

const tokenIssuer = "babyofficehours"

// AuthService signs users in anonymously and issues bearer tokens.
// A token is the only credential an anonymous user has.
type AuthService struct {
	users      SyncService
	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

// NewAuthService creates a new auth service. An empty signing key is
// replaced by a random one, which invalidates tokens on restart.
func NewAuthService(users SyncService, signingKey string, tokenTTL time.Duration) (*AuthService, error) {
	key := []byte(signingKey)
	if len(key) == 0 {
		generated, err := generateSecureToken(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		log.Warn("JWT_SIGNING_KEY not configured, tokens will not survive a restart")
		key = []byte(generated)
	}
	return &AuthService{
		users:      users,
		signingKey: key,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}, nil
}

// SignInAnonymously creates a new user, stores it and returns a token for it
func (s *AuthService) SignInAnonymously(ctx context.Context, name string) (string, *models.User, error) {
	user := models.NewUser()
	if name != "" {
		user.SetName(name)
	}

	if err := s.users.SaveUser(ctx, *user); err != nil {
		return "", nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return "", nil, err
	}

	log.WithField("user_id", user.ID).Info("Anonymous user signed in")
	return token, user, nil
}

// IssueToken signs a token for an existing user
func (s *AuthService) IssueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature and expiry and returns the user id
func (s *AuthService) ValidateToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrTokenMissing
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
