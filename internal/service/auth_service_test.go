package service_test

import (
	"errors"
	"testing"
	"time"

	"babyofficehours/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_SignInAnonymously(t *testing.T) {
	b := newBackend(t)
	auth, err := service.NewAuthService(b.sync, "test-key", time.Hour)
	require.NoError(t, err)

	token, user, err := auth.SignInAnonymously(t.Context(), "Sam")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored, err := b.sync.FetchUser(t.Context(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Sam", stored.DisplayName())

	userID, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestAuthService_ValidateToken(t *testing.T) {
	b := newBackend(t)
	auth, err := service.NewAuthService(b.sync, "test-key", time.Hour)
	require.NoError(t, err)
	other, err := service.NewAuthService(b.sync, "other-key", time.Hour)
	require.NoError(t, err)
	expired, err := service.NewAuthService(b.sync, "test-key", -time.Minute)
	require.NoError(t, err)

	userID := uuid.New()
	foreign, err := other.IssueToken(userID)
	require.NoError(t, err)
	stale, err := expired.IssueToken(userID)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    "babyofficehours",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: service.ErrTokenMissing},
		{name: "garbage", token: "not.a.token", want: service.ErrInvalidToken},
		{name: "wrong key", token: foreign, want: service.ErrInvalidToken},
		{name: "expired", token: stale, want: service.ErrInvalidToken},
		{name: "alg none", token: unsigned, want: service.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ValidateToken(tt.token)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAuthService_GeneratesKeyWhenUnset(t *testing.T) {
	b := newBackend(t)
	auth, err := service.NewAuthService(b.sync, "", time.Hour)
	require.NoError(t, err)

	token, err := auth.IssueToken(uuid.New())
	require.NoError(t, err)
	_, err = auth.ValidateToken(token)
	assert.NoError(t, err)
}
