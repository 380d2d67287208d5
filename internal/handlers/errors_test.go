package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"babyofficehours/internal/models"
	"babyofficehours/internal/service"
	"babyofficehours/internal/validation"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()

	respondWithError(rec, http.StatusTeapot, "Teapot", "", nil)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Teapot", decodeError(t, rec))
}

func TestRespondWithErrorLogsCause(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	rec := httptest.NewRecorder()
	respondWithError(rec, http.StatusInternalServerError, ErrInternalServerError, "", errors.New("boom"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, ErrInternalServerError, entry.Message)
	assert.EqualError(t, entry.Data[log.ErrorKey].(error), "boom")
	assert.Equal(t, ErrInternalServerError, decodeError(t, rec))
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"baby not found", service.ErrBabyNotFound, http.StatusNotFound},
		{"invite not found", fmt.Errorf("lookup: %w", service.ErrInviteNotFound), http.StatusNotFound},
		{"permission denied", service.ErrPermissionDenied, http.StatusForbidden},
		{"invite invalid", service.ErrInviteInvalid, http.StatusConflict},
		{"ambiguous code", service.ErrAmbiguousInviteCode, http.StatusConflict},
		{"creator not removable", service.ErrMemberNotRemovable, http.StatusConflict},
		{"invalid role", service.ErrInvalidRole, http.StatusBadRequest},
		{"baby name", service.ErrBabyNameRequired, http.StatusBadRequest},
		{"user name", service.ErrUserNameRequired, http.StatusBadRequest},
		{"email", service.ErrInvalidEmail, http.StatusBadRequest},
		{"shareable code", models.ErrInvalidShareableCode, http.StatusBadRequest},
		{"token", service.ErrInvalidToken, http.StatusUnauthorized},
		{"validation", validation.ValidationError{Field: "name", Message: "too long"}, http.StatusBadRequest},
		{"store failure", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithServiceError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestRespondWithServiceErrorHidesStoreFailures(t *testing.T) {
	rec := httptest.NewRecorder()
	respondWithServiceError(rec, errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	assert.Equal(t, ErrInternalServerError, decodeError(t, rec))
}
