package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"babyofficehours/internal/models"
	"babyofficehours/internal/service"
	"babyofficehours/internal/validation"

	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.WithError(err).Error(logMsg)
	}

	respondWithJSON(w, status, errorResponse{Error: userMsg})
}

// respondWithServiceError maps domain errors to statuses. Anything
// unrecognized is a store failure and logged.
func respondWithServiceError(w http.ResponseWriter, err error) {
	var verr validation.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Error(), "", nil)
	case errors.Is(err, service.ErrBabyNotFound),
		errors.Is(err, service.ErrInviteNotFound):
		respondWithError(w, http.StatusNotFound, err.Error(), "", nil)
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, err.Error(), "", nil)
	case errors.Is(err, service.ErrInviteInvalid),
		errors.Is(err, service.ErrAmbiguousInviteCode),
		errors.Is(err, service.ErrMemberNotRemovable):
		respondWithError(w, http.StatusConflict, err.Error(), "", nil)
	case errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrBabyNameRequired),
		errors.Is(err, service.ErrUserNameRequired),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, models.ErrInvalidShareableCode):
		respondWithError(w, http.StatusBadRequest, err.Error(), "", nil)
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenMissing):
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Request failed", err)
	}
}
