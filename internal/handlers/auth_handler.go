package handlers

import (
	"encoding/json"
	"net/http"

	"babyofficehours/internal/service"
	"babyofficehours/internal/validation"
)

// AuthHandler handles sign-in and profile requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type signInRequest struct {
	Name string `json:"name"`
}

type updateUserRequest struct {
	Name        *string `json:"name"`
	DeviceToken *string `json:"deviceToken"`
}

// SignInAnonymously creates a user and returns its bearer token. The body is optional.
func (h *AuthHandler) SignInAnonymously(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
			return
		}
	}

	name, err := validation.NormalizeName("name", req.Name)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	token, user, err := h.authService.SignInAnonymously(r.Context(), name)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, SignInResponse{
		Token: token,
		User: UserView{
			ID:      user.ID,
			Name:    user.DisplayName(),
			HasName: user.Name != nil,
			Babies:  user.Babies,
		},
	})
}

// Me returns the signed-in user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	respondWithJSON(w, http.StatusOK, newUserView(session.State()))
}

// UpdateMe changes the display name and/or device token
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	if req.Name != nil {
		name, err := validation.NormalizeName("name", *req.Name)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		if _, err := session.UpdateName(r.Context(), name); err != nil {
			respondWithServiceError(w, err)
			return
		}
	}
	if req.DeviceToken != nil {
		if _, err := session.UpdateDeviceToken(r.Context(), *req.DeviceToken); err != nil {
			respondWithServiceError(w, err)
			return
		}
	}

	respondWithJSON(w, http.StatusOK, newUserView(session.State()))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
