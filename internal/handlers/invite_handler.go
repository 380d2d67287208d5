package handlers

import (
	"net/http"
	"time"

	"babyofficehours/internal/models"
	"babyofficehours/internal/service"
	"babyofficehours/internal/validation"
)

// InviteHandler handles invite creation, sharing and redemption
type InviteHandler struct {
	emailService *service.EmailService
}

// NewInviteHandler creates a new invite handler
func NewInviteHandler(emailService *service.EmailService) *InviteHandler {
	return &InviteHandler{emailService: emailService}
}

type createInviteRequest struct {
	Role           models.Role `json:"role"`
	ExpiresInHours *int        `json:"expiresInHours"`
	NoExpiry       bool        `json:"noExpiry"`
}

type emailInviteRequest struct {
	Email string `json:"email"`
}

type redeemRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateInvite creates a co-parent or subscriber invite for a baby
func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}

	var req createInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	var opts []service.InviteOption
	switch {
	case req.NoExpiry:
		opts = append(opts, service.WithoutExpiry())
	case req.ExpiresInHours != nil:
		if *req.ExpiresInHours <= 0 {
			respondWithError(w, http.StatusBadRequest, "expiresInHours must be positive", "", nil)
			return
		}
		opts = append(opts, service.WithExpiresIn(time.Duration(*req.ExpiresInHours)*time.Hour))
	}

	invite, err := session.CreateInvite(r.Context(), babyID, req.Role, opts...)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, newInviteView(invite))
}

// ListInvites returns the pending invites of a baby created in this session
func (h *InviteHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}
	if !session.State().IsParent(babyID) {
		if _, found := session.State().Baby(babyID); !found {
			respondWithServiceError(w, service.ErrBabyNotFound)
			return
		}
		respondWithServiceError(w, service.ErrPermissionDenied)
		return
	}

	pending := session.State().PendingInvitesFor(babyID)
	views := make([]InviteView, 0, len(pending))
	for _, inv := range pending {
		views = append(views, newInviteView(inv))
	}
	respondWithJSON(w, http.StatusOK, views)
}

// CancelInvite deletes a pending invite
func (h *InviteHandler) CancelInvite(w http.ResponseWriter, r *http.Request) {
	session, inviteID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}

	if err := session.CancelInvite(r.Context(), inviteID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EmailInvite sends a pending invite's code to an email address
func (h *InviteHandler) EmailInvite(w http.ResponseWriter, r *http.Request) {
	session, inviteID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}

	var req emailInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	state := session.State()
	invite, found := state.Invite(inviteID)
	if !found || invite.IsRedeemed {
		respondWithServiceError(w, service.ErrInviteNotFound)
		return
	}
	baby, found := state.Baby(invite.BabyID)
	if !found {
		respondWithServiceError(w, service.ErrBabyNotFound)
		return
	}
	if !state.IsParent(baby.ID) {
		respondWithServiceError(w, service.ErrPermissionDenied)
		return
	}

	currentUser := state.CurrentUser()
	inviter := currentUser.DisplayName()
	if err := h.emailService.SendInviteEmail(r.Context(), req.Email, inviter, baby.Name, invite); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]bool{"sent": h.emailService.IsEnabled()})
}

// RedeemInvite redeems a shareable code. With a name it runs the join
// flow for a new user instead.
func (h *InviteHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	name, err := validation.NormalizeName("name", req.Name)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	var redemption *service.Redemption
	if name != "" {
		redemption, err = session.AcceptInvite(r.Context(), req.Code, name)
	} else {
		redemption, err = session.RedeemInviteCode(r.Context(), req.Code)
	}
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, RedemptionView{
		Baby:   newBabyView(session.State(), redemption.Baby),
		Invite: newInviteView(redemption.Invite),
	})
}
