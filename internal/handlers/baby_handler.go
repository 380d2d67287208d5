package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"babyofficehours/internal/models"
	"babyofficehours/internal/service"
	"babyofficehours/internal/validation"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BabyHandler handles baby profiles, availability and membership
type BabyHandler struct {
	sync service.SyncService
}

// NewBabyHandler creates a new baby handler
func NewBabyHandler(syncService service.SyncService) *BabyHandler {
	return &BabyHandler{sync: syncService}
}

type babyNameRequest struct {
	Name string `json:"name"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"isAvailable"`
}

// ListBabies returns the babies the user parents and subscribes to
func (h *BabyHandler) ListBabies(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	state := session.State()

	parent := state.ParentBabies()
	subscribed := state.SubscribedBabies()
	h.resolveMembers(r.Context(), state, parent)
	h.resolveMembers(r.Context(), state, subscribed)

	respondWithJSON(w, http.StatusOK, BabyListView{
		Parent:     newBabyViews(state, parent),
		Subscribed: newBabyViews(state, subscribed),
	})
}

// CreateBaby creates a baby owned by the user
func (h *BabyHandler) CreateBaby(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	var req babyNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	name, err := validation.NormalizeName("name", req.Name)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	baby, err := session.CreateBaby(r.Context(), name)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, newBabyView(session.State(), baby))
}

// GetBaby returns one baby the user belongs to
func (h *BabyHandler) GetBaby(w http.ResponseWriter, r *http.Request) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}

	baby, found := session.State().Baby(babyID)
	if !found || !baby.IsMember(session.State().CurrentUser().ID) {
		respondWithServiceError(w, service.ErrBabyNotFound)
		return
	}
	h.resolveMembers(r.Context(), session.State(), []models.Baby{baby})
	respondWithJSON(w, http.StatusOK, newBabyView(session.State(), baby))
}

// RenameBaby changes the baby's name
func (h *BabyHandler) RenameBaby(w http.ResponseWriter, r *http.Request) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}

	var req babyNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	name, err := validation.NormalizeName("name", req.Name)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	baby, err := session.RenameBaby(r.Context(), babyID, name)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newBabyView(session.State(), baby))
}

// ToggleAvailability flips the baby's availability
func (h *BabyHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}

	baby, err := session.ToggleAvailability(r.Context(), babyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newBabyView(session.State(), baby))
}

// SetAvailability sets the baby's availability explicitly
func (h *BabyHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}

	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil || req.IsAvailable == nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	baby, err := session.SetAvailability(r.Context(), babyID, *req.IsAvailable)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newBabyView(session.State(), baby))
}

// DeleteBaby deletes the baby. Creator only.
func (h *BabyHandler) DeleteBaby(w http.ResponseWriter, r *http.Request) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}

	if err := session.DeleteBaby(r.Context(), babyID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveCoParent removes a parent other than the creator
func (h *BabyHandler) RemoveCoParent(w http.ResponseWriter, r *http.Request) {
	h.removeMember(w, r, (*service.Session).RemoveCoParent)
}

// RemoveSubscriber removes a subscriber
func (h *BabyHandler) RemoveSubscriber(w http.ResponseWriter, r *http.Request) {
	h.removeMember(w, r, (*service.Session).RemoveSubscriber)
}

func (h *BabyHandler) removeMember(w http.ResponseWriter, r *http.Request, remove func(*service.Session, context.Context, uuid.UUID, uuid.UUID) (models.Baby, error)) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}
	userID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	baby, err := remove(session, r.Context(), userID, babyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newBabyView(session.State(), baby))
}

// Events streams the baby as server-sent events: one "baby" event with the
// current state, one per change, and "removed" when the baby goes away.
func (h *BabyHandler) Events(w http.ResponseWriter, r *http.Request) {
	session, babyID, ok := sessionAndID(w, r, "id")
	if !ok {
		return
	}
	userID := GetUserIDFromContext(r.Context())
	if baby, found := session.State().Baby(babyID); !found || !baby.IsMember(userID) {
		respondWithServiceError(w, service.ErrBabyNotFound)
		return
	}

	sub, err := h.sync.SubscribeToBaby(r.Context(), babyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	defer sub.Cancel()

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.WithError(err).Warn("Streaming not supported")
		return
	}

	logger := log.WithFields(log.Fields{"baby_id": babyID, "user_id": userID})
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			// A member removed while streaming sees the baby go away
			if ev.Removed() || !ev.Baby.IsMember(userID) {
				writeEvent(w, "removed", map[string]uuid.UUID{"id": babyID})
				_ = rc.Flush()
				return
			}
			if err := writeEvent(w, "baby", newBabyView(session.State(), *ev.Baby)); err != nil {
				logger.WithError(err).Debug("Event stream closed")
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// resolveMembers fetches display names of members the session has not seen yet
func (h *BabyHandler) resolveMembers(ctx context.Context, state *service.AppState, babies []models.Baby) {
	for _, b := range babies {
		for _, id := range append(append([]uuid.UUID{}, b.Parents...), b.Subscribers...) {
			if _, known := state.User(id); known {
				continue
			}
			u, err := h.sync.FetchUser(ctx, id)
			if err != nil {
				log.WithError(err).WithField("user_id", id).Debug("Failed to resolve member")
				continue
			}
			if u != nil {
				state.RegisterUser(*u)
			}
		}
	}
}

func sessionAndID(w http.ResponseWriter, r *http.Request, name string) (*service.Session, uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return nil, uuid.Nil, false
	}
	return GetSessionFromContext(r.Context()), id, true
}
