package handlers

import (
	"time"

	"babyofficehours/internal/models"
	"babyofficehours/internal/service"

	"github.com/google/uuid"
)

type UserView struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	HasName     bool        `json:"hasName"`
	Babies      []uuid.UUID `json:"babies"`
	Onboarded   bool        `json:"onboarded"`
	DeviceToken *string     `json:"deviceToken,omitempty"`
}

type MemberView struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	IsCreator   bool      `json:"isCreator,omitempty"`
}

type BabyView struct {
	ID               uuid.UUID    `json:"id"`
	Name             string       `json:"name"`
	CreatedBy        uuid.UUID    `json:"createdBy"`
	IsAvailable      bool         `json:"isAvailable"`
	LastStatusChange time.Time    `json:"lastStatusChange"`
	Role             models.Role  `json:"role,omitempty"`
	Parents          []MemberView `json:"parents"`
	Subscribers      []MemberView `json:"subscribers"`
	CoParentCount    int          `json:"coParentCount"`
	SubscriberCount  int          `json:"subscriberCount"`
}

type InviteView struct {
	ID            uuid.UUID   `json:"id"`
	BabyID        uuid.UUID   `json:"babyId"`
	Role          models.Role `json:"role"`
	CreatedBy     uuid.UUID   `json:"createdBy"`
	CreatedAt     time.Time   `json:"createdAt"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	IsRedeemed    bool        `json:"isRedeemed"`
	RedeemedAt    *time.Time  `json:"redeemedAt,omitempty"`
	Code          string      `json:"code"`
	ShareableCode string      `json:"shareableCode"`
}

type SignInResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type RedemptionView struct {
	Baby   BabyView   `json:"baby"`
	Invite InviteView `json:"invite"`
}

type BabyListView struct {
	Parent     []BabyView `json:"parent"`
	Subscribed []BabyView `json:"subscribed"`
}

func newUserView(state *service.AppState) UserView {
	u := state.CurrentUser()
	return UserView{
		ID:          u.ID,
		Name:        u.DisplayName(),
		HasName:     u.Name != nil,
		Babies:      u.Babies,
		Onboarded:   state.HasCompletedOnboarding(),
		DeviceToken: u.DeviceToken,
	}
}

func newBabyView(state *service.AppState, b models.Baby) BabyView {
	uid := state.CurrentUser().ID
	v := BabyView{
		ID:               b.ID,
		Name:             b.Name,
		CreatedBy:        b.CreatedBy,
		IsAvailable:      b.IsAvailable,
		LastStatusChange: b.LastStatusChange,
		Parents:          make([]MemberView, 0, len(b.Parents)),
		Subscribers:      make([]MemberView, 0, len(b.Subscribers)),
		CoParentCount:    b.CoParentCount(),
		SubscriberCount:  b.SubscriberCount(),
	}
	switch {
	case b.IsParent(uid):
		v.Role = models.RoleParent
	case b.IsSubscriber(uid):
		v.Role = models.RoleSubscriber
	}
	for _, id := range b.Parents {
		v.Parents = append(v.Parents, MemberView{ID: id, DisplayName: state.DisplayName(id), IsCreator: id == b.CreatedBy})
	}
	for _, id := range b.Subscribers {
		v.Subscribers = append(v.Subscribers, MemberView{ID: id, DisplayName: state.DisplayName(id)})
	}
	return v
}

func newBabyViews(state *service.AppState, babies []models.Baby) []BabyView {
	out := make([]BabyView, 0, len(babies))
	for _, b := range babies {
		out = append(out, newBabyView(state, b))
	}
	return out
}

func newInviteView(inv models.Invite) InviteView {
	return InviteView{
		ID:            inv.ID,
		BabyID:        inv.BabyID,
		Role:          inv.Role,
		CreatedBy:     inv.CreatedBy,
		CreatedAt:     inv.CreatedAt,
		ExpiresAt:     inv.ExpiresAt,
		IsRedeemed:    inv.IsRedeemed,
		RedeemedAt:    inv.RedeemedAt,
		Code:          models.CodePrefix(inv.ID),
		ShareableCode: inv.ShareableCode(),
	}
}
