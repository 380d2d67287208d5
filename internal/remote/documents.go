package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"babyofficehours/internal/models"
	"babyofficehours/internal/service"

	"github.com/google/uuid"
)

// Collection names in the document store
const (
	CollectionBabies  = "babies"
	CollectionInvites = "invites"
	CollectionUsers   = "users"
)

// Collections lists every collection the service reads or writes
var Collections = []string{CollectionBabies, CollectionInvites, CollectionUsers}

// babyDocument is the stored form of babies/{babyId}
type babyDocument struct {
	Name             *string    `json:"name"`
	CreatedBy        *string    `json:"createdBy"`
	Parents          []string   `json:"parents"`
	Subscribers      []string   `json:"subscribers"`
	IsAvailable      bool       `json:"isAvailable"`
	LastStatusChange *time.Time `json:"lastStatusChange,omitempty"`
}

// inviteDocument is the stored form of invites/{inviteId}
type inviteDocument struct {
	BabyID     *string    `json:"babyId"`
	Role       *string    `json:"role"`
	CreatedBy  *string    `json:"createdBy"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	IsRedeemed bool       `json:"isRedeemed"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	RedeemedBy *string    `json:"redeemedBy,omitempty"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
}

// userDocument is the stored form of users/{userId}
type userDocument struct {
	Name        *string  `json:"name,omitempty"`
	DeviceToken *string  `json:"deviceToken,omitempty"`
	Babies      []string `json:"babies"`
}

func utc(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return utc(*t)
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// parseIDs keeps the ids that parse and drops the rest
func parseIDs(values []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		if id, err := uuid.Parse(v); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func malformed(collection, id, reason string) error {
	return fmt.Errorf("%w: %s/%s: %s", service.ErrMalformedDocument, collection, id, reason)
}

func encodeBaby(b models.Baby) ([]byte, error) {
	name := b.Name
	createdBy := b.CreatedBy.String()
	return json.Marshal(babyDocument{
		Name:             &name,
		CreatedBy:        &createdBy,
		Parents:          idStrings(b.Parents),
		Subscribers:      idStrings(b.Subscribers),
		IsAvailable:      b.IsAvailable,
		LastStatusChange: utc(b.LastStatusChange),
	})
}

// decodeBaby rebuilds a baby. Name and creator are required; unparsable
// member ids are dropped and a missing timestamp falls back to now.
func decodeBaby(id string, data []byte, now time.Time) (*models.Baby, error) {
	babyID, err := uuid.Parse(id)
	if err != nil {
		return nil, malformed(CollectionBabies, id, "invalid id")
	}
	var doc babyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(CollectionBabies, id, err.Error())
	}
	if doc.Name == nil {
		return nil, malformed(CollectionBabies, id, "missing name")
	}
	if doc.CreatedBy == nil {
		return nil, malformed(CollectionBabies, id, "missing createdBy")
	}
	createdBy, err := uuid.Parse(*doc.CreatedBy)
	if err != nil {
		return nil, malformed(CollectionBabies, id, "invalid createdBy")
	}
	lastChange := now
	if doc.LastStatusChange != nil {
		lastChange = *doc.LastStatusChange
	}
	return models.RestoreBaby(babyID, *doc.Name, createdBy,
		parseIDs(doc.Parents), parseIDs(doc.Subscribers), doc.IsAvailable, lastChange), nil
}

func encodeInvite(inv models.Invite) ([]byte, error) {
	babyID := inv.BabyID.String()
	role := inv.Role.String()
	createdBy := inv.CreatedBy.String()
	doc := inviteDocument{
		BabyID:     &babyID,
		Role:       &role,
		CreatedBy:  &createdBy,
		CreatedAt:  utc(inv.CreatedAt),
		IsRedeemed: inv.IsRedeemed,
		ExpiresAt:  utcPtr(inv.ExpiresAt),
		RedeemedAt: utcPtr(inv.RedeemedAt),
	}
	if inv.RedeemedBy != nil {
		by := inv.RedeemedBy.String()
		doc.RedeemedBy = &by
	}
	return json.Marshal(doc)
}

// decodeInvite rebuilds an invite. Baby, role and creator are required.
func decodeInvite(id string, data []byte, now time.Time) (*models.Invite, error) {
	inviteID, err := uuid.Parse(id)
	if err != nil {
		return nil, malformed(CollectionInvites, id, "invalid id")
	}
	var doc inviteDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(CollectionInvites, id, err.Error())
	}
	if doc.BabyID == nil || doc.Role == nil || doc.CreatedBy == nil {
		return nil, malformed(CollectionInvites, id, "missing required field")
	}
	babyID, err := uuid.Parse(*doc.BabyID)
	if err != nil {
		return nil, malformed(CollectionInvites, id, "invalid babyId")
	}
	role, err := models.ParseRole(*doc.Role)
	if err != nil {
		return nil, malformed(CollectionInvites, id, err.Error())
	}
	createdBy, err := uuid.Parse(*doc.CreatedBy)
	if err != nil {
		return nil, malformed(CollectionInvites, id, "invalid createdBy")
	}

	inv := &models.Invite{
		ID:         inviteID,
		BabyID:     babyID,
		Role:       role,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		ExpiresAt:  doc.ExpiresAt,
		IsRedeemed: doc.IsRedeemed,
		RedeemedAt: doc.RedeemedAt,
	}
	if doc.CreatedAt != nil {
		inv.CreatedAt = *doc.CreatedAt
	}
	if doc.RedeemedBy != nil {
		if by, err := uuid.Parse(*doc.RedeemedBy); err == nil {
			inv.RedeemedBy = &by
		}
	}
	return inv, nil
}

func encodeUser(u models.User) ([]byte, error) {
	return json.Marshal(userDocument{
		Name:        u.Name,
		DeviceToken: u.DeviceToken,
		Babies:      idStrings(u.Babies),
	})
}

func decodeUser(id string, data []byte) (*models.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, malformed(CollectionUsers, id, "invalid id")
	}
	var doc userDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(CollectionUsers, id, err.Error())
	}
	return &models.User{
		ID:          userID,
		Name:        doc.Name,
		DeviceToken: doc.DeviceToken,
		Babies:      parseIDs(doc.Babies),
	}, nil
}
