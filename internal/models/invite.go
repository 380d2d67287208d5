package models

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// InviteScheme prefixes every shareable invite code
	InviteScheme = "babyofficehours"

	// ShareableCodeLength is how many characters of the invite id a code carries
	ShareableCodeLength = 8
)

var (
	ErrInvalidShareableCode = errors.New("invalid invite code")

	shareableCodeRegex = regexp.MustCompile(`^[0-9a-f]{8}$`)
)

// Invite is a single-use token granting a role on a baby
type Invite struct {
	ID         uuid.UUID
	BabyID     uuid.UUID
	Role       Role
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	IsRedeemed bool
	RedeemedBy *uuid.UUID
	RedeemedAt *time.Time
}

// NewInvite creates an unredeemed invite. A nil expiresAt never expires.
func NewInvite(babyID uuid.UUID, role Role, createdBy uuid.UUID, createdAt time.Time, expiresAt *time.Time) *Invite {
	return &Invite{
		ID:        uuid.New(),
		BabyID:    babyID,
		Role:      role,
		CreatedBy: createdBy,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
}

// IsExpired reports whether now is past the expiry; invites without expiry never expire
func (i *Invite) IsExpired(now time.Time) bool {
	if i.ExpiresAt == nil {
		return false
	}
	return now.After(*i.ExpiresAt)
}

// IsValid reports whether the invite can still be redeemed at now
func (i *Invite) IsValid(now time.Time) bool {
	return !i.IsRedeemed && !i.IsExpired(now)
}

func (i *Invite) Expired() bool {
	return i.IsExpired(time.Now())
}

func (i *Invite) Valid() bool {
	return i.IsValid(time.Now())
}

// Redeem marks the invite as used by userID. Invalid invites are left untouched.
func (i *Invite) Redeem(userID uuid.UUID, now time.Time) bool {
	if !i.IsValid(now) {
		return false
	}
	i.IsRedeemed = true
	i.RedeemedBy = &userID
	i.RedeemedAt = &now
	return true
}

// ShareableCode returns the deep link handed to invitees.
// Only the first 8 characters of the id are embedded, so distinct invites may collide.
func (i *Invite) ShareableCode() string {
	return InviteScheme + "://invite/" + CodePrefix(i.ID)
}

// CodePrefix returns the id fragment used in shareable codes
func CodePrefix(id uuid.UUID) string {
	return strings.ToLower(id.String()[:ShareableCodeLength])
}

// ParseShareableCode extracts the id prefix from a shareable code.
// A bare 8-character prefix is accepted as well.
func ParseShareableCode(code string) (string, error) {
	prefix := strings.TrimSpace(code)
	if rest, ok := strings.CutPrefix(prefix, InviteScheme+"://invite/"); ok {
		prefix = rest
	}
	prefix = strings.ToLower(prefix)
	if !shareableCodeRegex.MatchString(prefix) {
		return "", ErrInvalidShareableCode
	}
	return prefix, nil
}

// Clone returns a deep copy of the invite
func (i *Invite) Clone() *Invite {
	c := *i
	if i.ExpiresAt != nil {
		t := *i.ExpiresAt
		c.ExpiresAt = &t
	}
	if i.RedeemedBy != nil {
		id := *i.RedeemedBy
		c.RedeemedBy = &id
	}
	if i.RedeemedAt != nil {
		t := *i.RedeemedAt
		c.RedeemedAt = &t
	}
	return &c
}
