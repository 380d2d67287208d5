package service

import (
	"context"
	"errors"
	"time"

	"babyofficehours/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrInviteUnavailable is returned by the store when an invite is
	// already redeemed or expired at redemption time.
	ErrInviteUnavailable = errors.New("invite already redeemed or expired")

	// ErrAmbiguousInviteCode is returned when a shareable code matches more than one invite
	ErrAmbiguousInviteCode = errors.New("invite code matches more than one invite")

	// ErrMalformedDocument marks a stored record that could not be turned back into an entity
	ErrMalformedDocument = errors.New("malformed document")
)

// Subscription is a live feed of changes to one baby
type Subscription interface {
	Events() <-chan models.BabyEvent
	Cancel()
}

// SyncService mirrors users, babies and invites to a remote document store.
// Fetch methods return nil, nil when the record does not exist.
type SyncService interface {
	CreateOrReplaceBaby(ctx context.Context, baby models.Baby) error
	UpdateAvailability(ctx context.Context, babyID uuid.UUID, isAvailable bool) (time.Time, error)
	// RenameBaby and RemoveMember modify only the named field of the stored
	// baby and return the document as written.
	RenameBaby(ctx context.Context, babyID uuid.UUID, name string) (models.Baby, error)
	RemoveMember(ctx context.Context, babyID, userID uuid.UUID, role models.Role) (models.Baby, error)
	FetchBaby(ctx context.Context, babyID uuid.UUID) (*models.Baby, error)
	FetchBabiesForUser(ctx context.Context, userID uuid.UUID) ([]models.Baby, error)
	DeleteBaby(ctx context.Context, babyID uuid.UUID) error
	SubscribeToBaby(ctx context.Context, babyID uuid.UUID) (Subscription, error)
	UnsubscribeAll()

	CreateInvite(ctx context.Context, invite models.Invite) error
	FetchInvite(ctx context.Context, inviteID uuid.UUID) (*models.Invite, error)
	FetchInviteByCode(ctx context.Context, shareableCode string) (*models.Invite, error)
	DeleteInvite(ctx context.Context, inviteID uuid.UUID) error
	RedeemInvite(ctx context.Context, invite models.Invite, userID uuid.UUID) (time.Time, error)

	SaveUser(ctx context.Context, user models.User) error
	FetchUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}
