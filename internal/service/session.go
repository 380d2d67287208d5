package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"babyofficehours/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrBabyNotFound       = errors.New("baby not found")
	ErrInviteNotFound     = errors.New("invite not found")
	ErrInviteInvalid      = errors.New("invite is no longer valid")
	ErrMemberNotRemovable = errors.New("member cannot be removed")
	ErrInvalidRole        = errors.New("invalid role")
	ErrBabyNameRequired   = errors.New("baby name is required")
	ErrUserNameRequired   = errors.New("user name is required")
)

// SessionOption configures a Session
type SessionOption func(*Session)

// WithChangeHandler registers a callback for every realtime event applied to the state
func WithChangeHandler(fn func(models.BabyEvent)) SessionOption {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithAutoWatch keeps every known baby subscribed for realtime updates
func WithAutoWatch() SessionOption {
	return func(s *Session) {
		s.autoWatch = true
	}
}

// Session pairs an AppState with a SyncService. Every operation awaits the
// remote write; remote failures are returned and leave the local state as
// it was before the call.
type Session struct {
	state     *AppState
	sync      SyncService
	logger    *log.Entry
	onChange  func(models.BabyEvent)
	autoWatch bool

	mu      sync.Mutex
	watches map[uuid.UUID]Subscription
	wg      sync.WaitGroup
	closed  bool
}

// NewSession creates a session for the user held by state
func NewSession(state *AppState, syncService SyncService, logger *log.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Session{
		state:   state,
		sync:    syncService,
		logger:  logger.WithField("user_id", state.CurrentUser().ID),
		watches: make(map[uuid.UUID]Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State exposes the in-memory coordinator for read access
func (s *Session) State() *AppState {
	return s.state
}

// Load fetches the user's profile and babies from the store. A user
// without a stored profile is saved for the first time.
func (s *Session) Load(ctx context.Context) error {
	userID := s.state.CurrentUser().ID

	var (
		stored *models.User
		babies []models.Baby
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.sync.FetchUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch user: %w", err)
		}
		stored = u
		return nil
	})
	g.Go(func() error {
		b, err := s.sync.FetchBabiesForUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch babies: %w", err)
		}
		babies = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if stored == nil {
		if err := s.saveUser(ctx); err != nil {
			return err
		}
	} else {
		s.state.MergeCurrentUser(*stored)
	}
	s.state.ReplaceBabies(babies)

	s.logger.WithField("babies", len(babies)).Debug("Session loaded")

	if s.autoWatch {
		for _, b := range babies {
			if err := s.Watch(ctx, b.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateName sets the display name of the current user
func (s *Session) UpdateName(ctx context.Context, name string) (models.User, error) {
	if name == "" {
		return models.User{}, ErrUserNameRequired
	}
	u := s.state.SetUserName(name)
	if err := s.saveUser(ctx); err != nil {
		return u, err
	}
	return u, nil
}

// UpdateDeviceToken records the push token of the current user
func (s *Session) UpdateDeviceToken(ctx context.Context, token string) (models.User, error) {
	u := s.state.SetUserDeviceToken(token)
	if err := s.saveUser(ctx); err != nil {
		return u, err
	}
	return u, nil
}

// CreateBaby creates a baby owned by the current user and persists it
func (s *Session) CreateBaby(ctx context.Context, name string) (models.Baby, error) {
	if name == "" {
		return models.Baby{}, ErrBabyNameRequired
	}

	baby := s.state.CreateBaby(name)
	if err := s.sync.CreateOrReplaceBaby(ctx, baby); err != nil {
		s.state.DeleteBaby(baby.ID)
		return models.Baby{}, fmt.Errorf("failed to create baby: %w", err)
	}
	if err := s.saveUser(ctx); err != nil {
		return baby, err
	}
	s.logger.WithField("baby_id", baby.ID).Info("Baby created")

	if s.autoWatch {
		if err := s.Watch(ctx, baby.ID); err != nil {
			return baby, err
		}
	}
	return baby, nil
}

// ToggleAvailability flips availability and adopts the server timestamp
func (s *Session) ToggleAvailability(ctx context.Context, babyID uuid.UUID) (models.Baby, error) {
	prev, _ := s.state.Baby(babyID)
	b := s.state.ToggleAvailability(babyID)
	if b == nil {
		return models.Baby{}, s.parentFailure(babyID)
	}
	return s.pushAvailability(ctx, prev, *b)
}

// SetAvailability sets availability and adopts the server timestamp
func (s *Session) SetAvailability(ctx context.Context, babyID uuid.UUID, available bool) (models.Baby, error) {
	prev, _ := s.state.Baby(babyID)
	b := s.state.SetAvailability(babyID, available)
	if b == nil {
		return models.Baby{}, s.parentFailure(babyID)
	}
	return s.pushAvailability(ctx, prev, *b)
}

// pushAvailability stores the local change. On failure prev's availability
// is restored so a retry starts from the stored value.
func (s *Session) pushAvailability(ctx context.Context, prev, b models.Baby) (models.Baby, error) {
	changedAt, err := s.sync.UpdateAvailability(ctx, b.ID, b.IsAvailable)
	if err != nil {
		s.state.RestoreAvailability(prev.ID, prev.IsAvailable, prev.LastStatusChange)
		return models.Baby{}, fmt.Errorf("failed to update availability: %w", err)
	}
	if updated, ok := s.state.RestoreAvailability(b.ID, b.IsAvailable, changedAt); ok {
		b = updated
	}
	s.logger.WithFields(log.Fields{
		"baby_id":   b.ID,
		"available": b.IsAvailable,
	}).Info("Availability changed")
	return b, nil
}

// RenameBaby changes a baby's name. Parents only.
func (s *Session) RenameBaby(ctx context.Context, babyID uuid.UUID, name string) (models.Baby, error) {
	if name == "" {
		return models.Baby{}, ErrBabyNameRequired
	}
	if !s.state.IsParent(babyID) {
		return models.Baby{}, s.parentFailure(babyID)
	}
	b, err := s.sync.RenameBaby(ctx, babyID, name)
	if err != nil {
		return models.Baby{}, fmt.Errorf("failed to rename baby: %w", err)
	}
	s.adopt(b)
	return b, nil
}

// DeleteBaby removes a baby and its invites. Only the creator may delete.
func (s *Session) DeleteBaby(ctx context.Context, babyID uuid.UUID) error {
	if _, ok := s.state.Baby(babyID); !ok {
		return ErrBabyNotFound
	}
	if !s.state.IsCreator(babyID) {
		return ErrPermissionDenied
	}

	if err := s.sync.DeleteBaby(ctx, babyID); err != nil {
		return fmt.Errorf("failed to delete baby: %w", err)
	}
	s.Unwatch(babyID)
	s.state.DeleteBaby(babyID)

	if err := s.saveUser(ctx); err != nil {
		return err
	}
	s.logger.WithField("baby_id", babyID).Info("Baby deleted")
	return nil
}

// CreateInvite creates and stores an invite granting role on the baby.
// The local invite is dropped again when the store rejects it.
func (s *Session) CreateInvite(ctx context.Context, babyID uuid.UUID, role models.Role, opts ...InviteOption) (models.Invite, error) {
	var invite *models.Invite
	switch role {
	case models.RoleParent:
		invite = s.state.CreateCoParentInvite(babyID, opts...)
	case models.RoleSubscriber:
		invite = s.state.CreateSubscriberInvite(babyID, opts...)
	default:
		return models.Invite{}, ErrInvalidRole
	}
	if invite == nil {
		return models.Invite{}, s.parentFailure(babyID)
	}

	if err := s.sync.CreateInvite(ctx, *invite); err != nil {
		s.state.CancelInvite(invite.ID)
		return models.Invite{}, fmt.Errorf("failed to create invite: %w", err)
	}
	return *invite, nil
}

// CancelInvite deletes a pending invite created in this session
func (s *Session) CancelInvite(ctx context.Context, inviteID uuid.UUID) error {
	inv, ok := s.state.Invite(inviteID)
	if !ok || inv.IsRedeemed {
		return ErrInviteNotFound
	}
	if !s.state.IsParent(inv.BabyID) {
		return ErrPermissionDenied
	}
	if err := s.sync.DeleteInvite(ctx, inviteID); err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	s.state.CancelInvite(inviteID)
	return nil
}

// RemoveCoParent removes a parent other than the creator
func (s *Session) RemoveCoParent(ctx context.Context, userID, babyID uuid.UUID) (models.Baby, error) {
	return s.removeMember(ctx, userID, babyID, models.RoleParent)
}

// RemoveSubscriber removes a subscriber from the baby
func (s *Session) RemoveSubscriber(ctx context.Context, userID, babyID uuid.UUID) (models.Baby, error) {
	return s.removeMember(ctx, userID, babyID, models.RoleSubscriber)
}

// removeMember works against the stored member lists, which may already
// hold members this session has not seen yet.
func (s *Session) removeMember(ctx context.Context, userID, babyID uuid.UUID, role models.Role) (models.Baby, error) {
	if !s.state.IsParent(babyID) {
		return models.Baby{}, s.parentFailure(babyID)
	}
	b, err := s.sync.RemoveMember(ctx, babyID, userID, role)
	if err != nil {
		if errors.Is(err, ErrMemberNotRemovable) {
			return models.Baby{}, err
		}
		return models.Baby{}, fmt.Errorf("failed to remove member: %w", err)
	}
	s.adopt(b)
	s.logger.WithFields(log.Fields{
		"baby_id": babyID,
		"member":  userID,
		"role":    role,
	}).Info("Member removed")
	return b, nil
}

// RedeemInvite redeems a stored invite for the current user
func (s *Session) RedeemInvite(ctx context.Context, inviteID uuid.UUID) (*Redemption, error) {
	inv, err := s.sync.FetchInvite(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invite: %w", err)
	}
	if inv == nil {
		return nil, ErrInviteNotFound
	}
	return s.redeemAndSave(ctx, *inv)
}

// RedeemInviteCode redeems the invite behind a shareable code
func (s *Session) RedeemInviteCode(ctx context.Context, code string) (*Redemption, error) {
	inv, err := s.fetchInviteByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.redeemAndSave(ctx, *inv)
}

// AcceptInvite is the join flow for a new user: it redeems the code, names
// the user and completes onboarding.
func (s *Session) AcceptInvite(ctx context.Context, code, userName string) (*Redemption, error) {
	if userName == "" {
		return nil, ErrUserNameRequired
	}
	inv, err := s.fetchInviteByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.state.SetPendingJoinInvite(inv)

	r, err := s.redeem(ctx, *inv)
	if err != nil {
		return nil, err
	}
	r.Baby = s.state.JoinBaby(r.Baby, inv.Role, userName)
	if err := s.saveUser(ctx); err != nil {
		return r, err
	}
	return r, nil
}

func (s *Session) fetchInviteByCode(ctx context.Context, code string) (*models.Invite, error) {
	inv, err := s.sync.FetchInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrInvalidShareableCode) || errors.Is(err, ErrAmbiguousInviteCode) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch invite: %w", err)
	}
	if inv == nil {
		return nil, ErrInviteNotFound
	}
	return inv, nil
}

func (s *Session) redeemAndSave(ctx context.Context, inv models.Invite) (*Redemption, error) {
	r, err := s.redeem(ctx, inv)
	if err != nil {
		return nil, err
	}
	if err := s.saveUser(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// redeem performs the atomic store redemption first, then mirrors it locally
func (s *Session) redeem(ctx context.Context, inv models.Invite) (*Redemption, error) {
	if !inv.IsValid(s.state.now()) {
		return nil, ErrInviteInvalid
	}

	// An unknown baby is only recorded once the redemption is stored
	var fetched *models.Baby
	if _, ok := s.state.Baby(inv.BabyID); !ok {
		b, err := s.sync.FetchBaby(ctx, inv.BabyID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch baby: %w", err)
		}
		if b == nil {
			return nil, ErrBabyNotFound
		}
		fetched = b
	}

	userID := s.state.CurrentUser().ID
	redeemedAt, err := s.sync.RedeemInvite(ctx, inv, userID)
	if err != nil {
		if errors.Is(err, ErrInviteUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrInviteInvalid, err)
		}
		return nil, fmt.Errorf("failed to redeem invite: %w", err)
	}
	if fetched != nil {
		s.state.UpsertBaby(*fetched)
	}

	r := s.state.RedeemInvite(inv)
	if r == nil {
		return nil, ErrInviteInvalid
	}
	r.Invite.RedeemedAt = &redeemedAt
	s.state.TrackInvite(r.Invite)

	s.logger.WithFields(log.Fields{
		"invite_id": inv.ID,
		"baby_id":   inv.BabyID,
		"role":      inv.Role,
	}).Info("Invite redeemed")

	if s.autoWatch {
		if err := s.Watch(ctx, inv.BabyID); err != nil {
			return r, err
		}
	}
	return r, nil
}

// Watch subscribes to realtime changes of a baby. Events are merged into
// the state until Unwatch or Close. Watching twice is a no-op.
func (s *Session) Watch(ctx context.Context, babyID uuid.UUID) error {
	s.mu.Lock()
	_, watching := s.watches[babyID]
	closed := s.closed
	s.mu.Unlock()
	if watching || closed {
		return nil
	}

	sub, err := s.sync.SubscribeToBaby(ctx, babyID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to baby: %w", err)
	}

	s.mu.Lock()
	if _, dup := s.watches[babyID]; dup || s.closed {
		s.mu.Unlock()
		sub.Cancel()
		return nil
	}
	s.watches[babyID] = sub
	s.wg.Add(1)
	s.mu.Unlock()

	go s.consume(babyID, sub)
	return nil
}

// consume merges events until the subscription ends. A baby that was
// deleted, or no longer lists the user, stops being watched.
func (s *Session) consume(babyID uuid.UUID, sub Subscription) {
	defer s.wg.Done()
	for ev := range sub.Events() {
		known := s.state.ApplyBabyEvent(ev)
		if s.onChange != nil {
			s.onChange(ev)
		}
		if known {
			continue
		}
		if ev.Removed() {
			s.logger.WithField("baby_id", babyID).Info("Baby removed remotely")
		} else {
			s.logger.WithField("baby_id", babyID).Info("Membership revoked remotely")
		}
		s.dropWatch(babyID, sub)
	}
}

// dropWatch cancels sub and forgets it unless a newer watch replaced it
func (s *Session) dropWatch(babyID uuid.UUID, sub Subscription) {
	s.mu.Lock()
	if s.watches[babyID] == sub {
		delete(s.watches, babyID)
	}
	s.mu.Unlock()
	sub.Cancel()
}

// Unwatch cancels the subscription for a baby
func (s *Session) Unwatch(babyID uuid.UUID) {
	s.mu.Lock()
	sub, ok := s.watches[babyID]
	delete(s.watches, babyID)
	s.mu.Unlock()
	if ok {
		sub.Cancel()
	}
}

// Watching reports whether the baby has an active subscription
func (s *Session) Watching(babyID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watches[babyID]
	return ok
}

// Close cancels every subscription and waits for event delivery to stop
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	subs := s.watches
	s.watches = make(map[uuid.UUID]Subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	s.wg.Wait()
}

// adopt merges a stored baby and stops watching it when the user left
func (s *Session) adopt(b models.Baby) {
	if !s.state.MergeBaby(b) {
		s.Unwatch(b.ID)
	}
}

func (s *Session) saveUser(ctx context.Context) error {
	if err := s.sync.SaveUser(ctx, s.state.CurrentUser()); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// parentFailure explains why a parent-only operation returned nothing
func (s *Session) parentFailure(babyID uuid.UUID) error {
	if _, ok := s.state.Baby(babyID); !ok {
		return ErrBabyNotFound
	}
	return ErrPermissionDenied
}
