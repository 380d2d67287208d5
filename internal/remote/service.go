package remote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"babyofficehours/internal/docstore"
	"babyofficehours/internal/metrics"
	"babyofficehours/internal/models"
	"babyofficehours/internal/realtime"
	"babyofficehours/internal/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var _ service.SyncService = (*Service)(nil)

// Option configures a Service
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.logger = l.WithField("component", "sync")
	}
}

// WithClock replaces the server clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service implements service.SyncService on top of a document store and
// a change notifier. Every write to a baby publishes a change signal.
type Service struct {
	store    docstore.Store
	notifier realtime.Notifier
	metrics  *metrics.Metrics
	logger   *log.Entry
	now      func() time.Time

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// New creates a sync service
func New(store docstore.Store, notifier realtime.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   log.WithField("component", "sync"),
		now:      time.Now,
		subs:     make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// observe records a store call; deferred with a pointer to the named error
func (s *Service) observe(operation string, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.ObserveStore(operation, start, *err)
	}
}

func (s *Service) skipMalformed(collection, id string, err error) {
	s.logger.WithFields(log.Fields{
		"collection": collection,
		"id":         id,
	}).WithError(err).Warn("Skipping malformed document")
	if s.metrics != nil {
		s.metrics.IncrementMalformed(collection)
	}
}

// publish signals subscribers after a committed write. Delivery failures
// are logged; the write itself already succeeded.
func (s *Service) publish(ctx context.Context, babyID uuid.UUID) {
	if err := s.notifier.Publish(ctx, babyID.String()); err != nil {
		s.logger.WithField("baby_id", babyID).WithError(err).Warn("Failed to publish baby change")
	}
}

// Babies

func (s *Service) CreateOrReplaceBaby(ctx context.Context, baby models.Baby) (err error) {
	defer s.observe("create_or_replace_baby", time.Now(), &err)

	data, err := encodeBaby(baby)
	if err != nil {
		return fmt.Errorf("failed to encode baby: %w", err)
	}
	if err := s.store.Put(ctx, CollectionBabies, baby.ID.String(), data); err != nil {
		return fmt.Errorf("failed to save baby: %w", err)
	}
	s.publish(ctx, baby.ID)
	return nil
}

// UpdateAvailability sets availability and stamps a server timestamp that
// is strictly later than the previous one.
func (s *Service) UpdateAvailability(ctx context.Context, babyID uuid.UUID, isAvailable bool) (changedAt time.Time, err error) {
	defer s.observe("update_availability", time.Now(), &err)

	err = s.store.Update(ctx, func(tx docstore.Tx) error {
		baby, err := s.readBaby(ctx, tx, babyID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if !now.After(baby.LastStatusChange) {
			now = baby.LastStatusChange.Add(time.Nanosecond)
		}
		baby.IsAvailable = isAvailable
		baby.LastStatusChange = now
		changedAt = now

		return s.writeBaby(ctx, tx, *baby)
	})
	if err != nil {
		return time.Time{}, err
	}
	s.publish(ctx, babyID)
	return changedAt, nil
}

func (s *Service) RenameBaby(ctx context.Context, babyID uuid.UUID, name string) (renamed models.Baby, err error) {
	defer s.observe("rename_baby", time.Now(), &err)

	err = s.store.Update(ctx, func(tx docstore.Tx) error {
		baby, err := s.readBaby(ctx, tx, babyID)
		if err != nil {
			return err
		}
		baby.Rename(name)
		renamed = *baby
		return s.writeBaby(ctx, tx, *baby)
	})
	if err != nil {
		return models.Baby{}, err
	}
	s.publish(ctx, babyID)
	return renamed, nil
}

// RemoveMember drops the user from the role's member list and the baby from
// the user's stored profile in one transaction. The creator and users not
// holding the role are reported as ErrMemberNotRemovable.
func (s *Service) RemoveMember(ctx context.Context, babyID, userID uuid.UUID, role models.Role) (updated models.Baby, err error) {
	defer s.observe("remove_member", time.Now(), &err)

	err = s.store.Update(ctx, func(tx docstore.Tx) error {
		baby, err := s.readBaby(ctx, tx, babyID)
		if err != nil {
			return err
		}

		var removed bool
		switch role {
		case models.RoleParent:
			removed = baby.RemoveParent(userID)
		case models.RoleSubscriber:
			removed = baby.RemoveSubscriber(userID)
		default:
			return service.ErrInvalidRole
		}
		if !removed {
			return service.ErrMemberNotRemovable
		}

		if err := s.writeBaby(ctx, tx, *baby); err != nil {
			return err
		}
		if err := s.dropUserBaby(ctx, tx, userID, babyID); err != nil {
			return err
		}
		updated = *baby
		return nil
	})
	if err != nil {
		return models.Baby{}, err
	}
	s.publish(ctx, babyID)
	return updated, nil
}

func (s *Service) FetchBaby(ctx context.Context, babyID uuid.UUID) (baby *models.Baby, err error) {
	defer s.observe("fetch_baby", time.Now(), &err)

	baby, err = s.readBaby(ctx, s.store, babyID)
	if errors.Is(err, service.ErrBabyNotFound) {
		return nil, nil
	}
	return baby, err
}

// FetchBabiesForUser returns every baby the user parents or subscribes to.
// Malformed documents are skipped.
func (s *Service) FetchBabiesForUser(ctx context.Context, userID uuid.UUID) (babies []models.Baby, err error) {
	defer s.observe("fetch_babies_for_user", time.Now(), &err)

	docs, err := s.store.List(ctx, CollectionBabies)
	if err != nil {
		return nil, fmt.Errorf("failed to list babies: %w", err)
	}

	now := s.now()
	seen := make(map[uuid.UUID]bool, len(docs))
	babies = []models.Baby{}
	for _, doc := range docs {
		b, err := decodeBaby(doc.ID, doc.Data, now)
		if err != nil {
			s.skipMalformed(CollectionBabies, doc.ID, err)
			continue
		}
		if seen[b.ID] || !b.IsMember(userID) {
			continue
		}
		seen[b.ID] = true
		babies = append(babies, *b)
	}
	return babies, nil
}

// DeleteBaby removes the baby with its invites and clears it from each
// member's stored profile.
func (s *Service) DeleteBaby(ctx context.Context, babyID uuid.UUID) (err error) {
	defer s.observe("delete_baby", time.Now(), &err)

	err = s.store.Update(ctx, func(tx docstore.Tx) error {
		baby, err := s.readBaby(ctx, tx, babyID)
		switch {
		case err == nil:
			for _, member := range slices.Concat(baby.Parents, baby.Subscribers) {
				if err := s.dropUserBaby(ctx, tx, member, babyID); err != nil {
					return err
				}
			}
		case errors.Is(err, service.ErrBabyNotFound), errors.Is(err, service.ErrMalformedDocument):
		default:
			return err
		}

		if err := tx.Delete(ctx, CollectionBabies, babyID.String()); err != nil {
			return err
		}
		invites, err := tx.List(ctx, CollectionInvites)
		if err != nil {
			return err
		}
		now := s.now()
		for _, doc := range invites {
			inv, err := decodeInvite(doc.ID, doc.Data, now)
			if err != nil || inv.BabyID != babyID {
				continue
			}
			if err := tx.Delete(ctx, CollectionInvites, doc.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete baby: %w", err)
	}
	s.publish(ctx, babyID)
	return nil
}

func (s *Service) readBaby(ctx context.Context, r docstore.Reader, babyID uuid.UUID) (*models.Baby, error) {
	data, err := r.Get(ctx, CollectionBabies, babyID.String())
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, service.ErrBabyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baby: %w", err)
	}
	return decodeBaby(babyID.String(), data, s.now())
}

func (s *Service) writeBaby(ctx context.Context, w docstore.Writer, baby models.Baby) error {
	data, err := encodeBaby(baby)
	if err != nil {
		return fmt.Errorf("failed to encode baby: %w", err)
	}
	if err := w.Put(ctx, CollectionBabies, baby.ID.String(), data); err != nil {
		return fmt.Errorf("failed to save baby: %w", err)
	}
	return nil
}

// Invites

func (s *Service) CreateInvite(ctx context.Context, invite models.Invite) (err error) {
	defer s.observe("create_invite", time.Now(), &err)

	data, err := encodeInvite(invite)
	if err != nil {
		return fmt.Errorf("failed to encode invite: %w", err)
	}
	if err := s.store.Put(ctx, CollectionInvites, invite.ID.String(), data); err != nil {
		return fmt.Errorf("failed to save invite: %w", err)
	}
	return nil
}

func (s *Service) FetchInvite(ctx context.Context, inviteID uuid.UUID) (invite *models.Invite, err error) {
	defer s.observe("fetch_invite", time.Now(), &err)

	invite, err = s.readInvite(ctx, s.store, inviteID.String())
	if errors.Is(err, service.ErrInviteNotFound) {
		return nil, nil
	}
	return invite, err
}

// FetchInviteByCode resolves a shareable code by its id prefix. More than
// one invite with the same prefix is reported as ErrAmbiguousInviteCode.
func (s *Service) FetchInviteByCode(ctx context.Context, shareableCode string) (invite *models.Invite, err error) {
	defer s.observe("fetch_invite_by_code", time.Now(), &err)

	prefix, err := models.ParseShareableCode(shareableCode)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.List(ctx, CollectionInvites)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}

	var match *docstore.Document
	for i := range docs {
		if !strings.HasPrefix(strings.ToLower(docs[i].ID), prefix) {
			continue
		}
		if match != nil {
			s.logger.WithField("code", prefix).Warn("Invite code collision")
			return nil, service.ErrAmbiguousInviteCode
		}
		match = &docs[i]
	}
	if match == nil {
		return nil, nil
	}
	return decodeInvite(match.ID, match.Data, s.now())
}

func (s *Service) DeleteInvite(ctx context.Context, inviteID uuid.UUID) (err error) {
	defer s.observe("delete_invite", time.Now(), &err)

	if err := s.store.Delete(ctx, CollectionInvites, inviteID.String()); err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	return nil
}

// RedeemInvite marks the invite redeemed and grants its role on the baby in
// one transaction. The stored invite is authoritative for role and validity.
func (s *Service) RedeemInvite(ctx context.Context, invite models.Invite, userID uuid.UUID) (redeemedAt time.Time, err error) {
	defer s.observe("redeem_invite", time.Now(), &err)

	var role models.Role
	var babyID uuid.UUID
	err = s.store.Update(ctx, func(tx docstore.Tx) error {
		stored, err := s.readInvite(ctx, tx, invite.ID.String())
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if !stored.Redeem(userID, now) {
			return service.ErrInviteUnavailable
		}

		baby, err := s.readBaby(ctx, tx, stored.BabyID)
		if err != nil {
			return err
		}
		switch stored.Role {
		case models.RoleParent:
			baby.AddParent(userID)
		case models.RoleSubscriber:
			baby.AddSubscriber(userID)
		}

		data, err := encodeInvite(*stored)
		if err != nil {
			return fmt.Errorf("failed to encode invite: %w", err)
		}
		if err := tx.Put(ctx, CollectionInvites, stored.ID.String(), data); err != nil {
			return fmt.Errorf("failed to save invite: %w", err)
		}
		if err := s.writeBaby(ctx, tx, *baby); err != nil {
			return err
		}

		redeemedAt = now
		role = stored.Role
		babyID = baby.ID
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	if s.metrics != nil {
		s.metrics.IncrementInviteRedeemed(role.String())
	}
	s.publish(ctx, babyID)
	return redeemedAt, nil
}

func (s *Service) readInvite(ctx context.Context, r docstore.Reader, id string) (*models.Invite, error) {
	data, err := r.Get(ctx, CollectionInvites, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, service.ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return decodeInvite(id, data, s.now())
}

// Users

// SaveUser merges the user into its stored document: absent name and
// device token keep their stored values, the baby list is replaced.
func (s *Service) SaveUser(ctx context.Context, user models.User) (err error) {
	defer s.observe("save_user", time.Now(), &err)

	id := user.ID.String()
	err = s.store.Update(ctx, func(tx docstore.Tx) error {
		merged := user
		data, err := tx.Get(ctx, CollectionUsers, id)
		switch {
		case err == nil:
			if existing, decodeErr := decodeUser(id, data); decodeErr == nil {
				if merged.Name == nil {
					merged.Name = existing.Name
				}
				if merged.DeviceToken == nil {
					merged.DeviceToken = existing.DeviceToken
				}
			}
		case !errors.Is(err, docstore.ErrNotFound):
			return fmt.Errorf("failed to get user: %w", err)
		}

		encoded, err := encodeUser(merged)
		if err != nil {
			return fmt.Errorf("failed to encode user: %w", err)
		}
		return tx.Put(ctx, CollectionUsers, id, encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// dropUserBaby removes a baby from a stored user profile. Missing or
// unreadable profiles are left alone.
func (s *Service) dropUserBaby(ctx context.Context, tx docstore.Tx, userID, babyID uuid.UUID) error {
	id := userID.String()
	data, err := tx.Get(ctx, CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	user, err := decodeUser(id, data)
	if err != nil {
		s.skipMalformed(CollectionUsers, id, err)
		return nil
	}
	if !user.RemoveBaby(babyID) {
		return nil
	}

	encoded, err := encodeUser(*user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return tx.Put(ctx, CollectionUsers, id, encoded)
}

func (s *Service) FetchUser(ctx context.Context, userID uuid.UUID) (user *models.User, err error) {
	defer s.observe("fetch_user", time.Now(), &err)

	id := userID.String()
	data, err := s.store.Get(ctx, CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return decodeUser(id, data)
}
