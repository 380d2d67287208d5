package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"babyofficehours/internal/models"
	"babyofficehours/internal/realtime"
	"babyofficehours/internal/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// subscription streams snapshots of one baby. It re-reads the document
// after every change signal, so events always carry current state.
type subscription struct {
	babyID   uuid.UUID
	listener realtime.Listener
	events   chan models.BabyEvent
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	onCancel func(*subscription)
}

func (s *subscription) Events() <-chan models.BabyEvent {
	return s.events
}

// Cancel stops delivery and waits for the pump to exit. Events is closed
// afterwards. Safe to call more than once.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.listener.Close()
		s.wg.Wait()
		if s.onCancel != nil {
			s.onCancel(s)
		}
	})
}

func (s *subscription) send(event models.BabyEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.done:
		return false
	}
}

// SubscribeToBaby delivers the current baby immediately and again after
// every change. A deleted or unreadable document is delivered as a removal.
func (s *Service) SubscribeToBaby(ctx context.Context, babyID uuid.UUID) (service.Subscription, error) {
	listener, err := s.notifier.Listen(ctx, babyID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen for baby changes: %w", err)
	}

	sub := &subscription{
		babyID:   babyID,
		listener: listener,
		events:   make(chan models.BabyEvent, 1),
		done:     make(chan struct{}),
		onCancel: s.forget,
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SubscriptionOpened()
	}

	sub.wg.Add(1)
	go s.pump(sub)

	return sub, nil
}

func (s *Service) pump(sub *subscription) {
	defer sub.wg.Done()
	defer close(sub.events)

	// Reads are not bound to the caller's context; the subscription
	// lives until Cancel.
	ctx := context.Background()
	logger := s.logger.WithField("baby_id", sub.babyID)

	if !sub.send(s.snapshot(ctx, sub.babyID, logger)) {
		return
	}
	for {
		select {
		case <-sub.done:
			return
		case _, ok := <-sub.listener.C():
			if !ok {
				return
			}
			if !sub.send(s.snapshot(ctx, sub.babyID, logger)) {
				return
			}
		}
	}
}

func (s *Service) snapshot(ctx context.Context, babyID uuid.UUID, logger *log.Entry) models.BabyEvent {
	baby, err := s.FetchBaby(ctx, babyID)
	if err != nil {
		logger.WithError(err).Warn("Failed to read baby for subscription")
		if s.metrics != nil && errors.Is(err, service.ErrMalformedDocument) {
			s.metrics.IncrementMalformed(CollectionBabies)
		}
		return models.BabyEvent{BabyID: babyID}
	}
	return models.BabyEvent{BabyID: babyID, Baby: baby}
}

func (s *Service) forget(sub *subscription) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	delete(s.subs, sub)
	s.mu.Unlock()
	if ok && s.metrics != nil {
		s.metrics.SubscriptionClosed()
	}
}

// UnsubscribeAll cancels every live subscription
func (s *Service) UnsubscribeAll() {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
