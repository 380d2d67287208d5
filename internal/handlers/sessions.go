package handlers

import (
	"context"
	"sync"
	"time"

	"babyofficehours/internal/models"
	"babyofficehours/internal/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SessionRegistry keeps one loaded Session per signed-in user. Sessions
// watch their babies, so their state stays current between requests.
type SessionRegistry struct {
	sync   service.SyncService
	logger *log.Logger
	idle   time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*registryEntry
}

type registryEntry struct {
	ready    chan struct{}
	session  *service.Session
	err      error
	lastUsed time.Time
}

// NewSessionRegistry creates a registry. Sessions unused for idle are closed by Run.
func NewSessionRegistry(syncService service.SyncService, logger *log.Logger, idle time.Duration) *SessionRegistry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SessionRegistry{
		sync:     syncService,
		logger:   logger,
		idle:     idle,
		sessions: make(map[uuid.UUID]*registryEntry),
	}
}

// Get returns the session of userID, loading it from the store on first use.
// Concurrent first requests share one load.
func (r *SessionRegistry) Get(ctx context.Context, userID uuid.UUID) (*service.Session, error) {
	r.mu.Lock()
	entry, ok := r.sessions[userID]
	if ok {
		entry.lastUsed = time.Now()
		r.mu.Unlock()
		<-entry.ready
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.session, nil
	}
	entry = &registryEntry{ready: make(chan struct{}), lastUsed: time.Now()}
	r.sessions[userID] = entry
	r.mu.Unlock()

	state := service.NewAppState(&models.User{ID: userID, Babies: []uuid.UUID{}})
	session := service.NewSession(state, r.sync, r.logger, service.WithAutoWatch())
	// The session outlives this request.
	if err := session.Load(context.WithoutCancel(ctx)); err != nil {
		session.Close()
		entry.err = err
		r.mu.Lock()
		delete(r.sessions, userID)
		r.mu.Unlock()
		close(entry.ready)
		return nil, err
	}
	r.mu.Lock()
	entry.session = session
	r.mu.Unlock()
	close(entry.ready)
	return session, nil
}

// Run closes idle sessions until ctx is done
func (r *SessionRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictIdle(time.Now())
		}
	}
}

func (r *SessionRegistry) evictIdle(now time.Time) {
	r.mu.Lock()
	var idle []*service.Session
	for id, entry := range r.sessions {
		if entry.session != nil && now.Sub(entry.lastUsed) > r.idle {
			idle = append(idle, entry.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		r.logger.WithField("sessions", len(idle)).Debug("Closed idle sessions")
	}
}

// Close closes every session
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	entries := r.sessions
	r.sessions = make(map[uuid.UUID]*registryEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		<-entry.ready
		if entry.session != nil {
			entry.session.Close()
		}
	}
}

// Len reports how many sessions are open
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
