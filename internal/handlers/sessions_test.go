package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"babyofficehours/internal/docstore"
	"babyofficehours/internal/models"
	"babyofficehours/internal/realtime"
	"babyofficehours/internal/remote"
	"babyofficehours/internal/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, idle time.Duration) (*SessionRegistry, *remote.Service) {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)

	sync := remote.New(docstore.NewMemoryStore(), realtime.NewLocalNotifier(), remote.WithLogger(logger))
	registry := NewSessionRegistry(sync, logger, idle)
	t.Cleanup(registry.Close)
	return registry, sync
}

func TestSessionRegistry_SharesOneSessionPerUser(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Minute)
	userID := uuid.New()

	var wg sync.WaitGroup
	sessions := make([]*service.Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := registry.Get(context.Background(), userID)
			assert.NoError(t, err)
			sessions[i] = s
		}()
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, registry.Len())

	other, err := registry.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotSame(t, sessions[0], other)
	assert.Equal(t, 2, registry.Len())
}

func TestSessionRegistry_LoadsStoredBabies(t *testing.T) {
	registry, sync := newTestRegistry(t, time.Minute)
	ctx := context.Background()

	owner := models.NewUser()
	owner.SetName("Alice")
	baby := models.NewBaby("Luna", owner.ID, time.Now())
	owner.Babies = append(owner.Babies, baby.ID)
	require.NoError(t, sync.SaveUser(ctx, *owner))
	require.NoError(t, sync.CreateOrReplaceBaby(ctx, *baby))

	session, err := registry.Get(ctx, owner.ID)
	require.NoError(t, err)
	currentUser := session.State().CurrentUser()
	assert.Equal(t, "Alice", currentUser.DisplayName())
	assert.True(t, session.State().IsCreator(baby.ID))
	assert.True(t, session.Watching(baby.ID))
}

func TestSessionRegistry_EvictsIdleSessions(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Minute)

	_, err := registry.Get(context.Background(), uuid.New())
	require.NoError(t, err)

	registry.evictIdle(time.Now())
	assert.Equal(t, 1, registry.Len())

	registry.evictIdle(time.Now().Add(2 * time.Minute))
	assert.Zero(t, registry.Len())
}

func TestSessionRegistry_CloseDropsEverything(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Minute)
	for range 3 {
		_, err := registry.Get(context.Background(), uuid.New())
		require.NoError(t, err)
	}

	registry.Close()
	assert.Zero(t, registry.Len())
}

func TestHealth_ReportsStartupProgress(t *testing.T) {
	status := NewStartupStatus()
	handler := NewHealthHandler(status, nil)

	status.SetCurrentStep(StepStore)
	status.CompleteStep(StepStore)

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody[healthResponse](t, rec)
	assert.Equal(t, "starting", body.Status)
	assert.Equal(t, 25, body.Progress)
	assert.Equal(t, StepStore, body.Current)
	require.Len(t, body.Steps, 4)
	assert.True(t, body.Steps[0].Completed)

	status.MarkReady()
	rec = httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[healthResponse](t, rec).Status)
}

func TestHealth_DegradedWhenRedisIsDown(t *testing.T) {
	status := NewStartupStatus()
	status.MarkReady()

	healthy := NewHealthHandler(status, func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	healthy.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[healthResponse](t, rec).Redis)

	down := NewHealthHandler(status, func(context.Context) error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	down.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody[healthResponse](t, rec)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "connection refused", body.Redis)
}
