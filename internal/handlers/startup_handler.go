package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Startup steps reported by /health while the server initializes
const (
	StepStore     = "Document store"
	StepNotifier  = "Realtime notifier"
	StepServices  = "Services"
	StepListening = "Listening"
)

// StartupStatus tracks the initialization progress
type StartupStatus struct {
	mu       sync.RWMutex
	Ready    bool
	Current  string
	Progress int
	Steps    []StartupStep
}

type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// NewStartupStatus creates a status with the default steps pending
func NewStartupStatus() *StartupStatus {
	return &StartupStatus{
		Current: "Initializing...",
		Steps: []StartupStep{
			{Name: StepStore},
			{Name: StepNotifier},
			{Name: StepServices},
			{Name: StepListening},
		},
	}
}

// SetCurrentStep updates the current initialization step
func (s *StartupStatus) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Current = step
}

// CompleteStep marks a step as completed and updates progress
func (s *StartupStatus) CompleteStep(stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.Steps {
		if s.Steps[i].Name == stepName {
			s.Steps[i].Completed = true
			break
		}
	}

	completed := 0
	for _, step := range s.Steps {
		if step.Completed {
			completed++
		}
	}
	s.Progress = (completed * 100) / len(s.Steps)
}

// MarkReady marks the server as fully initialized
func (s *StartupStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ready = true
	s.Current = "Server ready"
	s.Progress = 100
}

// IsReady returns whether the server is fully initialized
func (s *StartupStatus) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Ready
}

type healthResponse struct {
	Status   string        `json:"status"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps,omitempty"`
	Redis    string        `json:"redis,omitempty"`
}

// HealthCheck reports a dependency's health, e.g. the redis ping
type HealthCheck func(ctx context.Context) error

// HealthHandler serves /health: 503 while starting or when a dependency is down
type HealthHandler struct {
	status *StartupStatus
	redis  HealthCheck
}

// NewHealthHandler creates a health handler. redis may be nil.
func NewHealthHandler(status *StartupStatus, redis HealthCheck) *HealthHandler {
	return &HealthHandler{status: status, redis: redis}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.status.mu.RLock()
	resp := healthResponse{
		Status:   "starting",
		Current:  h.status.Current,
		Progress: h.status.Progress,
		Steps:    append([]StartupStep(nil), h.status.Steps...),
	}
	ready := h.status.Ready
	h.status.mu.RUnlock()

	if !ready {
		respondWithJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Status = "ok"
	resp.Steps = nil
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis(ctx); err != nil {
			resp.Status = "degraded"
			resp.Redis = err.Error()
			respondWithJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Redis = "ok"
	}
	respondWithJSON(w, http.StatusOK, resp)
}
