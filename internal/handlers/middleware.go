package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"babyofficehours/internal/metrics"
	"babyofficehours/internal/security"
	"babyofficehours/internal/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey  ContextKey = "user_id"
	SessionContextKey ContextKey = "session"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	sessions    *SessionRegistry
	limiter     *security.RateLimiter
	metrics     *metrics.Metrics
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService, sessions *SessionRegistry, limiter *security.RateLimiter, m *metrics.Metrics) *Middleware {
	return &Middleware{
		authService: authService,
		sessions:    sessions,
		limiter:     limiter,
		metrics:     m,
	}
}

// RequireAuth validates the bearer token and attaches the user's session
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		userID, err := m.authService.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		session, err := m.sessions.Get(r.Context(), userID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to load session", err)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
		ctx = context.WithValue(ctx, SessionContextKey, session)
		next(w, r.WithContext(ctx))
	}
}

// RateLimit rejects clients that exceed their per-IP budget
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil && !m.limiter.Allow(security.GetClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			respondWithError(w, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer for flushing
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logging middleware logs HTTP requests and counts them by route
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		if m.metrics != nil && r.Pattern != "" {
			m.metrics.ObserveHTTP(r.Pattern, rec.status)
		}
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("HTTP request")
	})
}

// GetUserIDFromContext retrieves the signed-in user id from the request context
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	id, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

// GetSessionFromContext retrieves the user's session from the request context
func GetSessionFromContext(ctx context.Context) *service.Session {
	s, ok := ctx.Value(SessionContextKey).(*service.Session)
	if !ok {
		return nil
	}
	return s
}
