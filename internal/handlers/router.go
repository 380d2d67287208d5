package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes bundles the handlers served by the API
type Routes struct {
	Middleware *Middleware
	Auth       *AuthHandler
	Babies     *BabyHandler
	Invites    *InviteHandler
	Health     *HealthHandler
	Gatherer   prometheus.Gatherer
}

// NewRouter registers every route and wraps the mux with request logging
func NewRouter(rt Routes) http.Handler {
	m := rt.Middleware
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return m.RateLimit(m.RequireAuth(h))
	}

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", rt.Health.Health)
	if rt.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(rt.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("POST /auth/anonymous", m.RateLimit(rt.Auth.SignInAnonymously))

	// User
	mux.HandleFunc("GET /me", authed(rt.Auth.Me))
	mux.HandleFunc("PUT /me", authed(rt.Auth.UpdateMe))

	// Babies
	mux.HandleFunc("GET /babies", authed(rt.Babies.ListBabies))
	mux.HandleFunc("POST /babies", authed(rt.Babies.CreateBaby))
	mux.HandleFunc("GET /babies/{id}", authed(rt.Babies.GetBaby))
	mux.HandleFunc("PUT /babies/{id}", authed(rt.Babies.RenameBaby))
	mux.HandleFunc("DELETE /babies/{id}", authed(rt.Babies.DeleteBaby))
	mux.HandleFunc("POST /babies/{id}/availability/toggle", authed(rt.Babies.ToggleAvailability))
	mux.HandleFunc("PUT /babies/{id}/availability", authed(rt.Babies.SetAvailability))
	mux.HandleFunc("DELETE /babies/{id}/parents/{userID}", authed(rt.Babies.RemoveCoParent))
	mux.HandleFunc("DELETE /babies/{id}/subscribers/{userID}", authed(rt.Babies.RemoveSubscriber))
	mux.HandleFunc("GET /babies/{id}/events", m.RequireAuth(rt.Babies.Events))

	// Invites
	mux.HandleFunc("GET /babies/{id}/invites", authed(rt.Invites.ListInvites))
	mux.HandleFunc("POST /babies/{id}/invites", authed(rt.Invites.CreateInvite))
	mux.HandleFunc("DELETE /invites/{id}", authed(rt.Invites.CancelInvite))
	mux.HandleFunc("POST /invites/{id}/email", authed(rt.Invites.EmailInvite))
	mux.HandleFunc("POST /invites/redeem", authed(rt.Invites.RedeemInvite))

	return m.Logging(mux)
}
