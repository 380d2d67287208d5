package security

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "other clients keep their own bucket")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_CleanupDropsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(time.Minute)
	rl.Allow("10.0.0.2")

	now = now.Add(150 * time.Second)
	rl.cleanup()
	assert.Equal(t, 1, rl.visitorCount())
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.1:80", want: "198.51.100.4"},
		{name: "no port", remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}
