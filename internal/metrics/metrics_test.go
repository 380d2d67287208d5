package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStore(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveStore("fetch_baby", time.Now(), nil)
	m.ObserveStore("fetch_baby", time.Now(), errors.New("down"))
	m.ObserveStore("fetch_baby", time.Now(), nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("fetch_baby", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("fetch_baby", "error")))
}

func TestSubscriptionGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSubscriptions))
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 503: "5xx"}
	for status, want := range tests {
		assert.Equal(t, want, statusClass(status))
	}
}
