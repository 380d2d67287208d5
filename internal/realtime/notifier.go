// Package realtime signals that a stored document changed so that
// subscribers can re-read it.
package realtime

import "context"

// Listener receives change signals for one topic. Signals carry no payload
// and are coalesced: a slow reader sees at least one signal after the last change.
type Listener interface {
	C() <-chan struct{}
	Close()
}

// Notifier fans change signals out to listeners
type Notifier interface {
	Publish(ctx context.Context, topic string) error
	Listen(ctx context.Context, topic string) (Listener, error)
	Close() error
}

// signal delivers without blocking; a pending signal already covers this one
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
