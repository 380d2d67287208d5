package realtime

import (
	"context"
	"sync"
)

// LocalNotifier delivers signals to listeners in the same process
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[string]map[*localListener]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[string]map[*localListener]struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for l := range n.listeners[topic] {
		signal(l.ch)
	}
	return nil
}

func (n *LocalNotifier) Listen(_ context.Context, topic string) (Listener, error) {
	l := &localListener{ch: make(chan struct{}, 1), topic: topic, hub: n}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners[topic] == nil {
		n.listeners[topic] = make(map[*localListener]struct{})
	}
	n.listeners[topic][l] = struct{}{}
	return l, nil
}

// Close detaches every listener and closes their channels
func (n *LocalNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for topic, set := range n.listeners {
		for l := range set {
			l.closeLocked()
		}
		delete(n.listeners, topic)
	}
	return nil
}

func (n *LocalNotifier) remove(l *localListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if set, ok := n.listeners[l.topic]; ok {
		delete(set, l)
		if len(set) == 0 {
			delete(n.listeners, l.topic)
		}
	}
	l.closeLocked()
}

type localListener struct {
	ch     chan struct{}
	topic  string
	hub    *LocalNotifier
	closed bool
}

func (l *localListener) C() <-chan struct{} {
	return l.ch
}

func (l *localListener) Close() {
	l.hub.remove(l)
}

// closeLocked must be called with the hub lock held
func (l *localListener) closeLocked() {
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}
