package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const channelPrefix = "babyofficehours:changes:"

// RedisClient wraps the go-redis client with health checking capabilities
type RedisClient struct {
	*redis.Client
}

// NewRedisClient connects to the server at url.
// Returns nil if the URL is empty (Redis not configured).
func NewRedisClient(ctx context.Context, url string) (*RedisClient, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisClient{Client: client}, nil
}

// Health checks if the Redis connection is healthy
func (c *RedisClient) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RedisNotifier shares change signals between server instances over Redis pub/sub
type RedisNotifier struct {
	client *RedisClient
	logger *log.Entry

	mu        sync.Mutex
	listeners map[*redisListener]struct{}
}

func NewRedisNotifier(client *RedisClient, logger *log.Logger) *RedisNotifier {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RedisNotifier{
		client:    client,
		logger:    logger.WithField("component", "redis_notifier"),
		listeners: make(map[*redisListener]struct{}),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, topic string) error {
	if err := n.client.Publish(ctx, channelPrefix+topic, "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish change for %s: %w", topic, err)
	}
	return nil
}

// Listen subscribes to the topic channel. The subscription is confirmed
// before returning so no publish after Listen is missed.
func (n *RedisNotifier) Listen(ctx context.Context, topic string) (Listener, error) {
	ps := n.client.Subscribe(ctx, channelPrefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	l := &redisListener{
		ps:   ps,
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
		hub:  n,
	}
	n.mu.Lock()
	n.listeners[l] = struct{}{}
	n.mu.Unlock()

	go l.pump(n.logger.WithField("topic", topic))
	return l, nil
}

// Close closes every listener. The Redis client is owned by the caller.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	listeners := n.listeners
	n.listeners = make(map[*redisListener]struct{})
	n.mu.Unlock()

	for l := range listeners {
		l.shutdown()
	}
	return nil
}

type redisListener struct {
	ps   *redis.PubSub
	ch   chan struct{}
	done chan struct{}
	once sync.Once
	hub  *RedisNotifier
}

func (l *redisListener) pump(logger *log.Entry) {
	defer close(l.ch)
	msgs := l.ps.Channel()
	for {
		select {
		case <-l.done:
			return
		case _, ok := <-msgs:
			if !ok {
				logger.Debug("Redis subscription channel closed")
				return
			}
			signal(l.ch)
		}
	}
}

func (l *redisListener) C() <-chan struct{} {
	return l.ch
}

func (l *redisListener) Close() {
	l.hub.mu.Lock()
	delete(l.hub.listeners, l)
	l.hub.mu.Unlock()
	l.shutdown()
}

func (l *redisListener) shutdown() {
	l.once.Do(func() {
		close(l.done)
		if err := l.ps.Close(); err != nil {
			l.hub.logger.WithError(err).Warn("Failed to close redis subscription")
		}
	})
}
