package pubsub

import (
	"context"
	"sync"
)

// loopback is an in-process PubSub used when no Redis is configured and in
// tests. Published messages are fanned out to local subscribers only.
type loopback struct {
	mu       sync.Mutex
	closed   bool
	channels map[string][]chan Message
}

func NewLoopback() PubSub {
	return &loopback{
		channels: make(map[string][]chan Message),
	}
}

func (l *loopback) Publish(ctx context.Context, channel string, message string) error {
	l.mu.Lock()
	subs := append([]chan Message(nil), l.channels[channel]...)
	l.mu.Unlock()

	msg := Message{Channel: channel, Payload: message}
	for _, ch := range subs {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (l *loopback) Subscribe(ctx context.Context, channels ...string) (<-chan Message, error) {
	out := make(chan Message, 16)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, channel := range channels {
		l.channels[channel] = append(l.channels[channel], out)
	}
	return out, nil
}

func (l *loopback) Unsubscribe(ctx context.Context, channels ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, channel := range channels {
		delete(l.channels, channel)
	}
	return nil
}

func (l *loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.channels = make(map[string][]chan Message)
	return nil
}
