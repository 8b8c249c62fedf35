package mq

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/projecthub/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// ErrDiscard marks a handler error as permanent. The message is dropped
// instead of being redelivered.
var ErrDiscard = errors.New("discard message")

// Handler processes a message. Return an error to signal a retry/nack, or
// one wrapping ErrDiscard to drop a message that can never succeed.
type Handler func(ctx context.Context, msg Message) error

// Requeue reports whether a message whose handler returned err should be
// delivered again.
func Requeue(err error) bool {
	return err != nil && !errors.Is(err, ErrDiscard)
}

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open builds the backend selected by cfg.Backend. An empty or "none"
// backend yields a Noop backend so the server can run without a broker.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return New(Noop{}), nil
	case "rabbitmq":
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, oops.In("mq").With("backend", "rabbitmq").Wrapf(err, "connect")
		}
		return New(backend), nil
	case "pubsub":
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, oops.In("mq").With("backend", "pubsub").Wrapf(err, "connect")
		}
		return New(backend), nil
	default:
		return nil, oops.In("mq").Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

// Noop discards published messages. Subscribe blocks until ctx is done.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (Noop) Subscribe(ctx context.Context, _ string, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Noop) Close() error { return nil }
