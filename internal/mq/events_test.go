package mq_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub/apiserver/config"
	"github.com/projecthub/apiserver/internal/logging"
	"github.com/projecthub/apiserver/internal/mq"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
	ctxErr  error
}

type fakeBackend struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (b *fakeBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.messages = append(b.messages, published{channel: channel, data: data, attrs: attrs, ctxErr: ctx.Err()})
	return "msg-1", nil
}

func (b *fakeBackend) Subscribe(ctx context.Context, _ string, _ mq.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *fakeBackend) Close() error { return nil }

func TestEventPublisher_Publish(t *testing.T) {
	backend := &fakeBackend{}
	publisher := mq.NewEventPublisher(mq.New(backend), logging.New(&bytes.Buffer{}, "error"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	publisher.Publish(ctx, "project.created", map[string]string{"projectId": "p1"})

	require.Len(t, backend.messages, 1)
	msg := backend.messages[0]
	assert.Equal(t, "project.created", msg.channel)
	assert.NoError(t, msg.ctxErr, "caller cancellation must not abort the publish")
	assert.Equal(t, "project.created", msg.attrs[mq.AttrEvent])
	_, err := time.Parse(time.RFC3339Nano, msg.attrs[mq.AttrOccurredAt])
	assert.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(msg.data, &payload))
	assert.Equal(t, "p1", payload["projectId"])
}

func TestEventPublisher_FailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	backend := &fakeBackend{err: errors.New("broker down")}
	publisher := mq.NewEventPublisher(mq.New(backend), logging.New(&logs, "info"))

	publisher.Publish(context.Background(), "user.registered", struct{}{})

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))
	assert.Equal(t, "publish event failed", record["msg"])
	assert.Contains(t, record["error"], "broker down")
}

type hangingBackend struct{ fakeBackend }

func (b *hangingBackend) Publish(ctx context.Context, _ string, _ []byte, _ map[string]string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestEventPublisher_TimeoutBoundsSlowBroker(t *testing.T) {
	var logs bytes.Buffer
	publisher := mq.NewEventPublisher(mq.New(&hangingBackend{}), logging.New(&logs, "info")).
		WithTimeout(50 * time.Millisecond)

	start := time.Now()
	publisher.Publish(context.Background(), "project.created", struct{}{})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, logs.String(), "publish event failed")
	assert.Contains(t, logs.String(), "deadline exceeded")
}

func TestEventPublisher_UnencodablePayload(t *testing.T) {
	var logs bytes.Buffer
	backend := &fakeBackend{}
	publisher := mq.NewEventPublisher(mq.New(backend), logging.New(&logs, "info"))

	publisher.Publish(context.Background(), "user.registered", make(chan int))

	assert.Empty(t, backend.messages)
	assert.Contains(t, logs.String(), "encode event failed")
}

func TestOpen(t *testing.T) {
	queue, err := mq.Open(context.Background(), config.MQConfig{Backend: "none"})
	require.NoError(t, err)
	_, err = queue.Publish(context.Background(), "project.deleted", []byte("{}"), nil)
	assert.NoError(t, err)
	assert.NoError(t, queue.Close())

	_, err = mq.Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = mq.Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.Error(t, err, "rabbitmq without a url is rejected")
}

func TestRequeue(t *testing.T) {
	assert.False(t, mq.Requeue(nil))
	assert.True(t, mq.Requeue(errors.New("database busy")))
	assert.False(t, mq.Requeue(mq.ErrDiscard))
	assert.False(t, mq.Requeue(fmt.Errorf("%w: decode event m1: bad json", mq.ErrDiscard)))
}
