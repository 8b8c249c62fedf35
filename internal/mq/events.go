package mq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/projecthub/apiserver/internal/logging"
)

const defaultPublishTimeout = 5 * time.Second

// Attributes attached to every event message. RabbitMQ also copies them to
// the message type and timestamp.
const (
	AttrEvent      = "event"
	AttrOccurredAt = "occurred_at"
)

// EventPublisher encodes domain events as JSON and hands them to the broker.
// Failures are logged and swallowed so a write never fails because the
// broker is down.
type EventPublisher struct {
	mq      *MQ
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewEventPublisher(mq *MQ, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		mq:      mq,
		logger:  logger,
		timeout: defaultPublishTimeout,
		now:     time.Now,
	}
}

// WithTimeout returns a copy of p that gives up on the broker after d.
func (p *EventPublisher) WithTimeout(d time.Duration) *EventPublisher {
	clone := *p
	clone.timeout = d
	return &clone
}

// Publish sends payload on topic. The caller's cancellation does not stop
// the publish. It blocks for at most the publisher's timeout instead, so a
// slow broker delays the calling request by that much.
func (p *EventPublisher) Publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.LogError(p.logger, "encode event failed",
			oops.In("mq").With("topic", topic).Wrap(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	attrs := map[string]string{
		AttrEvent:      topic,
		AttrOccurredAt: p.now().UTC().Format(time.RFC3339Nano),
	}
	id, err := p.mq.Publish(ctx, topic, data, attrs)
	if err != nil {
		logging.LogError(p.logger, "publish event failed",
			oops.In("mq").With("topic", topic).Wrap(err))
		return
	}
	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("message_id", id),
	)
}
