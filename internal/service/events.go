package service

import (
	"context"
	"time"

	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

const publishTimeout = 2 * time.Second

// eventSink publishes domain events best-effort. A failed publish is
// logged and never fails the operation that produced it.
type eventSink struct {
	publisher pubsub.Publisher
	topic     string
}

func newEventSink(publisher pubsub.Publisher, topic string) eventSink {
	if publisher == nil {
		publisher = pubsub.NopPublisher{}
	}
	return eventSink{publisher: publisher, topic: topic}
}

func (s eventSink) publish(ctx context.Context, eventType, key string, payload interface{}) {
	l := pkglog.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, key, payload)
	if err != nil {
		l.Warn().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, s.topic, event); err != nil {
		l.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
