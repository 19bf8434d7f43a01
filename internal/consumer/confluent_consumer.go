package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

const handleTimeout = 10 * time.Second

// ConfluentConsumer implements AvatarProcessedConsumer using confluent-kafka-go.
type ConfluentConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  AvatarProcessedHandler
	started  bool
	doneCh   chan struct{}
}

// NewConfluentConsumer creates a new Kafka consumer for avatar-processed events.
func NewConfluentConsumer(brokers, topic, groupID string, handler AvatarProcessedHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start subscribes and consumes in the background until ctx is cancelled.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cc.topic, err)
	}

	l := pkglog.L()
	l.Info().Str("topic", cc.topic).Msg("avatar-processed consumer started")

	cc.started = true
	go cc.consumeLoop(ctx)

	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(cc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("avatar-processed consumer shutting down")
			return
		default:
			msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("avatar-processed consumer error")
				continue
			}

			cc.processMessage(ctx, msg)
		}
	}
}

func (cc *ConfluentConsumer) processMessage(ctx context.Context, msg *kafka.Message) {
	l := pkglog.L()

	event, err := DecodeAvatarProcessed(msg.Value)
	if err != nil {
		l.Error().Err(err).Msg("dropping avatar-processed event")
		return
	}

	el := l.With().Str(pkglog.FieldUserID, event.UserID).Logger()
	el.Info().Str("key", event.AvatarKey()).Msg("received avatar-processed event")

	hctx, cancel := context.WithTimeout(pkglog.WithLogger(ctx, el), handleTimeout)
	defer cancel()
	if err := cc.handler.HandleAvatarProcessed(hctx, event); err != nil {
		el.Error().Err(err).Msg("failed to handle avatar-processed event")
	}
}

// Close waits for the consume loop to exit, then releases the consumer.
// The context passed to Start must be cancelled first.
func (cc *ConfluentConsumer) Close() error {
	if cc.started {
		<-cc.doneCh
	}
	if err := cc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}

var _ AvatarProcessedConsumer = (*ConfluentConsumer)(nil)
