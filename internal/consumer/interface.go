package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEvent is returned for events missing the user or processed key.
var ErrInvalidEvent = errors.New("invalid avatar-processed event")

// AvatarObjectRef identifies a stored object by its bucket and key.
type AvatarObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// AvatarProcessedObjects holds bucket+key refs for each processed size variant.
type AvatarProcessedObjects struct {
	Sm AvatarObjectRef `json:"sm"`
	Md AvatarObjectRef `json:"md"`
	Lg AvatarObjectRef `json:"lg"`
}

// AvatarProcessedEvent is published by the resize pipeline once the raw
// upload has been converted into its size variants.
type AvatarProcessedEvent struct {
	UserID    string                 `json:"user_id"`
	Raw       AvatarObjectRef        `json:"raw"`
	Processed AvatarProcessedObjects `json:"processed"`
	Timestamp int64                  `json:"timestamp"`
}

// AvatarKey is the variant shown on profiles: md, falling back to lg then sm.
func (e *AvatarProcessedEvent) AvatarKey() string {
	for _, ref := range []AvatarObjectRef{e.Processed.Md, e.Processed.Lg, e.Processed.Sm} {
		if ref.Key != "" {
			return ref.Key
		}
	}
	return ""
}

// DecodeAvatarProcessed parses and validates a message value.
func DecodeAvatarProcessed(value []byte) (*AvatarProcessedEvent, error) {
	var event AvatarProcessedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if event.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidEvent)
	}
	if event.AvatarKey() == "" {
		return nil, fmt.Errorf("%w: no processed variant", ErrInvalidEvent)
	}
	return &event, nil
}

// AvatarProcessedHandler handles incoming avatar-processed events.
type AvatarProcessedHandler interface {
	HandleAvatarProcessed(ctx context.Context, event *AvatarProcessedEvent) error
}

// AvatarProcessedConsumer defines the interface for consuming avatar-processed events.
type AvatarProcessedConsumer interface {
	Start(ctx context.Context) error
	Close() error
}

// AvatarUpdater stores a processed avatar on the user.
type AvatarUpdater interface {
	HandleAvatarProcessed(ctx context.Context, userID, key, rawKey string) error
}

type updaterHandler struct {
	updater AvatarUpdater
}

// NewAvatarHandler adapts an AvatarUpdater, usually the user service, to
// the consumer's handler interface.
func NewAvatarHandler(updater AvatarUpdater) AvatarProcessedHandler {
	return &updaterHandler{updater: updater}
}

func (h *updaterHandler) HandleAvatarProcessed(ctx context.Context, event *AvatarProcessedEvent) error {
	return h.updater.HandleAvatarProcessed(ctx, event.UserID, event.AvatarKey(), event.Raw.Key)
}
