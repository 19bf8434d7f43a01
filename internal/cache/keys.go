package cache

import (
	"fmt"
	"strings"
)

// Entity types with cached projections.
const (
	EntityProfile = "profile"
	EntityPost    = "post"
)

// GuestViewer is the viewer segment for anonymous reads.
const GuestViewer = "guest"

// KeyBuilder derives cache keys from (entity type, entity id, viewer).
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a KeyBuilder; prefix namespaces every key.
func NewKeyBuilder(prefix string) KeyBuilder {
	return KeyBuilder{prefix: prefix}
}

// Key returns {prefix}:{entityType}:{entityID}:{viewerID|guest}.
// Entity ids are lower-cased so usernames match case-insensitively.
func (b KeyBuilder) Key(entityType, entityID, viewerID string) string {
	if viewerID == "" {
		viewerID = GuestViewer
	}
	return fmt.Sprintf("%s:%s:%s:%s", b.prefix, entityType, strings.ToLower(entityID), viewerID)
}

// Profile returns the profile key for username as seen by viewerID.
func (b KeyBuilder) Profile(username, viewerID string) string {
	return b.Key(EntityProfile, username, viewerID)
}

// Canonical returns the keys that are always invalidated for an entity:
// the guest variant and, when ownerID is known, the owner's own variant.
func (b KeyBuilder) Canonical(entityType, entityID, ownerID string) []string {
	keys := []string{b.Key(entityType, entityID, GuestViewer)}
	if ownerID != "" {
		keys = append(keys, b.Key(entityType, entityID, ownerID))
	}
	return keys
}
