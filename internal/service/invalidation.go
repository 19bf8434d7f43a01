package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-social/internal/cache"
	"github.com/weiawesome/wes-io-social/internal/domain"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

// cacheInvalidator deletes the cache keys derived from a changed entity.
// The guest variant and the owner's own variant are always deleted, plus
// any viewer variants the caller names; the rest expire by TTL.
type cacheInvalidator struct {
	cache   cache.Cache
	keys    cache.KeyBuilder
	timeout time.Duration
}

// NewInvalidator creates the cache invalidation policy.
func NewInvalidator(c cache.Cache, keys cache.KeyBuilder, opTimeout time.Duration) Invalidator {
	return &cacheInvalidator{cache: c, keys: keys, timeout: opTimeout}
}

// Invalidate deletes the canonical keys of one entity.
func (i *cacheInvalidator) Invalidate(ctx context.Context, entityType, entityID string) {
	i.delete(ctx, i.keys.Canonical(entityType, entityID, ""))
}

// InvalidateUser deletes the guest and self variants of the user's profile
// and the variants cached for each of viewerIDs.
func (i *cacheInvalidator) InvalidateUser(ctx context.Context, user *domain.User, viewerIDs ...string) {
	if user == nil {
		return
	}
	keys := i.keys.Canonical(cache.EntityProfile, user.Username, user.ID)
	seen := map[string]struct{}{user.ID: {}}
	for _, id := range viewerIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, i.keys.Profile(user.Username, id))
	}
	i.delete(ctx, keys)
}

// InvalidatePair handles both parties of a follow edge, including the two
// cross-viewer variants whose relationship status just changed.
func (i *cacheInvalidator) InvalidatePair(ctx context.Context, a, b *domain.User) {
	var keys []string
	if a != nil {
		keys = append(keys, i.keys.Canonical(cache.EntityProfile, a.Username, a.ID)...)
	}
	if b != nil {
		keys = append(keys, i.keys.Canonical(cache.EntityProfile, b.Username, b.ID)...)
	}
	if a != nil && b != nil {
		keys = append(keys,
			i.keys.Profile(a.Username, b.ID),
			i.keys.Profile(b.Username, a.ID),
		)
	}
	i.delete(ctx, keys)
}

// InvalidatePost deletes the post's keys and the author's profile, whose
// stats and recent posts derive from it.
func (i *cacheInvalidator) InvalidatePost(ctx context.Context, post *domain.Post, author *domain.User) {
	var keys []string
	if post != nil {
		keys = append(keys, i.keys.Canonical(cache.EntityPost, post.ID, post.AuthorID)...)
	}
	if author != nil {
		keys = append(keys, i.keys.Canonical(cache.EntityProfile, author.Username, author.ID)...)
	}
	i.delete(ctx, keys)
}

func (i *cacheInvalidator) delete(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	opCtx, cancel := withTimeout(context.WithoutCancel(ctx), i.timeout)
	defer cancel()

	if err := i.cache.Delete(opCtx, keys...); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed, entries expire by ttl")
	}
}

var _ Invalidator = (*cacheInvalidator)(nil)
