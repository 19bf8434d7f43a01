package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-social/internal/audit"
	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/repository"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

// followService keeps following(actor) and followers(target) in step using
// two independent single-document writes.
type followService struct {
	users       repository.UserRepository
	invalidator Invalidator
	repairs     RepairQueue
	events      eventSink
	timeouts    Timeouts
}

// NewFollowService creates a FollowService.
func NewFollowService(
	users repository.UserRepository,
	invalidator Invalidator,
	repairs RepairQueue,
	publisher pubsub.Publisher,
	topic string,
	timeouts Timeouts,
) FollowService {
	return &followService{
		users:       users,
		invalidator: invalidator,
		repairs:     repairs,
		events:      newEventSink(publisher, topic),
		timeouts:    timeouts,
	}
}

// Follow adds targetID to following(actorID) and actorID to followers(targetID).
func (s *followService) Follow(ctx context.Context, actorID, targetID string) (*domain.FollowResult, error) {
	return s.mutate(ctx, OpFollow, actorID, targetID)
}

// Unfollow removes the edge in the same order Follow adds it.
func (s *followService) Unfollow(ctx context.Context, actorID, targetID string) (*domain.FollowResult, error) {
	return s.mutate(ctx, OpUnfollow, actorID, targetID)
}

func (s *followService) mutate(ctx context.Context, op, actorID, targetID string) (*domain.FollowResult, error) {
	if actorID == targetID {
		return nil, ErrSelfReference
	}

	// Once started, the two writes run to completion even if the client goes away.
	ctx = context.WithoutCancel(ctx)
	l := pkglog.Ctx(ctx).With().
		Str(pkglog.FieldActorID, actorID).
		Str(pkglog.FieldTargetID, targetID).
		Str("operation", op).
		Logger()

	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}

	following := actor.IsFollowing(targetID)
	if op == OpFollow && following {
		return nil, ErrAlreadyFollowing
	}
	if op == OpUnfollow && !following {
		return nil, ErrNotFollowing
	}

	write := s.users.AddToSet
	if op == OpUnfollow {
		write = s.users.RemoveFromSet
	}

	followingCount, err := s.write(ctx, write, actorID, repository.SetFollowing, targetID)
	if err != nil {
		l.Error().Err(err).Msg("failed to update following set")
		return nil, fmt.Errorf("failed to update following set: %w", mapRepoError(err))
	}

	followersCount, err := s.write(ctx, write, targetID, repository.SetFollowers, actorID)
	if err != nil {
		return nil, s.partial(ctx, l, op, actor, target, err)
	}

	s.invalidator.InvalidatePair(ctx, actor, target)

	eventType, action := pubsub.EventUserFollowed, audit.ActionFollow
	if op == OpUnfollow {
		eventType, action = pubsub.EventUserUnfollowed, audit.ActionUnfollow
	}
	s.events.publish(ctx, eventType, actorID, pubsub.FollowPayload{
		ActorID:        actorID,
		TargetID:       targetID,
		FollowingCount: followingCount,
		FollowersCount: followersCount,
	})
	audit.LogTarget(ctx, action, actorID, targetID, op+" completed")

	return &domain.FollowResult{
		CurrentUserFollowingCount: followingCount,
		TargetUserFollowersCount:  followersCount,
	}, nil
}

type setWriter func(ctx context.Context, userID string, set repository.EdgeSet, memberID string) (int, error)

func (s *followService) write(ctx context.Context, fn setWriter, userID string, set repository.EdgeSet, memberID string) (int, error) {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	return fn(qctx, userID, set, memberID)
}

// loadPair reads both users and checks the preconditions on the snapshot.
func (s *followService) loadPair(ctx context.Context, actorID, targetID string) (*domain.User, *domain.User, error) {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()

	users, err := s.users.GetByIDs(qctx, []string{actorID, targetID})
	if err != nil {
		return nil, nil, err
	}

	target, ok := users[targetID]
	if !ok || !target.IsActive {
		return nil, nil, ErrUserNotFound
	}
	actor, ok := users[actorID]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	if !actor.IsActive {
		return nil, nil, ErrForbidden
	}
	return actor, target, nil
}

// partial records a follow edge whose second half failed to write. The first
// write is not rolled back; the reconciler restores followers(target).
func (s *followService) partial(ctx context.Context, l zerolog.Logger, op string, actor, target *domain.User, cause error) error {
	perr := &PartialGraphUpdateError{
		Operation: op,
		ActorID:   actor.ID,
		TargetID:  target.ID,
		Err:       cause,
	}
	l.Error().Err(cause).Msg("partial graph update: followers set not written")

	// following(actor) changed, so the pair's cached views are stale either way.
	s.invalidator.InvalidatePair(ctx, actor, target)

	if s.repairs != nil {
		qctx, cancel := withTimeout(ctx, s.timeouts.Query)
		defer cancel()
		if err := s.repairs.Enqueue(qctx, domain.EdgeRepair{ActorID: actor.ID, TargetID: target.ID}); err != nil {
			l.Error().Err(err).Msg("failed to enqueue edge repair")
		}
	}
	audit.LogTarget(ctx, audit.ActionPartialUpdate, actor.ID, target.ID, op+" left followers set unchanged")
	return perr
}

var _ FollowService = (*followService)(nil)
