package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-social/internal/audit"
	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/repository"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

const (
	defaultInterval  = 30 * time.Second
	defaultBatchSize = 100
)

// Config controls the reconciliation loop.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// Invalidator drops cached views of a repaired edge.
type Invalidator interface {
	InvalidatePair(ctx context.Context, a, b *domain.User)
}

// Reconciler drains the repair queue, making followers(target) agree with
// following(actor) for each queued edge.
type Reconciler struct {
	queue       Queue
	users       repository.UserRepository
	invalidator Invalidator
	cfg         Config
	now         func() time.Time

	mu     sync.Mutex // one pass at a time
	quit   chan struct{}
	doneCh chan struct{}
}

// New creates a new Reconciler.
func New(queue Queue, users repository.UserRepository, invalidator Invalidator, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Reconciler{
		queue:       queue,
		users:       users,
		invalidator: invalidator,
		cfg:         cfg,
		now:         time.Now,
		quit:        make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the reconciler in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reconciler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (r *Reconciler) Stop() {
	close(r.quit)
}

// Done returns a channel that is closed when the reconciler has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				l := pkglog.L()
				l.Error().Err(err).Msg("reconciler: pass failed")
			}
		}
	}
}

// RunOnce repairs up to one batch of queued edges. Edges that fail to
// repair are queued again.
func (r *Reconciler) RunOnce(ctx context.Context) (*domain.ReconcileReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := pkglog.L()
	report := &domain.ReconcileReport{StartedAt: r.now(), Results: []domain.RepairResult{}}

	batch, err := r.queue.Pop(ctx, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	for _, repair := range batch {
		outcome, err := r.repair(ctx, repair)
		result := domain.RepairResult{EdgeRepair: repair, Outcome: outcome}
		report.Processed++

		switch {
		case err != nil:
			result.Outcome = domain.RepairFailed
			result.Error = err.Error()
			report.Failed++
			l.Error().Err(err).
				Str(pkglog.FieldActorID, repair.ActorID).
				Str(pkglog.FieldTargetID, repair.TargetID).
				Msg("reconciler: edge repair failed, requeueing")
			if qerr := r.queue.Enqueue(ctx, repair); qerr != nil {
				l.Error().Err(qerr).Msg("reconciler: failed to requeue edge")
			}
		case outcome == domain.RepairAdded || outcome == domain.RepairRemoved:
			report.Repaired++
			audit.LogTarget(ctx, audit.ActionEdgeRepaired, repair.ActorID, repair.TargetID, "followers set "+string(outcome))
		}
		report.Results = append(report.Results, result)
	}

	report.FinishedAt = r.now()
	if report.Processed > 0 {
		l.Info().
			Int("processed", report.Processed).
			Int("repaired", report.Repaired).
			Int("failed", report.Failed).
			Msg("reconciler: pass complete")
	}
	return report, nil
}

func (r *Reconciler) repair(ctx context.Context, repair domain.EdgeRepair) (domain.RepairOutcome, error) {
	users, err := r.users.GetByIDs(ctx, []string{repair.ActorID, repair.TargetID})
	if err != nil {
		return "", err
	}

	target, ok := users[repair.TargetID]
	if !ok {
		return domain.RepairSkipped, nil
	}
	actor := users[repair.ActorID]

	want := actor != nil && actor.IsFollowing(target.ID)
	have := target.IsFollowedBy(repair.ActorID)

	var outcome domain.RepairOutcome
	switch {
	case want && !have:
		if _, err := r.users.AddToSet(ctx, target.ID, repository.SetFollowers, repair.ActorID); err != nil {
			return "", err
		}
		outcome = domain.RepairAdded
	case !want && have:
		if _, err := r.users.RemoveFromSet(ctx, target.ID, repository.SetFollowers, repair.ActorID); err != nil {
			return "", err
		}
		outcome = domain.RepairRemoved
	default:
		return domain.RepairConsistent, nil
	}

	r.invalidator.InvalidatePair(ctx, actor, target)
	return outcome, nil
}
