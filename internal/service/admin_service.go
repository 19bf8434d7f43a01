package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-social/internal/audit"
	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/internal/repository"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

type adminServiceImpl struct {
	users       repository.UserRepository
	posts       repository.PostRepository
	tokens      TokenManager
	invalidator Invalidator
	repairs     RepairQueue
	repairer    Repairer
	events      eventSink
	timeouts    Timeouts
}

// NewAdminService creates an AdminService.
func NewAdminService(
	users repository.UserRepository,
	posts repository.PostRepository,
	tokens TokenManager,
	invalidator Invalidator,
	repairs RepairQueue,
	repairer Repairer,
	publisher pubsub.Publisher,
	topic string,
	timeouts Timeouts,
) AdminService {
	return &adminServiceImpl{
		users:       users,
		posts:       posts,
		tokens:      tokens,
		invalidator: invalidator,
		repairs:     repairs,
		repairer:    repairer,
		events:      newEventSink(publisher, topic),
		timeouts:    timeouts,
	}
}

// Dashboard gathers user, post and repair counts.
func (s *adminServiceImpl) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()

	active := true
	stats := &domain.DashboardStats{}
	var err error
	if stats.TotalUsers, err = s.users.Count(qctx, domain.UserFilter{}); err != nil {
		return nil, err
	}
	if stats.ActiveUsers, err = s.users.Count(qctx, domain.UserFilter{Active: &active}); err != nil {
		return nil, err
	}
	if stats.AdminUsers, err = s.users.Count(qctx, domain.UserFilter{Role: domain.RoleAdmin}); err != nil {
		return nil, err
	}
	if stats.PostsByStatus, err = s.posts.CountByStatus(qctx); err != nil {
		return nil, err
	}

	if s.repairs != nil {
		n, err := s.repairs.Len(qctx)
		if err != nil {
			l := pkglog.Ctx(ctx)
			l.Warn().Err(err).Msg("failed to count pending repairs")
		}
		stats.PendingRepairs = n
	}
	return stats, nil
}

func (s *adminServiceImpl) load(ctx context.Context, userID string) (*domain.User, error) {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	user, err := s.users.GetByID(qctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return user, nil
}

func (s *adminServiceImpl) save(ctx context.Context, user *domain.User) error {
	qctx, cancel := withTimeout(ctx, s.timeouts.Query)
	defer cancel()
	return mapRepoError(s.users.Update(qctx, user))
}

// SetStatus activates or deactivates a user.
func (s *adminServiceImpl) SetStatus(ctx context.Context, admin domain.Viewer, userID string, active bool) (*domain.PublicUser, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	if admin.Is(userID) && !active {
		return nil, fmt.Errorf("%w: admins cannot deactivate themselves", ErrValidation)
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsActive != active {
		user.IsActive = active
		if err := s.save(ctx, user); err != nil {
			return nil, err
		}
		if !active {
			s.tokens.RevokeUserTokens(user.ID)
		}
		s.invalidator.InvalidateUser(ctx, user, append(user.Connections(), admin.ID)...)

		eventType := pubsub.EventUserUpdated
		if !active {
			eventType = pubsub.EventUserDeactivated
		}
		s.events.publish(ctx, eventType, user.ID, pubsub.UserPayload{UserID: user.ID, Username: user.Username, IsActive: active})
	}

	audit.LogTarget(ctx, audit.ActionSetStatus, admin.ID, user.ID, fmt.Sprintf("status set to active=%t", active))
	public := user.ToPublic(admin)
	return &public, nil
}

// SetRole changes a user's role. Existing tokens carry the old role, so
// they are revoked.
func (s *adminServiceImpl) SetRole(ctx context.Context, admin domain.Viewer, userID string, role domain.Role) (*domain.PublicUser, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != role {
		user.Role = role
		if err := s.save(ctx, user); err != nil {
			return nil, err
		}
		s.tokens.RevokeUserTokens(user.ID)
		s.invalidator.InvalidateUser(ctx, user, admin.ID)
	}

	audit.LogTarget(ctx, audit.ActionSetRole, admin.ID, user.ID, "role set to "+string(role))
	public := user.ToPublic(admin)
	return &public, nil
}

// PendingRepairs lists queued edge repairs.
func (s *adminServiceImpl) PendingRepairs(ctx context.Context, limit int) ([]domain.EdgeRepair, error) {
	if s.repairs == nil {
		return []domain.EdgeRepair{}, nil
	}
	limit, _ = normalizePage(limit, 0)
	return s.repairs.Pending(ctx, limit)
}

// RunReconciliation runs one reconciliation pass now.
func (s *adminServiceImpl) RunReconciliation(ctx context.Context) (*domain.ReconcileReport, error) {
	if s.repairer == nil {
		return nil, fmt.Errorf("%w: reconciler is not configured", ErrValidation)
	}
	return s.repairer.RunOnce(ctx)
}

var _ AdminService = (*adminServiceImpl)(nil)
