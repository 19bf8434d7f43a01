package audit

import (
	"context"

	"github.com/weiawesome/wes-io-social/pkg/log"
)

// Audit actions.
const (
	ActionRegister      = "user.register"
	ActionLogin         = "user.login"
	ActionLoginFailed   = "user.login_failed"
	ActionUpdateProfile = "user.update_profile"
	ActionDeactivate    = "user.deactivate"
	ActionAvatarUpdated = "user.avatar_updated"
	ActionFollow        = "graph.follow"
	ActionUnfollow      = "graph.unfollow"
	ActionPartialUpdate = "graph.partial_update"
	ActionEdgeRepaired  = "graph.edge_repaired"
	ActionPostCreate    = "post.create"
	ActionPostUpdate    = "post.update"
	ActionPostDelete    = "post.delete"
	ActionSetStatus     = "admin.set_status"
	ActionSetRole       = "admin.set_role"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget emits an audit entry for an action userID took on targetID.
func LogTarget(ctx context.Context, action, userID, targetID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
