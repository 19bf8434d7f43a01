package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-social/internal/domain"
	"github.com/weiawesome/wes-io-social/pkg/response"
)

type statusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type roleRequest struct {
	Role domain.Role `json:"role" binding:"required,oneof=user admin"`
}

type repairsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// Dashboard returns user and post counts.
func (h *Handler) Dashboard(c *gin.Context) {
	stats, err := h.svc.Admin.Dashboard(c.Request.Context())
	if err != nil {
		fail(c, err, "load dashboard")
		return
	}
	response.Success(c, "dashboard retrieved", stats)
}

// SetUserStatus activates or deactivates a user.
func (h *Handler) SetUserStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.Admin.SetStatus(c.Request.Context(), viewerOf(c), c.Param("id"), *req.Active)
	if err != nil {
		fail(c, err, "set user status")
		return
	}
	response.Success(c, "user status updated", user)
}

// SetUserRole changes a user's role.
func (h *Handler) SetUserRole(c *gin.Context) {
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.Admin.SetRole(c.Request.Context(), viewerOf(c), c.Param("id"), req.Role)
	if err != nil {
		fail(c, err, "set user role")
		return
	}
	response.Success(c, "user role updated", user)
}

// PendingReconciliations lists queued edge repairs.
func (h *Handler) PendingReconciliations(c *gin.Context) {
	var q repairsQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 100
	}

	repairs, err := h.svc.Admin.PendingRepairs(c.Request.Context(), q.Limit)
	if err != nil {
		fail(c, err, "list reconciliations")
		return
	}
	response.Success(c, "reconciliations retrieved", gin.H{"repairs": repairs, "count": len(repairs)})
}

// RunReconciliation runs one repair pass now.
func (h *Handler) RunReconciliation(c *gin.Context) {
	report, err := h.svc.Admin.RunReconciliation(c.Request.Context())
	if err != nil {
		fail(c, err, "run reconciliation")
		return
	}
	response.Success(c, "reconciliation completed", report)
}
