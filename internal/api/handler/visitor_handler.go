package handler

import (
	"github.com/gin-gonic/gin"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/service"
	"safepass/backend/pkg/response"
)

// VisitorHandler 访客登记、审批与出入场接口
type VisitorHandler struct {
	workflow service.VisitorWorkflow
	query    service.VisitorQuery
}

// NewVisitorHandler 创建 VisitorHandler
func NewVisitorHandler(workflow service.VisitorWorkflow, query service.VisitorQuery) *VisitorHandler {
	return &VisitorHandler{workflow: workflow, query: query}
}

// Register 公开登记
// POST /api/v1/visitors
func (h *VisitorHandler) Register(c *gin.Context) {
	var req dto.RegisterVisitorRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := h.workflow.Register(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, v)
}

// List 访客列表
// GET /api/v1/visitors
func (h *VisitorHandler) List(c *gin.Context) {
	var req dto.VisitorListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.query.List(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get 访客详情
// GET /api/v1/visitors/:id
func (h *VisitorHandler) Get(c *gin.Context) {
	v, err := h.query.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, v)
}

// Stats 今日统计
// GET /api/v1/visitors/stats
func (h *VisitorHandler) Stats(c *gin.Context) {
	stats, err := h.query.TodayStats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, stats)
}

// Trends 近 7 天登记趋势
// GET /api/v1/visitors/trends
func (h *VisitorHandler) Trends(c *gin.Context) {
	trends, err := h.query.WeeklyTrends(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, trends)
}

// HostPending 当前被访人的待审批访客
// GET /api/v1/visitors/host/pending
func (h *VisitorHandler) HostPending(c *gin.Context) {
	h.listByHost(c, true)
}

// HostAll 当前被访人的全部访客
// GET /api/v1/visitors/host/all
func (h *VisitorHandler) HostAll(c *gin.Context) {
	h.listByHost(c, false)
}

func (h *VisitorHandler) listByHost(c *gin.Context, pendingOnly bool) {
	hostID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	list, err := h.query.ListByHost(c.Request.Context(), hostID, pendingOnly)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, list)
}

// Update 修改待审批访客信息
// PUT /api/v1/visitors/:id
func (h *VisitorHandler) Update(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	var req dto.UpdateVisitorRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := h.workflow.UpdateDetails(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, v)
}

// Delete 删除访客
// DELETE /api/v1/visitors/:id
func (h *VisitorHandler) Delete(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	if err := h.workflow.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// ────────────────────── 状态迁移 ──────────────────────

// Approve 审批通过并签发门禁通行证
// PATCH /api/v1/visitors/:id/approve
func (h *VisitorHandler) Approve(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	v, err := h.workflow.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, v)
}

// Reject 驳回，reason 可省略
// PATCH /api/v1/visitors/:id/reject
func (h *VisitorHandler) Reject(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	v, err := h.workflow.Reject(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, v)
}

// CheckIn 入场
// PATCH /api/v1/visitors/:id/check-in
func (h *VisitorHandler) CheckIn(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	var req dto.CheckInRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := h.workflow.CheckIn(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, v)
}

// CheckOut 离场
// PATCH /api/v1/visitors/:id/check-out
func (h *VisitorHandler) CheckOut(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	v, err := h.workflow.CheckOut(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, v)
}

// RecordCheckIn 入场并返回登记流水
// POST /api/v1/visitors/:id/check-in-record
func (h *VisitorHandler) RecordCheckIn(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	var req dto.RecordCheckInRequest
	if !bindJSON(c, &req) {
		return
	}

	rec, err := h.workflow.RecordCheckIn(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, rec)
}

// RecordCheckOut 离场并关闭登记流水
// POST /api/v1/visitors/:id/check-out-record
func (h *VisitorHandler) RecordCheckOut(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	var req dto.RecordCheckOutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	rec, err := h.workflow.RecordCheckOut(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, rec)
}
