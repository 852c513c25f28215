package handler

import (
	"github.com/gin-gonic/gin"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/service"
	"safepass/backend/pkg/response"
)

// IncidentHandler 访客标记与可疑行为报告
type IncidentHandler struct {
	workflow  service.VisitorWorkflow
	incidents service.IncidentTracker
}

// NewIncidentHandler 创建 IncidentHandler
func NewIncidentHandler(workflow service.VisitorWorkflow, incidents service.IncidentTracker) *IncidentHandler {
	return &IncidentHandler{workflow: workflow, incidents: incidents}
}

// Flag 标记访客
// POST /api/v1/visitors/:id/flag
func (h *IncidentHandler) Flag(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	var req dto.FlagVisitorRequest
	if !bindJSON(c, &req) {
		return
	}

	flag, err := h.workflow.FlagVisitor(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, flag)
}

// ListFlags 标记列表
// GET /api/v1/flagged-visitors
func (h *IncidentHandler) ListFlags(c *gin.Context) {
	var req dto.IncidentListRequest
	if !bindQuery(c, &req) {
		return
	}
	list, err := h.incidents.ListFlags(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, list)
}

// ResolveFlag 解除标记
// PATCH /api/v1/flagged-visitors/:id/resolve
func (h *IncidentHandler) ResolveFlag(c *gin.Context) {
	var req dto.ResolveFlagRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	flag, err := h.incidents.ResolveFlag(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, flag)
}

// Report 上报可疑行为
// POST /api/v1/visitors/:id/report
func (h *IncidentHandler) Report(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	var req dto.ReportSuspiciousRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.workflow.ReportSuspicious(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, report)
}

// ListReports 报告列表
// GET /api/v1/suspicious-reports
func (h *IncidentHandler) ListReports(c *gin.Context) {
	var req dto.IncidentListRequest
	if !bindQuery(c, &req) {
		return
	}
	list, err := h.incidents.ListReports(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, list)
}

// UpdateReportStatus 推进报告处理状态
// PATCH /api/v1/suspicious-reports/:id/status
func (h *IncidentHandler) UpdateReportStatus(c *gin.Context) {
	var req dto.UpdateReportStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.incidents.UpdateReportStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, report)
}
