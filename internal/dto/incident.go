package dto

// ── 安全事件 DTO ──

// FlagVisitorRequest 标记访客
type FlagVisitorRequest struct {
	Reason string  `json:"reason" binding:"required,max=500"`
	Notes  *string `json:"notes"  binding:"omitempty,max=1000"`
}

// ResolveFlagRequest 解除标记
type ResolveFlagRequest struct {
	Notes *string `json:"notes" binding:"omitempty,max=1000"`
}

// ReportSuspiciousRequest 上报可疑行为
type ReportSuspiciousRequest struct {
	Reason string  `json:"reason" binding:"required,max=500"`
	Notes  *string `json:"notes"  binding:"omitempty,max=1000"`
}

// UpdateReportStatusRequest 推进报告状态
type UpdateReportStatusRequest struct {
	Status string  `json:"status" binding:"required,oneof=investigating resolved dismissed"`
	Notes  *string `json:"notes"  binding:"omitempty,max=1000"`
}

// IncidentListRequest 标记 / 报告列表查询参数
type IncidentListRequest struct {
	Status    string `form:"status"     binding:"omitempty,max=20"`
	VisitorID string `form:"visitor_id" binding:"omitempty,uuid"`
}
