package dto

// ── 访客模块 DTO ──

// RegisterVisitorRequest 访客登记请求（公开接口）
type RegisterVisitorRequest struct {
	Name       string  `json:"name"        binding:"required,max=100"`
	CNIC       string  `json:"cnic"        binding:"required,cnic"`
	Email      string  `json:"email"       binding:"required,email,max=255"`
	Phone      string  `json:"phone"       binding:"required,min=7,max=20"`
	Purpose    string  `json:"purpose"     binding:"required,max=500"`
	VisitDate  string  `json:"visit_date"  binding:"required,datetime=2006-01-02"`
	Company    *string `json:"company"     binding:"omitempty,max=200"`
	HostID     *string `json:"host_id"     binding:"omitempty,uuid"`
	Department *string `json:"department"  binding:"omitempty,max=100"`
}

// UpdateVisitorRequest 修改待审批访客的联系信息
type UpdateVisitorRequest struct {
	Name      *string `json:"name"       binding:"omitempty,max=100"`
	Email     *string `json:"email"      binding:"omitempty,email,max=255"`
	Phone     *string `json:"phone"      binding:"omitempty,min=7,max=20"`
	Purpose   *string `json:"purpose"    binding:"omitempty,max=500"`
	Company   *string `json:"company"    binding:"omitempty,max=200"`
	VisitDate *string `json:"visit_date" binding:"omitempty,datetime=2006-01-02"`
	Notes     *string `json:"notes"      binding:"omitempty,max=1000"`
}

// RejectRequest 驳回请求，理由可选
type RejectRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// CheckInRequest 入场
type CheckInRequest struct {
	Gate string `json:"gate" binding:"required,max=50"`
}

// RecordCheckInRequest 入场并写入登记流水
type RecordCheckInRequest struct {
	Gate  string  `json:"gate"  binding:"required,max=50"`
	Notes *string `json:"notes" binding:"omitempty,max=1000"`
}

// RecordCheckOutRequest 离场并关闭登记流水
type RecordCheckOutRequest struct {
	Notes *string `json:"notes" binding:"omitempty,max=1000"`
}

// VisitorListRequest 访客列表查询参数
type VisitorListRequest struct {
	PaginationRequest
	Status string `form:"status"  binding:"omitempty,oneof=pending approved rejected checked-in checked-out"`
	HostID string `form:"host_id" binding:"omitempty,uuid"`
	Date   string `form:"date"    binding:"omitempty,datetime=2006-01-02"`
	Search string `form:"search"  binding:"omitempty,max=100"`
}

// RecordListRequest 出入登记列表 / 导出查询参数
type RecordListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=checked-in checked-out"`
	From   string `form:"from"   binding:"omitempty,datetime=2006-01-02"`
	To     string `form:"to"     binding:"omitempty,datetime=2006-01-02"` // 含当天
}

// ── 统计 ──

// TodayStats 今日（业务时区）按状态统计
type TodayStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Approved   int64 `json:"approved"`
	Rejected   int64 `json:"rejected"`
	CheckedIn  int64 `json:"checked_in"`
	CheckedOut int64 `json:"checked_out"`
}

// DailyCount 单日登记数
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
