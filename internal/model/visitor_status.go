package model

// VisitorStatus 访客主状态
type VisitorStatus string

const (
	VisitorPending    VisitorStatus = "pending"
	VisitorApproved   VisitorStatus = "approved"
	VisitorRejected   VisitorStatus = "rejected"
	VisitorCheckedIn  VisitorStatus = "checked-in"
	VisitorCheckedOut VisitorStatus = "checked-out"
)

// AllVisitorStatuses 按流程顺序列出全部状态
var AllVisitorStatuses = []VisitorStatus{
	VisitorPending, VisitorApproved, VisitorRejected, VisitorCheckedIn, VisitorCheckedOut,
}

// ParseVisitorStatus 未知字符串返回 false
func ParseVisitorStatus(s string) (VisitorStatus, bool) {
	for _, st := range AllVisitorStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal rejected 与 checked-out 之后不再有主流程迁移
func (s VisitorStatus) IsTerminal() bool {
	return s == VisitorRejected || s == VisitorCheckedOut
}

// VisitorAction 驱动状态迁移的操作
type VisitorAction string

const (
	ActionApprove  VisitorAction = "approve"
	ActionReject   VisitorAction = "reject"
	ActionCheckIn  VisitorAction = "check-in"
	ActionCheckOut VisitorAction = "check-out"
	ActionEdit     VisitorAction = "edit"
)

var visitorTransitions = map[VisitorStatus]map[VisitorAction]VisitorStatus{
	VisitorPending: {
		ActionApprove: VisitorApproved,
		ActionReject:  VisitorRejected,
		ActionEdit:    VisitorPending,
	},
	VisitorApproved: {
		ActionCheckIn: VisitorCheckedIn,
	},
	VisitorCheckedIn: {
		ActionCheckOut: VisitorCheckedOut,
	},
}

// NextVisitorStatus 纯函数：返回 (from, action) 的目标状态，非法迁移返回 false
func NextVisitorStatus(from VisitorStatus, action VisitorAction) (VisitorStatus, bool) {
	to, ok := visitorTransitions[from][action]
	return to, ok
}

// GatePassStatus 通行证状态
type GatePassStatus string

const (
	GatePassActive  GatePassStatus = "active"
	GatePassUsed    GatePassStatus = "used"
	GatePassExpired GatePassStatus = "expired"
	GatePassRevoked GatePassStatus = "revoked"
)

// RecordStatus 出入记录状态
type RecordStatus string

const (
	RecordCheckedIn  RecordStatus = "checked-in"
	RecordCheckedOut RecordStatus = "checked-out"
)

// FlagStatus 标记状态
type FlagStatus string

const (
	FlagFlagged  FlagStatus = "flagged"
	FlagResolved FlagStatus = "resolved"
)

// ParseFlagStatus 未知字符串返回 false
func ParseFlagStatus(s string) (FlagStatus, bool) {
	switch FlagStatus(s) {
	case FlagFlagged, FlagResolved:
		return FlagStatus(s), true
	}
	return "", false
}

// ReportStatus 可疑报告状态
type ReportStatus string

const (
	ReportReported      ReportStatus = "reported"
	ReportInvestigating ReportStatus = "investigating"
	ReportResolved      ReportStatus = "resolved"
	ReportDismissed     ReportStatus = "dismissed"
)

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportReported:      {ReportInvestigating, ReportResolved, ReportDismissed},
	ReportInvestigating: {ReportResolved, ReportDismissed},
}

// ParseReportStatus 未知字符串返回 false
func ParseReportStatus(s string) (ReportStatus, bool) {
	switch ReportStatus(s) {
	case ReportReported, ReportInvestigating, ReportResolved, ReportDismissed:
		return ReportStatus(s), true
	}
	return "", false
}

// CanTransitionReport 纯函数：报告状态迁移是否合法
func CanTransitionReport(from, to ReportStatus) bool {
	for _, next := range reportTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsClosed resolved / dismissed 记录结案时间
func (s ReportStatus) IsClosed() bool {
	return s == ReportResolved || s == ReportDismissed
}
