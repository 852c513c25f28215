package notify

import (
	"time"

	"safepass/backend/internal/model"
)

// Kind 事件名称，实时通道中即 envelope.type
type Kind string

// 实时广播事件
const (
	KindNewVisitorRequest   Kind = "new-visitor-request"
	KindVisitorApproved     Kind = "visitor-approved"
	KindVisitorRejected     Kind = "visitor-rejected"
	KindVisitorCheckIn      Kind = "visitor-check-in"
	KindVisitorCheckOut     Kind = "visitor-check-out"
	KindVisitorFlagged      Kind = "visitor-flagged"
	KindSuspiciousReport    Kind = "suspicious-report"
	KindVisitorStatusUpdate Kind = "visitor-status-update"
)

// 邮件事件
const (
	KindRegistrationEmail    Kind = "registration-confirmation"
	KindApprovalEmail        Kind = "approval"
	KindRejectionEmail       Kind = "rejection"
	KindApprovalRequestEmail Kind = "approval-request"
)

// Channel 投递通道
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelBroadcast Channel = "broadcast"
)

// RoomOperators 所有在线的安保 / 管理员看板
const RoomOperators = "operators"

// HostRoom 指定被访人的房间
func HostRoom(hostID string) string { return "host:" + hostID }

// Audience 事件接收方
type Audience struct {
	Channel Channel
	Room    string // broadcast
	Email   string // email
	Name    string
}

// ToVisitor 发给访客本人的邮件
func ToVisitor(v *model.Visitor) Audience {
	return Audience{Channel: ChannelEmail, Email: v.Email, Name: v.Name}
}

// ToHostEmail 发给被访人的邮件
func ToHostEmail(email, name string) Audience {
	return Audience{Channel: ChannelEmail, Email: email, Name: name}
}

// ToHost 发往被访人房间的广播
func ToHost(hostID string) Audience {
	return Audience{Channel: ChannelBroadcast, Room: HostRoom(hostID)}
}

// ToOperators 不定向广播
func ToOperators() Audience {
	return Audience{Channel: ChannelBroadcast, Room: RoomOperators}
}

// VisitorSummary 广播事件的数据载荷
type VisitorSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	HostName  string `json:"hostName,omitempty"`
	VisitDate string `json:"visitDate"`
}

// Summarize 从访客记录生成事件载荷
func Summarize(v *model.Visitor) VisitorSummary {
	s := VisitorSummary{
		ID:        v.VisitorID,
		Name:      v.Name,
		Status:    string(v.Status),
		VisitDate: v.VisitDate.Format("2006-01-02"),
	}
	if v.HostName != nil {
		s.HostName = *v.HostName
	}
	return s
}

// Credential 审批通过邮件中的通行证信息
type Credential struct {
	Number     string
	QRPayload  string
	ValidUntil time.Time
}

// Event 一条待投递的通知
type Event struct {
	Kind       Kind
	Audience   Audience
	Visitor    VisitorSummary
	Credential *Credential
	Reason     string
	OccurredAt time.Time
}

// Envelope 实时通道上的消息格式
type Envelope struct {
	Type      string         `json:"type"`
	Data      VisitorSummary `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// WireMessage 跨实例转发（redis / NATS）时携带房间信息
type WireMessage struct {
	Room     string   `json:"room"`
	Envelope Envelope `json:"envelope"`
}

// EnvelopeOf 构造广播消息
func EnvelopeOf(e Event) Envelope {
	return Envelope{Type: string(e.Kind), Data: e.Visitor, Timestamp: e.OccurredAt}
}
