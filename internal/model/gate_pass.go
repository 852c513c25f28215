package model

import "time"

// GatePass 门禁通行证，对应 gate_passes
type GatePass struct {
	GatePassID     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	GatePassNumber string         `gorm:"type:varchar(40);not null;uniqueIndex"          json:"gate_pass_number"`
	VisitorID      string         `gorm:"type:uuid;not null;index"                       json:"visitor_id"`
	QRPayload      string         `gorm:"column:qr_payload;type:text;not null"           json:"qr_payload"`
	IssuedAt       time.Time      `gorm:"not null"                                       json:"issued_at"`
	ValidUntil     time.Time      `gorm:"not null"                                       json:"valid_until"`
	CheckInTime    *time.Time     `json:"check_in_time,omitempty"`
	CheckOutTime   *time.Time     `json:"check_out_time,omitempty"`
	Gate           *string        `gorm:"type:varchar(50)"                               json:"gate,omitempty"`
	Status         GatePassStatus `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	BaseModel
}

func (GatePass) TableName() string { return "gate_passes" }

// ExpiredAt 判断 at 时刻是否已超出有效期
func (g *GatePass) ExpiredAt(at time.Time) bool {
	return !at.Before(g.ValidUntil)
}
