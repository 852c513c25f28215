package model

import "time"

// CheckInOutRecord 出入登记（审计流水），对应 check_in_out_records
// 姓名与 CNIC 冗余存储，访客删除后记录仍可追溯
type CheckInOutRecord struct {
	RecordID       string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	VisitorID      string       `gorm:"type:uuid;not null;index"                       json:"visitor_id"`
	VisitorName    string       `gorm:"type:varchar(100);not null"                     json:"visitor_name"`
	CNIC           string       `gorm:"column:cnic;type:varchar(13);not null"          json:"cnic"`
	GatePassNumber string       `gorm:"type:varchar(40);not null"                      json:"gate_pass_number"`
	Gate           *string      `gorm:"type:varchar(50)"                               json:"gate,omitempty"`
	CheckInTime    time.Time    `gorm:"not null;index"                                 json:"check_in_time"`
	CheckOutTime   *time.Time   `json:"check_out_time,omitempty"`
	Status         RecordStatus `gorm:"type:varchar(20);not null;default:'checked-in'" json:"status"`
	Notes          *string      `gorm:"type:text"                                      json:"notes,omitempty"`
	BaseModel
}

func (CheckInOutRecord) TableName() string { return "check_in_out_records" }
