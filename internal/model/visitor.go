package model

import "time"

// Visitor 访客，对应 visitors
type Visitor struct {
	VisitorID      string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name           string        `gorm:"type:varchar(100);not null"                     json:"name"`
	CNIC           string        `gorm:"column:cnic;type:varchar(13);not null;index"    json:"cnic"`
	Email          string        `gorm:"type:varchar(255);not null"                     json:"email"`
	Phone          string        `gorm:"type:varchar(20);not null"                      json:"phone"`
	Purpose        string        `gorm:"type:varchar(500);not null"                     json:"purpose"`
	Company        *string       `gorm:"type:varchar(200)"                              json:"company,omitempty"`
	HostID         *string       `gorm:"type:uuid;index"                                json:"host_id,omitempty"`
	HostName       *string       `gorm:"type:varchar(100)"                              json:"host_name,omitempty"`
	Department     *string       `gorm:"type:varchar(100)"                              json:"department,omitempty"`
	VisitDate      time.Time     `gorm:"type:date;not null"                             json:"visit_date"`
	Status         VisitorStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	GatePassNumber *string       `gorm:"type:varchar(40);uniqueIndex"                   json:"gate_pass_number,omitempty"`
	QRPayload      *string       `gorm:"column:qr_payload;type:text"                    json:"qr_payload,omitempty"`
	CheckInTime    *time.Time    `json:"check_in_time,omitempty"`
	CheckOutTime   *time.Time    `json:"check_out_time,omitempty"`
	Notes          *string       `gorm:"type:text"                                      json:"notes,omitempty"`
	VersionedModel
}

func (Visitor) TableName() string { return "visitors" }

// Host 被访人，对应 hosts（外部用户目录的只读投影）
type Host struct {
	HostID     string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name       string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Email      *string `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	Department *string `gorm:"type:varchar(100)"                              json:"department,omitempty"`
	BaseModel
}

func (Host) TableName() string { return "hosts" }
