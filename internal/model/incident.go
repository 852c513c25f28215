package model

import "time"

// FlaggedVisitor 访客标记，对应 flagged_visitors
// 同一访客可有多条互相独立的标记
type FlaggedVisitor struct {
	FlagID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	VisitorID     string     `gorm:"type:uuid;not null;index"                       json:"visitor_id"`
	VisitorName   string     `gorm:"type:varchar(100);not null"                     json:"visitor_name"`
	Reason        string     `gorm:"type:varchar(500);not null"                     json:"reason"`
	FlaggedBy     string     `gorm:"type:varchar(64);not null"                      json:"flagged_by"`
	Notes         *string    `gorm:"type:text"                                      json:"notes,omitempty"`
	Status        FlagStatus `gorm:"type:varchar(20);not null;default:'flagged'"    json:"status"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	ResolvedNotes *string    `gorm:"type:text"                                      json:"resolved_notes,omitempty"`
	BaseModel
}

func (FlaggedVisitor) TableName() string { return "flagged_visitors" }

// SuspiciousReport 可疑行为报告，对应 suspicious_reports
type SuspiciousReport struct {
	ReportID        string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	VisitorID       string       `gorm:"type:uuid;not null;index"                       json:"visitor_id"`
	VisitorName     string       `gorm:"type:varchar(100);not null"                     json:"visitor_name"`
	Reason          string       `gorm:"type:varchar(500);not null"                     json:"reason"`
	ReportedBy      string       `gorm:"type:varchar(64);not null"                      json:"reported_by"`
	ReportedByName  string       `gorm:"type:varchar(100);not null"                     json:"reported_by_name"`
	Notes           *string      `gorm:"type:text"                                      json:"notes,omitempty"`
	Status          ReportStatus `gorm:"type:varchar(20);not null;default:'reported'"   json:"status"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	ResolutionNotes *string      `gorm:"type:text"                                      json:"resolution_notes,omitempty"`
	BaseModel
}

func (SuspiciousReport) TableName() string { return "suspicious_reports" }
