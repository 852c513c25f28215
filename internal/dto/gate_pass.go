package dto

import "time"

// VerifyPassRequest 闸机扫码校验
type VerifyPassRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// VerifyPassResponse 校验结果；Valid=false 时 Reason 说明原因
type VerifyPassResponse struct {
	Valid          bool      `json:"valid"`
	Reason         string    `json:"reason,omitempty"`
	GatePassNumber string    `json:"gate_pass_number"`
	VisitorID      string    `json:"visitor_id"`
	VisitorName    string    `json:"visitor_name,omitempty"`
	Status         string    `json:"status"`
	ValidUntil     time.Time `json:"valid_until"`
}
