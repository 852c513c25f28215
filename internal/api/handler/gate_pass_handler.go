package handler

import (
	"github.com/gin-gonic/gin"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/service"
	"safepass/backend/pkg/response"
)

// GatePassHandler 门禁通行证查询、吊销与扫码校验
type GatePassHandler struct {
	issuer service.CredentialIssuer
}

func NewGatePassHandler(issuer service.CredentialIssuer) *GatePassHandler {
	return &GatePassHandler{issuer: issuer}
}

// GET /api/v1/gate-passes/:number
func (h *GatePassHandler) Get(c *gin.Context) {
	pass, err := h.issuer.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, pass)
}

// GET /api/v1/visitors/:id/gate-passes
func (h *GatePassHandler) ListByVisitor(c *gin.Context) {
	list, err := h.issuer.ListByVisitor(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, list)
}

// PATCH /api/v1/gate-passes/:number/revoke
func (h *GatePassHandler) Revoke(c *gin.Context) {
	pass, err := h.issuer.Revoke(c.Request.Context(), c.Param("number"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, pass)
}

// Verify 签名有效但通行证不可用时仍返回 200，由 valid/reason 说明
// POST /api/v1/gate-passes/verify
func (h *GatePassHandler) Verify(c *gin.Context) {
	var req dto.VerifyPassRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.issuer.Verify(c.Request.Context(), req.Payload)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, result)
}
