package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/service"
	"safepass/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LedgerHandler 出入登记流水查询与导出
type LedgerHandler struct {
	ledger service.CheckInLedger
	export service.ExportService
}

// NewLedgerHandler 创建 LedgerHandler
func NewLedgerHandler(ledger service.CheckInLedger, export service.ExportService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, export: export}
}

// List 流水列表
// GET /api/v1/check-in-records
func (h *LedgerHandler) List(c *gin.Context) {
	var req dto.RecordListRequest
	if !bindQuery(c, &req) {
		return
	}
	list, total, err := h.ledger.List(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Export 导出 Excel，筛选条件与 List 相同，忽略分页
// GET /api/v1/check-in-records/export
func (h *LedgerHandler) Export(c *gin.Context) {
	var req dto.RecordListRequest
	if !bindQuery(c, &req) {
		return
	}

	buf, filename, err := h.export.ExportLedger(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	// RFC 5987 编码文件名
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
