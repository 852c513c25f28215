package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"safepass/backend/internal/dto"
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出出入登记流水为 Excel (.xlsx)，筛选条件与列表接口一致
//   - 以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - 时间按业务时区显示，未离场的记录离场列为 "-"
type ExportService interface {
	ExportLedger(ctx context.Context, req *dto.RecordListRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	ledger CheckInLedger
	loc    *time.Location
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(ledger CheckInLedger, loc *time.Location, logger *zap.Logger) ExportService {
	if loc == nil {
		loc = time.Local
	}
	return &exportService{ledger: ledger, loc: loc, logger: logger}
}

var ledgerHeaders = []string{"Visitor", "CNIC", "Gate Pass", "Gate", "Check-in", "Check-out", "Status", "Notes"}

const ledgerSheet = "Check-ins"

func (s *exportService) ExportLedger(ctx context.Context, req *dto.RecordListRequest) (*bytes.Buffer, string, error) {
	records, err := s.ledger.ListAll(ctx, req)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(ledgerSheet)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	// 列宽
	widths := []float64{24, 16, 26, 12, 20, 20, 14, 40}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(ledgerSheet, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 表头
	for i, h := range ledgerHeaders {
		f.SetCellValue(ledgerSheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(ledgerSheet, "A1", cell(colName(len(ledgerHeaders)-1), 1), headerStyle)

	// 数据行
	for i, r := range records {
		row := i + 2
		values := []interface{}{
			r.VisitorName,
			r.CNIC,
			r.GatePassNumber,
			deref(r.Gate),
			s.formatTime(&r.CheckInTime),
			s.formatTime(r.CheckOutTime),
			string(r.Status),
			deref(r.Notes),
		}
		for col, v := range values {
			f.SetCellValue(ledgerSheet, cell(colName(col), row), v)
		}
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("check-ins_%s.xlsx", exportRange(req))
	return buf, filename, nil
}

func (s *exportService) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(s.loc).Format("2006-01-02 15:04")
}

func exportRange(req *dto.RecordListRequest) string {
	switch {
	case req.From != "" && req.To != "":
		return req.From + "_" + req.To
	case req.From != "":
		return "from_" + req.From
	case req.To != "":
		return "to_" + req.To
	}
	return "all"
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
