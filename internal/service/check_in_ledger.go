package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/model"
	"safepass/backend/internal/repository"
	pkgerrors "safepass/backend/pkg/errors"
)

// CheckInLedger 出入登记流水
// Open / Close 由工作流在事务内调用，records 为事务内的仓储
type CheckInLedger interface {
	Open(ctx context.Context, records repository.CheckInOutRepository, visitor *model.Visitor, gate string, notes *string) (*model.CheckInOutRecord, error)
	Close(ctx context.Context, records repository.CheckInOutRepository, visitorID string, notes *string) (*model.CheckInOutRecord, error)
	List(ctx context.Context, req *dto.RecordListRequest) ([]model.CheckInOutRecord, int64, error)
	// ListAll 不分页，供导出使用
	ListAll(ctx context.Context, req *dto.RecordListRequest) ([]model.CheckInOutRecord, error)
}

type checkInLedger struct {
	repo   *repository.Repository
	loc    *time.Location
	now    Clock
	logger *zap.Logger
}

// NewCheckInLedger 创建 CheckInLedger 实例
func NewCheckInLedger(repo *repository.Repository, loc *time.Location, now Clock, logger *zap.Logger) CheckInLedger {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &checkInLedger{repo: repo, loc: loc, now: now, logger: logger}
}

func (l *checkInLedger) Open(ctx context.Context, records repository.CheckInOutRepository, visitor *model.Visitor, gate string, notes *string) (*model.CheckInOutRecord, error) {
	if _, err := records.GetOpenByVisitor(ctx, visitor.VisitorID); err == nil {
		return nil, ErrAlreadyCheckedIn
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, translate(err, nil, "failed to load check-in record")
	}

	number := ""
	if visitor.GatePassNumber != nil {
		number = *visitor.GatePassNumber
	}
	record := &model.CheckInOutRecord{
		VisitorID:      visitor.VisitorID,
		VisitorName:    visitor.Name,
		CNIC:           visitor.CNIC,
		GatePassNumber: number,
		Gate:           &gate,
		CheckInTime:    l.now(),
		Status:         model.RecordCheckedIn,
		Notes:          notes,
	}
	if err := records.Create(ctx, record); err != nil {
		l.logger.Error("创建出入记录失败", zap.String("visitor_id", visitor.VisitorID), zap.Error(err))
		return nil, translate(err, nil, "failed to create check-in record")
	}
	return record, nil
}

func (l *checkInLedger) Close(ctx context.Context, records repository.CheckInOutRepository, visitorID string, notes *string) (*model.CheckInOutRecord, error) {
	record, err := records.GetOpenByVisitor(ctx, visitorID)
	if err != nil {
		return nil, translate(err, ErrNoActiveCheckIn, "failed to load check-in record")
	}

	now := l.now()
	record.Status = model.RecordCheckedOut
	record.CheckOutTime = &now
	if notes != nil {
		record.Notes = mergeNotes(record.Notes, *notes)
	}
	if err := records.Close(ctx, record); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrNoActiveCheckIn
		}
		l.logger.Error("关闭出入记录失败", zap.String("visitor_id", visitorID), zap.Error(err))
		return nil, translate(err, nil, "failed to close check-in record")
	}
	return record, nil
}

func (l *checkInLedger) List(ctx context.Context, req *dto.RecordListRequest) ([]model.CheckInOutRecord, int64, error) {
	filter, err := l.filter(req)
	if err != nil {
		return nil, 0, err
	}
	filter.Offset = req.GetOffset()
	filter.Limit = req.GetPageSize()

	records, total, err := l.repo.CheckInOut.List(ctx, filter)
	if err != nil {
		l.logger.Error("查询出入记录失败", zap.Error(err))
		return nil, 0, translate(err, nil, "failed to list check-in records")
	}
	return records, total, nil
}

func (l *checkInLedger) ListAll(ctx context.Context, req *dto.RecordListRequest) ([]model.CheckInOutRecord, error) {
	filter, err := l.filter(req)
	if err != nil {
		return nil, err
	}
	records, _, err := l.repo.CheckInOut.List(ctx, filter)
	if err != nil {
		l.logger.Error("导出出入记录失败", zap.Error(err))
		return nil, translate(err, nil, "failed to list check-in records")
	}
	return records, nil
}

// filter 日期按业务时区解释，to 含当天
func (l *checkInLedger) filter(req *dto.RecordListRequest) (repository.RecordFilter, error) {
	var f repository.RecordFilter
	if req.Status != "" {
		st := model.RecordStatus(req.Status)
		if st != model.RecordCheckedIn && st != model.RecordCheckedOut {
			return f, pkgerrors.Validation("invalid record status")
		}
		f.Status = &st
	}
	if req.From != "" {
		from, err := time.ParseInLocation(dateLayout, req.From, l.loc)
		if err != nil {
			return f, pkgerrors.Validation("invalid from date")
		}
		f.From = &from
	}
	if req.To != "" {
		to, err := time.ParseInLocation(dateLayout, req.To, l.loc)
		if err != nil {
			return f, pkgerrors.Validation("invalid to date")
		}
		to = to.AddDate(0, 0, 1)
		f.To = &to
	}
	return f, nil
}
