package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/model"
	"safepass/backend/internal/repository"
)

// IncidentTracker 访客标记与可疑报告；不修改访客主记录
type IncidentTracker interface {
	Flag(ctx context.Context, visitorID string, req *dto.FlagVisitorRequest, actor Actor) (*model.FlaggedVisitor, *model.Visitor, error)
	ResolveFlag(ctx context.Context, flagID string, req *dto.ResolveFlagRequest) (*model.FlaggedVisitor, error)
	ListFlags(ctx context.Context, req *dto.IncidentListRequest) ([]model.FlaggedVisitor, error)

	Report(ctx context.Context, visitorID string, req *dto.ReportSuspiciousRequest, actor Actor) (*model.SuspiciousReport, *model.Visitor, error)
	UpdateReportStatus(ctx context.Context, reportID string, req *dto.UpdateReportStatusRequest) (*model.SuspiciousReport, error)
	ListReports(ctx context.Context, req *dto.IncidentListRequest) ([]model.SuspiciousReport, error)
}

type incidentTracker struct {
	repo   *repository.Repository
	now    Clock
	logger *zap.Logger
}

// NewIncidentTracker 创建 IncidentTracker 实例
func NewIncidentTracker(repo *repository.Repository, now Clock, logger *zap.Logger) IncidentTracker {
	if now == nil {
		now = time.Now
	}
	return &incidentTracker{repo: repo, now: now, logger: logger}
}

// ────────────────────── 标记 ──────────────────────

func (t *incidentTracker) Flag(ctx context.Context, visitorID string, req *dto.FlagVisitorRequest, actor Actor) (*model.FlaggedVisitor, *model.Visitor, error) {
	visitor, err := loadVisitor(ctx, t.repo.Visitor, visitorID)
	if err != nil {
		return nil, nil, err
	}

	flag := &model.FlaggedVisitor{
		VisitorID:   visitor.VisitorID,
		VisitorName: visitor.Name,
		Reason:      req.Reason,
		FlaggedBy:   actor.ID,
		Notes:       req.Notes,
		Status:      model.FlagFlagged,
	}
	if err := t.repo.FlaggedVisitor.Create(ctx, flag); err != nil {
		t.logger.Error("创建访客标记失败", zap.String("visitor_id", visitorID), zap.Error(err))
		return nil, nil, translate(err, nil, "failed to flag visitor")
	}
	t.logger.Info("访客已被标记", zap.String("visitor_id", visitorID), zap.String("flag_id", flag.FlagID), zap.String("by", actor.ID))
	return flag, visitor, nil
}

func (t *incidentTracker) ResolveFlag(ctx context.Context, flagID string, req *dto.ResolveFlagRequest) (*model.FlaggedVisitor, error) {
	if !isUUID(flagID) {
		return nil, ErrFlagNotFound
	}
	flag, err := t.repo.FlaggedVisitor.GetByID(ctx, flagID)
	if err != nil {
		return nil, translate(err, ErrFlagNotFound, "failed to load flag")
	}
	if flag.Status == model.FlagResolved {
		return nil, ErrFlagResolved
	}

	now := t.now()
	flag.Status = model.FlagResolved
	flag.ResolvedAt = &now
	flag.ResolvedNotes = req.Notes
	if err := t.repo.FlaggedVisitor.Update(ctx, flag, model.FlagFlagged); err != nil {
		if isOptimisticLock(err) {
			return nil, ErrFlagResolved
		}
		t.logger.Error("解除访客标记失败", zap.String("flag_id", flagID), zap.Error(err))
		return nil, translate(err, ErrFlagNotFound, "failed to resolve flag")
	}
	return flag, nil
}

func (t *incidentTracker) ListFlags(ctx context.Context, req *dto.IncidentListRequest) ([]model.FlaggedVisitor, error) {
	var status *model.FlagStatus
	if req.Status != "" {
		st, ok := model.ParseFlagStatus(req.Status)
		if !ok {
			return nil, ErrInvalidFlagStatus
		}
		status = &st
	}
	flags, err := t.repo.FlaggedVisitor.List(ctx, status, req.VisitorID)
	if err != nil {
		t.logger.Error("查询访客标记失败", zap.Error(err))
		return nil, translate(err, nil, "failed to list flags")
	}
	return flags, nil
}

// ────────────────────── 可疑报告 ──────────────────────

func (t *incidentTracker) Report(ctx context.Context, visitorID string, req *dto.ReportSuspiciousRequest, actor Actor) (*model.SuspiciousReport, *model.Visitor, error) {
	visitor, err := loadVisitor(ctx, t.repo.Visitor, visitorID)
	if err != nil {
		return nil, nil, err
	}

	report := &model.SuspiciousReport{
		VisitorID:      visitor.VisitorID,
		VisitorName:    visitor.Name,
		Reason:         req.Reason,
		ReportedBy:     actor.ID,
		ReportedByName: actor.Name,
		Notes:          req.Notes,
		Status:         model.ReportReported,
	}
	if err := t.repo.SuspiciousReport.Create(ctx, report); err != nil {
		t.logger.Error("创建可疑报告失败", zap.String("visitor_id", visitorID), zap.Error(err))
		return nil, nil, translate(err, nil, "failed to create report")
	}
	return report, visitor, nil
}

func (t *incidentTracker) UpdateReportStatus(ctx context.Context, reportID string, req *dto.UpdateReportStatusRequest) (*model.SuspiciousReport, error) {
	to, ok := model.ParseReportStatus(req.Status)
	if !ok {
		return nil, ErrInvalidReportStatus
	}
	if !isUUID(reportID) {
		return nil, ErrReportNotFound
	}
	report, err := t.repo.SuspiciousReport.GetByID(ctx, reportID)
	if err != nil {
		return nil, translate(err, ErrReportNotFound, "failed to load report")
	}
	if !model.CanTransitionReport(report.Status, to) {
		return nil, ErrReportTransition
	}

	from := report.Status
	report.Status = to
	if to.IsClosed() {
		now := t.now()
		report.ResolvedAt = &now
	}
	if req.Notes != nil {
		report.ResolutionNotes = req.Notes
	}
	if err := t.repo.SuspiciousReport.Update(ctx, report, from); err != nil {
		if isOptimisticLock(err) {
			return nil, ErrReportTransition
		}
		t.logger.Error("更新可疑报告状态失败", zap.String("report_id", reportID), zap.Error(err))
		return nil, translate(err, ErrReportNotFound, "failed to update report")
	}
	return report, nil
}

func (t *incidentTracker) ListReports(ctx context.Context, req *dto.IncidentListRequest) ([]model.SuspiciousReport, error) {
	var status *model.ReportStatus
	if req.Status != "" {
		st, ok := model.ParseReportStatus(req.Status)
		if !ok {
			return nil, ErrInvalidReportStatus
		}
		status = &st
	}
	reports, err := t.repo.SuspiciousReport.List(ctx, status, req.VisitorID)
	if err != nil {
		t.logger.Error("查询可疑报告失败", zap.Error(err))
		return nil, translate(err, nil, "failed to list reports")
	}
	return reports, nil
}
