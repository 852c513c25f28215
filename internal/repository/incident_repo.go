package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"safepass/backend/internal/model"
	pkgerrors "safepass/backend/pkg/errors"
)

// FlaggedVisitorRepository 访客标记数据访问接口
type FlaggedVisitorRepository interface {
	Create(ctx context.Context, flag *model.FlaggedVisitor) error
	GetByID(ctx context.Context, id string) (*model.FlaggedVisitor, error)
	Update(ctx context.Context, flag *model.FlaggedVisitor, from model.FlagStatus) error
	List(ctx context.Context, status *model.FlagStatus, visitorID string) ([]model.FlaggedVisitor, error)
}

// SuspiciousReportRepository 可疑报告数据访问接口
type SuspiciousReportRepository interface {
	Create(ctx context.Context, report *model.SuspiciousReport) error
	GetByID(ctx context.Context, id string) (*model.SuspiciousReport, error)
	Update(ctx context.Context, report *model.SuspiciousReport, from model.ReportStatus) error
	List(ctx context.Context, status *model.ReportStatus, visitorID string) ([]model.SuspiciousReport, error)
}

// ── FlaggedVisitor Repository 实现 ──

type flaggedVisitorRepo struct {
	db *gorm.DB
}

func NewFlaggedVisitorRepo(db *gorm.DB) FlaggedVisitorRepository {
	return &flaggedVisitorRepo{db: db}
}

func (r *flaggedVisitorRepo) Create(ctx context.Context, flag *model.FlaggedVisitor) error {
	return r.db.WithContext(ctx).Create(flag).Error
}

func (r *flaggedVisitorRepo) GetByID(ctx context.Context, id string) (*model.FlaggedVisitor, error) {
	var flag model.FlaggedVisitor
	if err := r.db.WithContext(ctx).Where("flag_id = ?", id).First(&flag).Error; err != nil {
		return nil, err
	}
	return &flag, nil
}

func (r *flaggedVisitorRepo) Update(ctx context.Context, flag *model.FlaggedVisitor, from model.FlagStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.FlaggedVisitor{}).
		Where("flag_id = ? AND status = ?", flag.FlagID, from).
		Updates(map[string]interface{}{
			"status":         flag.Status,
			"resolved_at":    flag.ResolvedAt,
			"resolved_notes": flag.ResolvedNotes,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *flaggedVisitorRepo) List(ctx context.Context, status *model.FlagStatus, visitorID string) ([]model.FlaggedVisitor, error) {
	query := r.db.WithContext(ctx)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if visitorID != "" {
		query = query.Where("visitor_id = ?", visitorID)
	}
	var flags []model.FlaggedVisitor
	err := query.Order("created_at DESC").Find(&flags).Error
	return flags, err
}

// ── SuspiciousReport Repository 实现 ──

type suspiciousReportRepo struct {
	db *gorm.DB
}

func NewSuspiciousReportRepo(db *gorm.DB) SuspiciousReportRepository {
	return &suspiciousReportRepo{db: db}
}

func (r *suspiciousReportRepo) Create(ctx context.Context, report *model.SuspiciousReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *suspiciousReportRepo) GetByID(ctx context.Context, id string) (*model.SuspiciousReport, error) {
	var report model.SuspiciousReport
	if err := r.db.WithContext(ctx).Where("report_id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *suspiciousReportRepo) Update(ctx context.Context, report *model.SuspiciousReport, from model.ReportStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.SuspiciousReport{}).
		Where("report_id = ? AND status = ?", report.ReportID, from).
		Updates(map[string]interface{}{
			"status":           report.Status,
			"resolved_at":      report.ResolvedAt,
			"resolution_notes": report.ResolutionNotes,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *suspiciousReportRepo) List(ctx context.Context, status *model.ReportStatus, visitorID string) ([]model.SuspiciousReport, error) {
	query := r.db.WithContext(ctx)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if visitorID != "" {
		query = query.Where("visitor_id = ?", visitorID)
	}
	var reports []model.SuspiciousReport
	err := query.Order("created_at DESC").Find(&reports).Error
	return reports, err
}
