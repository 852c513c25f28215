package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"safepass/backend/internal/model"
	pkgerrors "safepass/backend/pkg/errors"
)

// RecordFilter 出入记录查询条件
type RecordFilter struct {
	Status *model.RecordStatus
	From   *time.Time // check_in_time >= From
	To     *time.Time // check_in_time < To
	Offset int
	Limit  int // 0 表示不限（导出）
}

// CheckInOutRepository 出入登记数据访问接口
type CheckInOutRepository interface {
	Create(ctx context.Context, record *model.CheckInOutRecord) error
	GetOpenByVisitor(ctx context.Context, visitorID string) (*model.CheckInOutRecord, error)
	// Close 仅关闭仍处于 checked-in 的记录
	Close(ctx context.Context, record *model.CheckInOutRecord) error
	List(ctx context.Context, filter RecordFilter) ([]model.CheckInOutRecord, int64, error)
}

type checkInOutRepo struct {
	db *gorm.DB
}

func NewCheckInOutRepo(db *gorm.DB) CheckInOutRepository {
	return &checkInOutRepo{db: db}
}

func (r *checkInOutRepo) Create(ctx context.Context, record *model.CheckInOutRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *checkInOutRepo) GetOpenByVisitor(ctx context.Context, visitorID string) (*model.CheckInOutRecord, error) {
	var record model.CheckInOutRecord
	err := r.db.WithContext(ctx).
		Where("visitor_id = ? AND status = ?", visitorID, model.RecordCheckedIn).
		Order("check_in_time DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *checkInOutRepo) Close(ctx context.Context, record *model.CheckInOutRecord) error {
	result := r.db.WithContext(ctx).
		Model(&model.CheckInOutRecord{}).
		Where("record_id = ? AND status = ?", record.RecordID, model.RecordCheckedIn).
		Updates(map[string]interface{}{
			"status":         record.Status,
			"check_out_time": record.CheckOutTime,
			"notes":          record.Notes,
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

func (r *checkInOutRepo) List(ctx context.Context, filter RecordFilter) ([]model.CheckInOutRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.CheckInOutRecord{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("check_in_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("check_in_time < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.CheckInOutRecord
	q := query.Order("check_in_time DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
