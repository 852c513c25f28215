package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"safepass/backend/internal/model"
	pkgerrors "safepass/backend/pkg/errors"
)

// GatePassRepository 通行证数据访问接口
type GatePassRepository interface {
	Create(ctx context.Context, pass *model.GatePass) error
	GetByNumber(ctx context.Context, number string) (*model.GatePass, error)
	GetActiveByVisitor(ctx context.Context, visitorID string) (*model.GatePass, error)
	ListByVisitor(ctx context.Context, visitorID string) ([]model.GatePass, error)
	// Update 以当前状态为条件更新，条件不满足返回 ErrOptimisticLock
	Update(ctx context.Context, pass *model.GatePass, from model.GatePassStatus) error
	RevokeActiveByVisitor(ctx context.Context, visitorID string) (int64, error)
}

type gatePassRepo struct {
	db *gorm.DB
}

func NewGatePassRepo(db *gorm.DB) GatePassRepository {
	return &gatePassRepo{db: db}
}

func (r *gatePassRepo) Create(ctx context.Context, pass *model.GatePass) error {
	return r.db.WithContext(ctx).Create(pass).Error
}

func (r *gatePassRepo) GetByNumber(ctx context.Context, number string) (*model.GatePass, error) {
	var pass model.GatePass
	if err := r.db.WithContext(ctx).Where("gate_pass_number = ?", number).First(&pass).Error; err != nil {
		return nil, err
	}
	return &pass, nil
}

func (r *gatePassRepo) GetActiveByVisitor(ctx context.Context, visitorID string) (*model.GatePass, error) {
	var pass model.GatePass
	err := r.db.WithContext(ctx).
		Where("visitor_id = ? AND status = ?", visitorID, model.GatePassActive).
		First(&pass).Error
	if err != nil {
		return nil, err
	}
	return &pass, nil
}

func (r *gatePassRepo) ListByVisitor(ctx context.Context, visitorID string) ([]model.GatePass, error) {
	var passes []model.GatePass
	err := r.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		Order("issued_at DESC").
		Find(&passes).Error
	return passes, err
}

func (r *gatePassRepo) Update(ctx context.Context, pass *model.GatePass, from model.GatePassStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.GatePass{}).
		Where("gate_pass_id = ? AND status = ?", pass.GatePassID, from).
		Updates(map[string]interface{}{
			"status":         pass.Status,
			"gate":           pass.Gate,
			"check_in_time":  pass.CheckInTime,
			"check_out_time": pass.CheckOutTime,
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

func (r *gatePassRepo) RevokeActiveByVisitor(ctx context.Context, visitorID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.GatePass{}).
		Where("visitor_id = ? AND status = ?", visitorID, model.GatePassActive).
		Updates(map[string]interface{}{
			"status":     model.GatePassRevoked,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
