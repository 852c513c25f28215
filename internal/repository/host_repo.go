package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safepass/backend/internal/model"
)

// HostRepository 被访人目录数据访问接口
type HostRepository interface {
	GetByID(ctx context.Context, id string) (*model.Host, error)
	Upsert(ctx context.Context, host *model.Host) error
}

type hostRepo struct {
	db *gorm.DB
}

func NewHostRepo(db *gorm.DB) HostRepository {
	return &hostRepo{db: db}
}

func (r *hostRepo) GetByID(ctx context.Context, id string) (*model.Host, error) {
	var host model.Host
	if err := r.db.WithContext(ctx).Where("host_id = ?", id).First(&host).Error; err != nil {
		return nil, err
	}
	return &host, nil
}

// Upsert 由用户目录同步写入
func (r *hostRepo) Upsert(ctx context.Context, host *model.Host) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "host_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "department", "updated_at"}),
		}).
		Create(host).Error
}
