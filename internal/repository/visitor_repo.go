package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"safepass/backend/internal/model"
	pkgerrors "safepass/backend/pkg/errors"
)

// VisitorFilter 访客列表查询条件
type VisitorFilter struct {
	Status    *model.VisitorStatus
	HostID    string
	VisitDate *time.Time
	Search    string // 姓名 / CNIC / 邮箱 / 公司 模糊匹配
	Offset    int
	Limit     int
}

// VisitorRepository 访客数据访问接口
type VisitorRepository interface {
	Create(ctx context.Context, visitor *model.Visitor) error
	GetByID(ctx context.Context, id string) (*model.Visitor, error)
	List(ctx context.Context, filter VisitorFilter) ([]model.Visitor, int64, error)
	ListByHost(ctx context.Context, hostID string, status *model.VisitorStatus) ([]model.Visitor, error)
	// UpdateStatus 以 (from, version) 为条件更新状态及其附带字段，条件不满足返回 ErrOptimisticLock
	UpdateStatus(ctx context.Context, visitor *model.Visitor, from model.VisitorStatus) error
	UpdateDetails(ctx context.Context, visitor *model.Visitor) error
	Delete(ctx context.Context, id string) error
	CountByStatusSince(ctx context.Context, since time.Time) (map[model.VisitorStatus]int64, error)
	CountByDaySince(ctx context.Context, since time.Time, loc *time.Location) (map[string]int64, error)
}

type visitorRepo struct {
	db *gorm.DB
}

func NewVisitorRepo(db *gorm.DB) VisitorRepository {
	return &visitorRepo{db: db}
}

func (r *visitorRepo) Create(ctx context.Context, visitor *model.Visitor) error {
	return r.db.WithContext(ctx).Create(visitor).Error
}

func (r *visitorRepo) GetByID(ctx context.Context, id string) (*model.Visitor, error) {
	var visitor model.Visitor
	err := r.db.WithContext(ctx).
		Where("visitor_id = ?", id).
		First(&visitor).Error
	if err != nil {
		return nil, err
	}
	return &visitor, nil
}

func (r *visitorRepo) List(ctx context.Context, filter VisitorFilter) ([]model.Visitor, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Visitor{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.HostID != "" {
		query = query.Where("host_id = ?", filter.HostID)
	}
	if filter.VisitDate != nil {
		query = query.Where("visit_date = ?", filter.VisitDate.Format("2006-01-02"))
	}
	if filter.Search != "" {
		like := "%" + escapeLike(filter.Search) + "%"
		query = query.Where(`name ILIKE ? ESCAPE '\' OR cnic LIKE ? ESCAPE '\' OR email ILIKE ? ESCAPE '\' OR company ILIKE ? ESCAPE '\'`,
			like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var visitors []model.Visitor
	q := query.Order("created_at DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&visitors).Error; err != nil {
		return nil, 0, err
	}
	return visitors, total, nil
}

func (r *visitorRepo) ListByHost(ctx context.Context, hostID string, status *model.VisitorStatus) ([]model.Visitor, error) {
	query := r.db.WithContext(ctx).Where("host_id = ?", hostID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var visitors []model.Visitor
	err := query.Order("created_at DESC").Find(&visitors).Error
	return visitors, err
}

func (r *visitorRepo) UpdateStatus(ctx context.Context, visitor *model.Visitor, from model.VisitorStatus) error {
	oldVersion := visitor.Version
	result := r.db.WithContext(ctx).
		Model(&model.Visitor{}).
		Where("visitor_id = ? AND status = ? AND version = ?", visitor.VisitorID, from, oldVersion).
		Updates(map[string]interface{}{
			"status":           visitor.Status,
			"gate_pass_number": visitor.GatePassNumber,
			"qr_payload":       visitor.QRPayload,
			"check_in_time":    visitor.CheckInTime,
			"check_out_time":   visitor.CheckOutTime,
			"notes":            visitor.Notes,
			"updated_at":       time.Now(),
			"version":          oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	visitor.Version = oldVersion + 1
	return nil
}

func (r *visitorRepo) UpdateDetails(ctx context.Context, visitor *model.Visitor) error {
	oldVersion := visitor.Version
	result := r.db.WithContext(ctx).
		Model(&model.Visitor{}).
		Where("visitor_id = ? AND status = ? AND version = ?", visitor.VisitorID, model.VisitorPending, oldVersion).
		Updates(map[string]interface{}{
			"name":       visitor.Name,
			"email":      visitor.Email,
			"phone":      visitor.Phone,
			"purpose":    visitor.Purpose,
			"company":    visitor.Company,
			"visit_date": visitor.VisitDate,
			"notes":      visitor.Notes,
			"updated_at": time.Now(),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	visitor.Version = oldVersion + 1
	return nil
}

func (r *visitorRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("visitor_id = ?", id).
		Delete(&model.Visitor{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *visitorRepo) CountByStatusSince(ctx context.Context, since time.Time) (map[model.VisitorStatus]int64, error) {
	var rows []struct {
		Status model.VisitorStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Visitor{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.VisitorStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *visitorRepo) CountByDaySince(ctx context.Context, since time.Time, loc *time.Location) (map[string]int64, error) {
	var rows []struct {
		Day   string
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Visitor{}).
		Select("TO_CHAR(created_at AT TIME ZONE ?, 'YYYY-MM-DD') AS day, COUNT(*) AS count", loc.String()).
		Where("created_at >= ?", since).
		Group("day").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Day] = row.Count
	}
	return counts, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike 转义 LIKE 通配符，搜索词按字面匹配
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
