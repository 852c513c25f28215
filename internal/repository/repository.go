package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// defaultTxTimeout 单个事务的最长执行时间
const defaultTxTimeout = 5 * time.Second

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Visitor          VisitorRepository
	Host             HostRepository
	GatePass         GatePassRepository
	CheckInOut       CheckInOutRepository
	FlaggedVisitor   FlaggedVisitorRepository
	SuspiciousReport SuspiciousReportRepository

	db *gorm.DB

	// TxHook 无数据库时（单元测试）替代事务实现；为空则直接执行 fn
	TxHook func(ctx context.Context, r *Repository, fn func(txRepo *Repository) error) error
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Visitor:          NewVisitorRepo(db),
		Host:             NewHostRepo(db),
		GatePass:         NewGatePassRepo(db),
		CheckInOut:       NewCheckInOutRepo(db),
		FlaggedVisitor:   NewFlaggedVisitorRepo(db),
		SuspiciousReport: NewSuspiciousReportRepo(db),
		db:               db,
	}
}

// Transaction 在同一数据库事务中执行 fn，fn 返回错误时整体回滚
// fn 必须只通过 txRepo 访问数据
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		if r.TxHook != nil {
			return r.TxHook(ctx, r, fn)
		}
		return fn(r)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
