package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safepass/backend/config"
	"safepass/backend/internal/model"
	"safepass/backend/internal/notify"
	"safepass/backend/internal/repository"
	pkgerrors "safepass/backend/pkg/errors"
	"safepass/backend/pkg/jwt"
)

const dateLayout = "2006-01-02"

// Clock 当前时间来源，测试中可替换
type Clock func() time.Time

// Actor 发起操作的已认证用户
type Actor struct {
	ID   string
	Name string
	Role string
}

// Service 所有 Service 的聚合入口
type Service struct {
	Visitor  VisitorWorkflow
	Query    VisitorQuery
	GatePass CredentialIssuer
	Ledger   CheckInLedger
	Incident IncidentTracker
	Export   ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	signer *jwt.PassSigner,
	dispatcher notify.Dispatcher,
	logger *zap.Logger,
	metrics *Metrics,
) *Service {
	loc := cfg.App.Location()
	issuer := NewCredentialIssuer(repo, signer, cfg.GatePass.Validity, time.Now, logger)
	ledger := NewCheckInLedger(repo, loc, time.Now, logger)
	incidents := NewIncidentTracker(repo, time.Now, logger)

	return &Service{
		Visitor:  NewVisitorWorkflow(repo, issuer, ledger, incidents, dispatcher, time.Now, logger, metrics),
		Query:    NewVisitorQuery(repo, loc, time.Now, logger),
		GatePass: issuer,
		Ledger:   ledger,
		Incident: incidents,
		Export:   NewExportService(ledger, loc, logger),
	}
}

// ── 公共辅助 ──

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isOptimisticLock(err error) bool {
	return errors.Is(err, pkgerrors.ErrOptimisticLock)
}

// loadVisitor 非 UUID 的 id 直接视为不存在
func loadVisitor(ctx context.Context, visitors repository.VisitorRepository, id string) (*model.Visitor, error) {
	if !isUUID(id) {
		return nil, ErrVisitorNotFound
	}
	v, err := visitors.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, ErrVisitorNotFound, "failed to load visitor")
	}
	return v, nil
}

// mergeNotes 追加备注，保留已有内容
func mergeNotes(existing *string, add string) *string {
	if add == "" {
		return existing
	}
	if existing == nil || *existing == "" {
		return &add
	}
	merged := *existing + "\n" + add
	return &merged
}
