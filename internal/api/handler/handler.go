package handler

import (
	"go.uber.org/zap"

	"safepass/backend/config"
	"safepass/backend/internal/realtime"
	"safepass/backend/internal/service"
	"safepass/backend/pkg/jwt"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Visitor  *VisitorHandler
	Incident *IncidentHandler
	GatePass *GatePassHandler
	Ledger   *LedgerHandler
	Realtime *RealtimeHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service, hub *realtime.Hub, jwtMgr *jwt.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		Visitor:  NewVisitorHandler(svc.Visitor, svc.Query),
		Incident: NewIncidentHandler(svc.Visitor, svc.Incident),
		GatePass: NewGatePassHandler(svc.GatePass),
		Ledger:   NewLedgerHandler(svc.Ledger, svc.Export),
		Realtime: NewRealtimeHandler(hub, jwtMgr, cfg.Server.CORS.AllowOrigins, logger),
	}
}
