package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/model"
	"safepass/backend/internal/repository"
	pkgerrors "safepass/backend/pkg/errors"
)

const trendDays = 7

// VisitorQuery 访客只读查询与统计
type VisitorQuery interface {
	GetByID(ctx context.Context, id string) (*model.Visitor, error)
	List(ctx context.Context, req *dto.VisitorListRequest) ([]model.Visitor, int64, error)
	// ListByHost pendingOnly=true 时只返回待审批
	ListByHost(ctx context.Context, hostID string, pendingOnly bool) ([]model.Visitor, error)
	TodayStats(ctx context.Context) (*dto.TodayStats, error)
	// WeeklyTrends 最近 7 天（含今天）每日登记数，按日期升序，无数据的日期补 0
	WeeklyTrends(ctx context.Context) ([]dto.DailyCount, error)
}

type visitorQuery struct {
	repo   *repository.Repository
	loc    *time.Location
	now    Clock
	logger *zap.Logger
}

// NewVisitorQuery 创建 VisitorQuery 实例；loc 决定"今天"的边界
func NewVisitorQuery(repo *repository.Repository, loc *time.Location, now Clock, logger *zap.Logger) VisitorQuery {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &visitorQuery{repo: repo, loc: loc, now: now, logger: logger}
}

func (q *visitorQuery) GetByID(ctx context.Context, id string) (*model.Visitor, error) {
	return loadVisitor(ctx, q.repo.Visitor, id)
}

func (q *visitorQuery) List(ctx context.Context, req *dto.VisitorListRequest) ([]model.Visitor, int64, error) {
	filter := repository.VisitorFilter{
		HostID: req.HostID,
		Search: req.Search,
		Offset: req.GetOffset(),
		Limit:  req.GetPageSize(),
	}
	if req.Status != "" {
		st, ok := model.ParseVisitorStatus(req.Status)
		if !ok {
			return nil, 0, pkgerrors.Validation("invalid status")
		}
		filter.Status = &st
	}
	if req.Date != "" {
		d, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			return nil, 0, pkgerrors.Validation("invalid date")
		}
		filter.VisitDate = &d
	}

	visitors, total, err := q.repo.Visitor.List(ctx, filter)
	if err != nil {
		q.logger.Error("查询访客列表失败", zap.Error(err))
		return nil, 0, translate(err, nil, "failed to list visitors")
	}
	return visitors, total, nil
}

func (q *visitorQuery) ListByHost(ctx context.Context, hostID string, pendingOnly bool) ([]model.Visitor, error) {
	if !isUUID(hostID) {
		return []model.Visitor{}, nil
	}
	var status *model.VisitorStatus
	if pendingOnly {
		st := model.VisitorPending
		status = &st
	}
	visitors, err := q.repo.Visitor.ListByHost(ctx, hostID, status)
	if err != nil {
		q.logger.Error("查询被访人访客失败", zap.String("host_id", hostID), zap.Error(err))
		return nil, translate(err, nil, "failed to list visitors")
	}
	return visitors, nil
}

func (q *visitorQuery) startOfDay(t time.Time) time.Time {
	local := t.In(q.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, q.loc)
}

func (q *visitorQuery) TodayStats(ctx context.Context) (*dto.TodayStats, error) {
	counts, err := q.repo.Visitor.CountByStatusSince(ctx, q.startOfDay(q.now()))
	if err != nil {
		q.logger.Error("统计今日访客失败", zap.Error(err))
		return nil, translate(err, nil, "failed to load stats")
	}

	stats := &dto.TodayStats{
		Pending:    counts[model.VisitorPending],
		Approved:   counts[model.VisitorApproved],
		Rejected:   counts[model.VisitorRejected],
		CheckedIn:  counts[model.VisitorCheckedIn],
		CheckedOut: counts[model.VisitorCheckedOut],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (q *visitorQuery) WeeklyTrends(ctx context.Context) ([]dto.DailyCount, error) {
	first := q.startOfDay(q.now()).AddDate(0, 0, -(trendDays - 1))
	counts, err := q.repo.Visitor.CountByDaySince(ctx, first, q.loc)
	if err != nil {
		q.logger.Error("统计访客趋势失败", zap.Error(err))
		return nil, translate(err, nil, "failed to load trends")
	}

	trends := make([]dto.DailyCount, 0, trendDays)
	for i := 0; i < trendDays; i++ {
		day := first.AddDate(0, 0, i).Format(dateLayout)
		trends = append(trends, dto.DailyCount{Date: day, Count: counts[day]})
	}
	return trends, nil
}
