package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/model"
)

// seedVisitor 直接写入带指定创建时间的访客
func (e *testEnv) seedVisitor(t *testing.T, status model.VisitorStatus, createdAt time.Time, hostID *string) *model.Visitor {
	t.Helper()
	v := &model.Visitor{
		Name:      "Seeded",
		CNIC:      "3520156789123",
		Email:     "seed@example.pk",
		Phone:     "03001234567",
		Purpose:   "Fixture",
		VisitDate: createdAt.Truncate(24 * time.Hour),
		Status:    status,
		HostID:    hostID,
	}
	v.CreatedAt = createdAt
	if err := e.store.repository().Visitor.Create(context.Background(), v); err != nil {
		t.Fatalf("写入测试访客失败: %v", err)
	}
	return v
}

func TestVisitorQuery_TodayStats_ExcludesEarlierDays(t *testing.T) {
	env := setupTestEnv()
	today := env.clock.Now()
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	fixture := map[model.VisitorStatus]int{
		model.VisitorPending:    3,
		model.VisitorApproved:   2,
		model.VisitorCheckedIn:  1,
		model.VisitorCheckedOut: 1,
		model.VisitorRejected:   2,
	}
	for status, n := range fixture {
		for i := 0; i < n; i++ {
			env.seedVisitor(t, status, midnight.Add(time.Duration(i+1)*time.Minute), nil)
		}
	}
	// 昨天及更早的不计入
	env.seedVisitor(t, model.VisitorPending, midnight.Add(-time.Second), nil)
	env.seedVisitor(t, model.VisitorApproved, midnight.AddDate(0, 0, -3), nil)

	stats, err := env.query.TodayStats(context.Background())
	if err != nil {
		t.Fatalf("TodayStats 失败: %v", err)
	}
	want := dto.TodayStats{Total: 9, Pending: 3, Approved: 2, CheckedIn: 1, CheckedOut: 1, Rejected: 2}
	if *stats != want {
		t.Errorf("期望 %+v，实际 %+v", want, *stats)
	}
	if stats.Pending+stats.Approved+stats.CheckedIn+stats.CheckedOut+stats.Rejected != stats.Total {
		t.Error("各状态之和应等于总数")
	}
}

func TestVisitorQuery_TodayStats_UsesBusinessTimezone(t *testing.T) {
	env := setupTestEnv()
	karachi := time.FixedZone("PKT", 5*3600)
	q := NewVisitorQuery(env.store.repository(), karachi, env.clock.Now, zap.NewNop())

	// 09:00 UTC = 14:00 PKT；PKT 当天零点为前一日 19:00 UTC
	env.seedVisitor(t, model.VisitorPending, time.Date(2026, 10, 13, 19, 30, 0, 0, time.UTC), nil)
	env.seedVisitor(t, model.VisitorPending, time.Date(2026, 10, 13, 18, 30, 0, 0, time.UTC), nil)

	stats, err := q.TodayStats(context.Background())
	if err != nil {
		t.Fatalf("TodayStats 失败: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("期望按 PKT 统计 1 条，实际 %d", stats.Total)
	}
}

func TestVisitorQuery_WeeklyTrends_ZeroFilled(t *testing.T) {
	env := setupTestEnv()
	now := env.clock.Now()

	env.seedVisitor(t, model.VisitorPending, now, nil)
	env.seedVisitor(t, model.VisitorPending, now.Add(-time.Hour), nil)
	env.seedVisitor(t, model.VisitorApproved, now.AddDate(0, 0, -2), nil)
	env.seedVisitor(t, model.VisitorApproved, now.AddDate(0, 0, -6), nil)
	env.seedVisitor(t, model.VisitorApproved, now.AddDate(0, 0, -7), nil) // 窗口外

	trends, err := env.query.WeeklyTrends(context.Background())
	if err != nil {
		t.Fatalf("WeeklyTrends 失败: %v", err)
	}
	if len(trends) != 7 {
		t.Fatalf("期望 7 天，实际 %d", len(trends))
	}
	want := []dto.DailyCount{
		{Date: "2026-10-08", Count: 1},
		{Date: "2026-10-09", Count: 0},
		{Date: "2026-10-10", Count: 0},
		{Date: "2026-10-11", Count: 0},
		{Date: "2026-10-12", Count: 1},
		{Date: "2026-10-13", Count: 0},
		{Date: "2026-10-14", Count: 2},
	}
	for i := range want {
		if trends[i] != want[i] {
			t.Errorf("第 %d 天期望 %+v，实际 %+v", i, want[i], trends[i])
		}
	}
}

func TestVisitorQuery_ListAndByHost(t *testing.T) {
	env := setupTestEnv()
	ctx := context.Background()
	host := hostH1
	now := env.clock.Now()

	env.seedVisitor(t, model.VisitorPending, now.Add(-3*time.Minute), &host)
	env.seedVisitor(t, model.VisitorApproved, now.Add(-2*time.Minute), &host)
	env.seedVisitor(t, model.VisitorPending, now.Add(-time.Minute), nil)

	pending, err := env.query.ListByHost(ctx, hostH1, true)
	if err != nil || len(pending) != 1 {
		t.Errorf("期望 1 条待审批，实际 %d (%v)", len(pending), err)
	}
	all, _ := env.query.ListByHost(ctx, hostH1, false)
	if len(all) != 2 {
		t.Errorf("期望被访人共 2 条，实际 %d", len(all))
	}

	list, total, err := env.query.List(ctx, &dto.VisitorListRequest{Status: "pending"})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("期望 2 条 pending，实际 total=%d len=%d", total, len(list))
	}

	page, total, _ := env.query.List(ctx, &dto.VisitorListRequest{PaginationRequest: dto.PaginationRequest{Page: 2, PageSize: 2}})
	if total != 3 || len(page) != 1 {
		t.Errorf("第 2 页期望 1 条，实际 total=%d len=%d", total, len(page))
	}

	if _, _, err := env.query.List(ctx, &dto.VisitorListRequest{Status: "archived"}); err == nil {
		t.Error("未知状态应返回校验错误")
	}
}
