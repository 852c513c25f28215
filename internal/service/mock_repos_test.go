package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"safepass/backend/internal/model"
	"safepass/backend/internal/notify"
	"safepass/backend/internal/repository"
	pkgerrors "safepass/backend/pkg/errors"
)

// ── 内存数据 ──
// 所有 mock 仓储共享一个 store，读写均返回副本，避免测试间共享指针

type mockStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	now      func() time.Time
	visitors map[string]*model.Visitor
	hosts    map[string]*model.Host
	passes   map[string]*model.GatePass
	records  map[string]*model.CheckInOutRecord
	flags    map[string]*model.FlaggedVisitor
	reports  map[string]*model.SuspiciousReport
	// fail 按 "Repo.Method" 注入错误
	fail map[string]error
}

func newMockStore(now func() time.Time) *mockStore {
	return &mockStore{
		now:      now,
		visitors: make(map[string]*model.Visitor),
		hosts:    make(map[string]*model.Host),
		passes:   make(map[string]*model.GatePass),
		records:  make(map[string]*model.CheckInOutRecord),
		flags:    make(map[string]*model.FlaggedVisitor),
		reports:  make(map[string]*model.SuspiciousReport),
		fail:     make(map[string]error),
	}
}

func (s *mockStore) failWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

// injected 调用方需持有 s.mu
func (s *mockStore) injected(op string) error {
	return s.fail[op]
}

func copyMap[T any](m map[string]*T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

// repository 组装 Repository，事务通过快照 / 回滚模拟
func (s *mockStore) repository() *repository.Repository {
	repo := &repository.Repository{
		Visitor:          &mockVisitorRepo{s},
		Host:             &mockHostRepo{s},
		GatePass:         &mockGatePassRepo{s},
		CheckInOut:       &mockCheckInOutRepo{s},
		FlaggedVisitor:   &mockFlagRepo{s},
		SuspiciousReport: &mockReportRepo{s},
	}
	repo.TxHook = func(_ context.Context, r *repository.Repository, fn func(txRepo *repository.Repository) error) error {
		s.txMu.Lock()
		defer s.txMu.Unlock()

		s.mu.Lock()
		visitors, passes, records := copyMap(s.visitors), copyMap(s.passes), copyMap(s.records)
		s.mu.Unlock()

		if err := fn(r); err != nil {
			s.mu.Lock()
			s.visitors, s.passes, s.records = visitors, passes, records
			s.mu.Unlock()
			return err
		}
		return nil
	}
	return repo
}

func (s *mockStore) stamp(base *model.BaseModel) {
	now := s.now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// ── Mock VisitorRepository ──

type mockVisitorRepo struct{ s *mockStore }

func (m *mockVisitorRepo) Create(_ context.Context, v *model.Visitor) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.injected("Visitor.Create"); err != nil {
		return err
	}
	if v.VisitorID == "" {
		v.VisitorID = uuid.NewString()
	}
	if v.Version == 0 {
		v.Version = 1
	}
	m.s.stamp(&v.BaseModel)
	c := *v
	m.s.visitors[v.VisitorID] = &c
	return nil
}

func (m *mockVisitorRepo) GetByID(_ context.Context, id string) (*model.Visitor, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.injected("Visitor.GetByID"); err != nil {
		return nil, err
	}
	if v, ok := m.s.visitors[id]; ok {
		c := *v
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVisitorRepo) match(v *model.Visitor, f repository.VisitorFilter) bool {
	if f.Status != nil && v.Status != *f.Status {
		return false
	}
	if f.HostID != "" && (v.HostID == nil || *v.HostID != f.HostID) {
		return false
	}
	if f.VisitDate != nil && !v.VisitDate.Equal(*f.VisitDate) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(v.Name), q) &&
			!strings.Contains(v.CNIC, q) &&
			!strings.Contains(strings.ToLower(v.Email), q) {
			return false
		}
	}
	return true
}

func (m *mockVisitorRepo) sorted(keep func(*model.Visitor) bool) []model.Visitor {
	var out []model.Visitor
	for _, v := range m.s.visitors {
		if keep(v) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockVisitorRepo) List(_ context.Context, f repository.VisitorFilter) ([]model.Visitor, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	all := m.sorted(func(v *model.Visitor) bool { return m.match(v, f) })
	total := int64(len(all))
	if f.Offset >= len(all) {
		return []model.Visitor{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m *mockVisitorRepo) ListByHost(_ context.Context, hostID string, status *model.VisitorStatus) ([]model.Visitor, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.sorted(func(v *model.Visitor) bool {
		return m.match(v, repository.VisitorFilter{HostID: hostID, Status: status})
	}), nil
}

func (m *mockVisitorRepo) UpdateStatus(_ context.Context, v *model.Visitor, from model.VisitorStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.injected("Visitor.UpdateStatus"); err != nil {
		return err
	}
	cur, ok := m.s.visitors[v.VisitorID]
	if !ok || cur.Status != from || cur.Version != v.Version {
		return pkgerrors.ErrOptimisticLock
	}
	v.Version++
	v.UpdatedAt = m.s.now()
	c := *v
	m.s.visitors[v.VisitorID] = &c
	return nil
}

func (m *mockVisitorRepo) UpdateDetails(_ context.Context, v *model.Visitor) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.visitors[v.VisitorID]
	if !ok || cur.Status != model.VisitorPending || cur.Version != v.Version {
		return pkgerrors.ErrOptimisticLock
	}
	v.Version++
	c := *v
	m.s.visitors[v.VisitorID] = &c
	return nil
}

func (m *mockVisitorRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.visitors[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.visitors, id)
	return nil
}

func (m *mockVisitorRepo) CountByStatusSince(_ context.Context, since time.Time) (map[model.VisitorStatus]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.injected("Visitor.CountByStatusSince"); err != nil {
		return nil, err
	}
	counts := make(map[model.VisitorStatus]int64)
	for _, v := range m.s.visitors {
		if !v.CreatedAt.Before(since) {
			counts[v.Status]++
		}
	}
	return counts, nil
}

func (m *mockVisitorRepo) CountByDaySince(_ context.Context, since time.Time, loc *time.Location) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	counts := make(map[string]int64)
	for _, v := range m.s.visitors {
		if !v.CreatedAt.Before(since) {
			counts[v.CreatedAt.In(loc).Format("2006-01-02")]++
		}
	}
	return counts, nil
}

// ── Mock HostRepository ──

type mockHostRepo struct{ s *mockStore }

func (m *mockHostRepo) GetByID(_ context.Context, id string) (*model.Host, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if h, ok := m.s.hosts[id]; ok {
		c := *h
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockHostRepo) Upsert(_ context.Context, h *model.Host) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c := *h
	m.s.hosts[h.HostID] = &c
	return nil
}

// ── Mock GatePassRepository ──

type mockGatePassRepo struct{ s *mockStore }

func (m *mockGatePassRepo) Create(_ context.Context, p *model.GatePass) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.injected("GatePass.Create"); err != nil {
		return err
	}
	for _, existing := range m.s.passes {
		if existing.GatePassNumber == p.GatePassNumber {
			return gorm.ErrDuplicatedKey
		}
		if existing.VisitorID == p.VisitorID && existing.Status == model.GatePassActive && p.Status == model.GatePassActive {
			return gorm.ErrDuplicatedKey
		}
	}
	if p.GatePassID == "" {
		p.GatePassID = uuid.NewString()
	}
	m.s.stamp(&p.BaseModel)
	c := *p
	m.s.passes[p.GatePassID] = &c
	return nil
}

func (m *mockGatePassRepo) GetByNumber(_ context.Context, number string) (*model.GatePass, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.passes {
		if p.GatePassNumber == number {
			c := *p
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGatePassRepo) GetActiveByVisitor(_ context.Context, visitorID string) (*model.GatePass, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.passes {
		if p.VisitorID == visitorID && p.Status == model.GatePassActive {
			c := *p
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGatePassRepo) ListByVisitor(_ context.Context, visitorID string) ([]model.GatePass, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.GatePass
	for _, p := range m.s.passes {
		if p.VisitorID == visitorID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (m *mockGatePassRepo) Update(_ context.Context, p *model.GatePass, from model.GatePassStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.injected("GatePass.Update"); err != nil {
		return err
	}
	cur, ok := m.s.passes[p.GatePassID]
	if !ok || cur.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	c := *p
	m.s.passes[p.GatePassID] = &c
	return nil
}

func (m *mockGatePassRepo) RevokeActiveByVisitor(_ context.Context, visitorID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, p := range m.s.passes {
		if p.VisitorID == visitorID && p.Status == model.GatePassActive {
			p.Status = model.GatePassRevoked
			n++
		}
	}
	return n, nil
}

// ── Mock CheckInOutRepository ──

type mockCheckInOutRepo struct{ s *mockStore }

func (m *mockCheckInOutRepo) Create(_ context.Context, r *model.CheckInOutRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.injected("CheckInOut.Create"); err != nil {
		return err
	}
	for _, existing := range m.s.records {
		if existing.VisitorID == r.VisitorID && existing.Status == model.RecordCheckedIn {
			return gorm.ErrDuplicatedKey
		}
	}
	if r.RecordID == "" {
		r.RecordID = uuid.NewString()
	}
	m.s.stamp(&r.BaseModel)
	c := *r
	m.s.records[r.RecordID] = &c
	return nil
}

func (m *mockCheckInOutRepo) GetOpenByVisitor(_ context.Context, visitorID string) (*model.CheckInOutRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.records {
		if r.VisitorID == visitorID && r.Status == model.RecordCheckedIn {
			c := *r
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCheckInOutRepo) Close(_ context.Context, r *model.CheckInOutRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.injected("CheckInOut.Close"); err != nil {
		return err
	}
	cur, ok := m.s.records[r.RecordID]
	if !ok || cur.Status != model.RecordCheckedIn {
		return pkgerrors.ErrOptimisticLock
	}
	c := *r
	m.s.records[r.RecordID] = &c
	return nil
}

func (m *mockCheckInOutRepo) List(_ context.Context, f repository.RecordFilter) ([]model.CheckInOutRecord, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.CheckInOutRecord
	for _, r := range m.s.records {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.From != nil && r.CheckInTime.Before(*f.From) {
			continue
		}
		if f.To != nil && !r.CheckInTime.Before(*f.To) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	total := int64(len(out))
	if f.Offset >= len(out) {
		return []model.CheckInOutRecord{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

// ── Mock FlaggedVisitorRepository ──

type mockFlagRepo struct{ s *mockStore }

func (m *mockFlagRepo) Create(_ context.Context, f *model.FlaggedVisitor) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if f.FlagID == "" {
		f.FlagID = uuid.NewString()
	}
	m.s.stamp(&f.BaseModel)
	c := *f
	m.s.flags[f.FlagID] = &c
	return nil
}

func (m *mockFlagRepo) GetByID(_ context.Context, id string) (*model.FlaggedVisitor, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if f, ok := m.s.flags[id]; ok {
		c := *f
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFlagRepo) Update(_ context.Context, f *model.FlaggedVisitor, from model.FlagStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.flags[f.FlagID]
	if !ok || cur.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	c := *f
	m.s.flags[f.FlagID] = &c
	return nil
}

func (m *mockFlagRepo) List(_ context.Context, status *model.FlagStatus, visitorID string) ([]model.FlaggedVisitor, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.FlaggedVisitor
	for _, f := range m.s.flags {
		if status != nil && f.Status != *status {
			continue
		}
		if visitorID != "" && f.VisitorID != visitorID {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

// ── Mock SuspiciousReportRepository ──

type mockReportRepo struct{ s *mockStore }

func (m *mockReportRepo) Create(_ context.Context, r *model.SuspiciousReport) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r.ReportID == "" {
		r.ReportID = uuid.NewString()
	}
	m.s.stamp(&r.BaseModel)
	c := *r
	m.s.reports[r.ReportID] = &c
	return nil
}

func (m *mockReportRepo) GetByID(_ context.Context, id string) (*model.SuspiciousReport, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.reports[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReportRepo) Update(_ context.Context, r *model.SuspiciousReport, from model.ReportStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.reports[r.ReportID]
	if !ok || cur.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	c := *r
	m.s.reports[r.ReportID] = &c
	return nil
}

func (m *mockReportRepo) List(_ context.Context, status *model.ReportStatus, visitorID string) ([]model.SuspiciousReport, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.SuspiciousReport
	for _, r := range m.s.reports {
		if status != nil && r.Status != *status {
			continue
		}
		if visitorID != "" && r.VisitorID != visitorID {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// ── 记录型 Dispatcher ──

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *recordingDispatcher) Enqueue(events ...notify.Event) *notify.Ticket {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
	return nil
}

func (d *recordingDispatcher) count(kind notify.Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (d *recordingDispatcher) sent(kind notify.Kind) []notify.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Event
	for _, e := range d.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

// ── 可控时钟 ──

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
