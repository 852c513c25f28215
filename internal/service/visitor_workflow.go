package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/model"
	"safepass/backend/internal/notify"
	"safepass/backend/internal/repository"
	pkgerrors "safepass/backend/pkg/errors"
)

// VisitorWorkflow 访客状态机
//
// 同一访客的迁移在进程内按 id 串行化，数据库层再以 (status, version) 做条件更新。
// 通知在锁内按提交顺序入队，在锁外投递；投递失败不影响已提交的结果。
type VisitorWorkflow interface {
	Register(ctx context.Context, req *dto.RegisterVisitorRequest) (*model.Visitor, error)
	Approve(ctx context.Context, id string, actor Actor) (*model.Visitor, error)
	Reject(ctx context.Context, id string, req *dto.RejectRequest, actor Actor) (*model.Visitor, error)
	CheckIn(ctx context.Context, id string, req *dto.CheckInRequest, actor Actor) (*model.Visitor, error)
	CheckOut(ctx context.Context, id string, actor Actor) (*model.Visitor, error)
	// RecordCheckIn / RecordCheckOut 驱动同样的迁移并返回登记流水
	RecordCheckIn(ctx context.Context, id string, req *dto.RecordCheckInRequest, actor Actor) (*model.CheckInOutRecord, error)
	RecordCheckOut(ctx context.Context, id string, req *dto.RecordCheckOutRequest, actor Actor) (*model.CheckInOutRecord, error)
	UpdateDetails(ctx context.Context, id string, req *dto.UpdateVisitorRequest, actor Actor) (*model.Visitor, error)
	Delete(ctx context.Context, id string, actor Actor) error
	FlagVisitor(ctx context.Context, id string, req *dto.FlagVisitorRequest, actor Actor) (*model.FlaggedVisitor, error)
	ReportSuspicious(ctx context.Context, id string, req *dto.ReportSuspiciousRequest, actor Actor) (*model.SuspiciousReport, error)
}

type visitorWorkflow struct {
	repo       *repository.Repository
	issuer     CredentialIssuer
	ledger     CheckInLedger
	incidents  IncidentTracker
	dispatcher notify.Dispatcher
	locks      *keyedMutex
	validate   *validator.Validate
	now        Clock
	logger     *zap.Logger
	metrics    *Metrics
}

// NewVisitorWorkflow 创建 VisitorWorkflow 实例
func NewVisitorWorkflow(
	repo *repository.Repository,
	issuer CredentialIssuer,
	ledger CheckInLedger,
	incidents IncidentTracker,
	dispatcher notify.Dispatcher,
	now Clock,
	logger *zap.Logger,
	metrics *Metrics,
) VisitorWorkflow {
	if now == nil {
		now = time.Now
	}
	return &visitorWorkflow{
		repo:       repo,
		issuer:     issuer,
		ledger:     ledger,
		incidents:  incidents,
		dispatcher: dispatcher,
		locks:      newKeyedMutex(),
		validate:   newRequestValidator(),
		now:        now,
		logger:     logger,
		metrics:    metrics,
	}
}

// newRequestValidator 与 gin binding 使用同一套标签，错误字段取 json 名
func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = dto.RegisterValidators(v)
	return v
}

func (s *visitorWorkflow) check(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return pkgerrors.Validation("invalid " + fieldErrs[0].Field())
	}
	return pkgerrors.Validation("invalid request")
}

// transition 持有访客锁执行 fn，释放锁后等待 fn 入队的通知
func (s *visitorWorkflow) transition(ctx context.Context, id string, action model.VisitorAction, fn func() (*notify.Ticket, error)) error {
	var ticket *notify.Ticket
	err := s.locks.With(id, func() error {
		t, err := fn()
		ticket = t
		return err
	})
	if err != nil {
		s.metrics.failure(action, string(pkgerrors.KindOf(err)))
		return err
	}
	s.metrics.transition(action)
	ticket.Wait(ctx)
	return nil
}

// ────────────────────── Register ──────────────────────

func (s *visitorWorkflow) Register(ctx context.Context, req *dto.RegisterVisitorRequest) (*model.Visitor, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	visitDate, err := time.Parse(dateLayout, req.VisitDate)
	if err != nil {
		return nil, pkgerrors.Validation("invalid visit_date")
	}

	visitor := &model.Visitor{
		Name:       strings.TrimSpace(req.Name),
		CNIC:       dto.NormalizeCNIC(req.CNIC),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Purpose:    req.Purpose,
		Company:    req.Company,
		Department: req.Department,
		VisitDate:  visitDate,
		Status:     model.VisitorPending,
	}

	var host *model.Host
	if req.HostID != nil && *req.HostID != "" {
		if !isUUID(*req.HostID) {
			return nil, ErrInvalidHostID
		}
		host, err = s.repo.Host.GetByID(ctx, *req.HostID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error("查询被访人失败", zap.String("host_id", *req.HostID), zap.Error(err))
			}
			return nil, translate(err, ErrHostNotFound, "failed to load host")
		}
		visitor.HostID = &host.HostID
		visitor.HostName = &host.Name
		if visitor.Department == nil {
			visitor.Department = host.Department
		}
	}

	if err := s.repo.Visitor.Create(ctx, visitor); err != nil {
		s.logger.Error("创建访客失败", zap.String("cnic", visitor.CNIC), zap.Error(err))
		return nil, translate(err, nil, "failed to register visitor")
	}
	s.logger.Info("访客登记成功", zap.String("visitor_id", visitor.VisitorID))

	summary := notify.Summarize(visitor)
	now := s.now()
	events := []notify.Event{
		{Kind: notify.KindRegistrationEmail, Audience: notify.ToVisitor(visitor), Visitor: summary, OccurredAt: now},
	}
	if host != nil {
		events = append(events, notify.Event{Kind: notify.KindNewVisitorRequest, Audience: notify.ToHost(host.HostID), Visitor: summary, OccurredAt: now})
		if host.Email != nil && *host.Email != "" {
			events = append(events, notify.Event{Kind: notify.KindApprovalRequestEmail, Audience: notify.ToHostEmail(*host.Email, host.Name), Visitor: summary, OccurredAt: now})
		}
	} else {
		events = append(events, notify.Event{Kind: notify.KindNewVisitorRequest, Audience: notify.ToOperators(), Visitor: summary, OccurredAt: now})
	}
	s.dispatcher.Enqueue(events...).Wait(ctx)

	return visitor, nil
}

// ────────────────────── Approve ──────────────────────

func (s *visitorWorkflow) Approve(ctx context.Context, id string, actor Actor) (*model.Visitor, error) {
	var result *model.Visitor
	err := s.transition(ctx, id, model.ActionApprove, func() (*notify.Ticket, error) {
		visitor, err := loadVisitor(ctx, s.repo.Visitor, id)
		if err != nil {
			return nil, err
		}
		to, ok := model.NextVisitorStatus(visitor.Status, model.ActionApprove)
		if !ok {
			return nil, ErrNotPending
		}

		var pass *model.GatePass
		updated := *visitor
		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			// 上一轮审批遗留的有效通行证先失效，保证每位访客至多一张 active
			if _, err := tx.GatePass.RevokeActiveByVisitor(ctx, visitor.VisitorID); err != nil {
				return err
			}
			pass, err = s.issuer.Issue(ctx, tx.GatePass, visitor.VisitorID)
			if err != nil {
				return err
			}
			updated.Status = to
			updated.GatePassNumber = &pass.GatePassNumber
			updated.QRPayload = &pass.QRPayload
			return tx.Visitor.UpdateStatus(ctx, &updated, visitor.Status)
		})
		if err != nil {
			s.logger.Error("审批访客失败", zap.String("visitor_id", id), zap.Error(err))
			return nil, translate(err, ErrVisitorNotFound, "failed to approve visitor")
		}
		result = &updated
		s.logger.Info("访客已审批",
			zap.String("visitor_id", id),
			zap.String("gate_pass_number", pass.GatePassNumber),
			zap.String("by", actor.ID),
		)

		email := notify.Event{
			Kind:     notify.KindApprovalEmail,
			Audience: notify.ToVisitor(result),
			Visitor:  notify.Summarize(result),
			Credential: &notify.Credential{
				Number:     pass.GatePassNumber,
				QRPayload:  pass.QRPayload,
				ValidUntil: pass.ValidUntil,
			},
			OccurredAt: s.now(),
		}
		events := append([]notify.Event{email}, s.broadcasts(notify.KindVisitorApproved, result)...)
		return s.dispatcher.Enqueue(events...), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ────────────────────── Reject ──────────────────────

func (s *visitorWorkflow) Reject(ctx context.Context, id string, req *dto.RejectRequest, actor Actor) (*model.Visitor, error) {
	if req == nil {
		req = &dto.RejectRequest{}
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	var result *model.Visitor
	err := s.transition(ctx, id, model.ActionReject, func() (*notify.Ticket, error) {
		visitor, err := loadVisitor(ctx, s.repo.Visitor, id)
		if err != nil {
			return nil, err
		}
		to, ok := model.NextVisitorStatus(visitor.Status, model.ActionReject)
		if !ok {
			return nil, ErrNotPending
		}

		updated := *visitor
		updated.Status = to
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			updated.Notes = &reason
		}
		if err := s.repo.Visitor.UpdateStatus(ctx, &updated, visitor.Status); err != nil {
			s.logger.Error("驳回访客失败", zap.String("visitor_id", id), zap.Error(err))
			return nil, translate(err, ErrVisitorNotFound, "failed to reject visitor")
		}
		result = &updated
		s.logger.Info("访客已驳回", zap.String("visitor_id", id), zap.String("by", actor.ID))

		email := notify.Event{
			Kind:       notify.KindRejectionEmail,
			Audience:   notify.ToVisitor(result),
			Visitor:    notify.Summarize(result),
			Reason:     req.Reason,
			OccurredAt: s.now(),
		}
		events := append([]notify.Event{email}, s.broadcasts(notify.KindVisitorRejected, result)...)
		return s.dispatcher.Enqueue(events...), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ────────────────────── CheckIn ──────────────────────

func (s *visitorWorkflow) CheckIn(ctx context.Context, id string, req *dto.CheckInRequest, actor Actor) (*model.Visitor, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	visitor, _, err := s.checkIn(ctx, id, req.Gate, nil, actor)
	return visitor, err
}

func (s *visitorWorkflow) RecordCheckIn(ctx context.Context, id string, req *dto.RecordCheckInRequest, actor Actor) (*model.CheckInOutRecord, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	_, record, err := s.checkIn(ctx, id, req.Gate, req.Notes, actor)
	return record, err
}

func (s *visitorWorkflow) checkIn(ctx context.Context, id, gate string, notes *string, actor Actor) (*model.Visitor, *model.CheckInOutRecord, error) {
	var (
		result *model.Visitor
		record *model.CheckInOutRecord
	)
	err := s.transition(ctx, id, model.ActionCheckIn, func() (*notify.Ticket, error) {
		visitor, err := loadVisitor(ctx, s.repo.Visitor, id)
		if err != nil {
			return nil, err
		}
		to, ok := model.NextVisitorStatus(visitor.Status, model.ActionCheckIn)
		if !ok {
			return nil, ErrNotApproved
		}

		now := s.now()
		pass, err := s.repo.GatePass.GetActiveByVisitor(ctx, visitor.VisitorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, s.inactivePassError(ctx, visitor, now)
			}
			return nil, translate(err, ErrNoActivePass, "failed to load gate pass")
		}
		if pass.ExpiredAt(now) {
			s.expire(ctx, pass)
			return nil, ErrCredentialExpired
		}

		updated := *visitor
		updated.Status = to
		updated.CheckInTime = &now
		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			if err := tx.Visitor.UpdateStatus(ctx, &updated, visitor.Status); err != nil {
				return err
			}
			usedPass := *pass
			usedPass.Status = model.GatePassUsed
			usedPass.Gate = &gate
			usedPass.CheckInTime = &now
			if err := tx.GatePass.Update(ctx, &usedPass, model.GatePassActive); err != nil {
				return err
			}
			record, err = s.ledger.Open(ctx, tx.CheckInOut, &updated, gate, notes)
			return err
		})
		if err != nil {
			s.logger.Error("访客入场失败", zap.String("visitor_id", id), zap.Error(err))
			return nil, translate(err, ErrVisitorNotFound, "failed to check in visitor")
		}
		result = &updated
		s.logger.Info("访客已入场", zap.String("visitor_id", id), zap.String("gate", gate), zap.String("by", actor.ID))

		return s.dispatcher.Enqueue(s.broadcasts(notify.KindVisitorCheckIn, result)...), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, record, nil
}

// inactivePassError 无可用通行证时按最近一张通行证区分过期与吊销
func (s *visitorWorkflow) inactivePassError(ctx context.Context, visitor *model.Visitor, now time.Time) error {
	var latest *model.GatePass
	if visitor.GatePassNumber != nil {
		if pass, err := s.repo.GatePass.GetByNumber(ctx, *visitor.GatePassNumber); err == nil {
			latest = pass
		}
	}
	if latest == nil {
		passes, err := s.repo.GatePass.ListByVisitor(ctx, visitor.VisitorID)
		if err != nil {
			return translate(err, nil, "failed to load gate passes")
		}
		if len(passes) == 0 {
			return ErrNoActivePass
		}
		latest = &passes[0]
	}
	if latest.Status == model.GatePassExpired || (latest.Status == model.GatePassActive && latest.ExpiredAt(now)) {
		return ErrCredentialExpired
	}
	return ErrNoActivePass
}

// expire 入场时发现过期，单独落库，不随入场失败回滚
func (s *visitorWorkflow) expire(ctx context.Context, pass *model.GatePass) {
	expired := *pass
	expired.Status = model.GatePassExpired
	if err := s.repo.GatePass.Update(ctx, &expired, model.GatePassActive); err != nil {
		s.logger.Warn("标记通行证过期失败", zap.String("number", pass.GatePassNumber), zap.Error(err))
		return
	}
	s.logger.Info("通行证已过期", zap.String("number", pass.GatePassNumber), zap.String("visitor_id", pass.VisitorID))
}

// ────────────────────── CheckOut ──────────────────────

func (s *visitorWorkflow) CheckOut(ctx context.Context, id string, actor Actor) (*model.Visitor, error) {
	visitor, _, err := s.checkOut(ctx, id, nil, false, actor)
	return visitor, err
}

func (s *visitorWorkflow) RecordCheckOut(ctx context.Context, id string, req *dto.RecordCheckOutRequest, actor Actor) (*model.CheckInOutRecord, error) {
	if req == nil {
		req = &dto.RecordCheckOutRequest{}
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	_, record, err := s.checkOut(ctx, id, req.Notes, true, actor)
	return record, err
}

// checkOut requireRecord=true 时没有未关闭的登记流水即失败，访客状态不变
func (s *visitorWorkflow) checkOut(ctx context.Context, id string, notes *string, requireRecord bool, actor Actor) (*model.Visitor, *model.CheckInOutRecord, error) {
	var (
		result *model.Visitor
		record *model.CheckInOutRecord
	)
	err := s.transition(ctx, id, model.ActionCheckOut, func() (*notify.Ticket, error) {
		visitor, err := loadVisitor(ctx, s.repo.Visitor, id)
		if err != nil {
			return nil, err
		}

		hasRecord := true
		if _, err := s.repo.CheckInOut.GetOpenByVisitor(ctx, visitor.VisitorID); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, translate(err, nil, "failed to load check-in record")
			}
			hasRecord = false
		}
		if requireRecord && !hasRecord {
			return nil, ErrNoActiveCheckIn
		}

		to, ok := model.NextVisitorStatus(visitor.Status, model.ActionCheckOut)
		if !ok {
			return nil, ErrNotCheckedIn
		}

		now := s.now()
		updated := *visitor
		updated.Status = to
		updated.CheckOutTime = &now
		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			if err := tx.Visitor.UpdateStatus(ctx, &updated, visitor.Status); err != nil {
				return err
			}
			if visitor.GatePassNumber != nil {
				if err := s.stampPassCheckOut(ctx, tx, *visitor.GatePassNumber, now); err != nil {
					return err
				}
			}
			if hasRecord {
				record, err = s.ledger.Close(ctx, tx.CheckInOut, visitor.VisitorID, notes)
				return err
			}
			return nil
		})
		if err != nil {
			s.logger.Error("访客离场失败", zap.String("visitor_id", id), zap.Error(err))
			return nil, translate(err, ErrVisitorNotFound, "failed to check out visitor")
		}
		result = &updated
		s.logger.Info("访客已离场", zap.String("visitor_id", id), zap.String("by", actor.ID))

		return s.dispatcher.Enqueue(s.broadcasts(notify.KindVisitorCheckOut, result)...), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, record, nil
}

func (s *visitorWorkflow) stampPassCheckOut(ctx context.Context, tx *repository.Repository, number string, at time.Time) error {
	pass, err := tx.GatePass.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	from := pass.Status
	pass.CheckOutTime = &at
	return tx.GatePass.Update(ctx, pass, from)
}

// ────────────────────── UpdateDetails ──────────────────────

func (s *visitorWorkflow) UpdateDetails(ctx context.Context, id string, req *dto.UpdateVisitorRequest, actor Actor) (*model.Visitor, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	var result *model.Visitor
	err := s.transition(ctx, id, model.ActionEdit, func() (*notify.Ticket, error) {
		visitor, err := loadVisitor(ctx, s.repo.Visitor, id)
		if err != nil {
			return nil, err
		}
		if _, ok := model.NextVisitorStatus(visitor.Status, model.ActionEdit); !ok {
			return nil, ErrNotEditable
		}

		updated := *visitor
		if req.Name != nil {
			updated.Name = strings.TrimSpace(*req.Name)
		}
		if req.Email != nil {
			updated.Email = strings.TrimSpace(*req.Email)
		}
		if req.Phone != nil {
			updated.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Purpose != nil {
			updated.Purpose = *req.Purpose
		}
		if req.Company != nil {
			updated.Company = req.Company
		}
		if req.Notes != nil {
			updated.Notes = req.Notes
		}
		if req.VisitDate != nil {
			d, err := time.Parse(dateLayout, *req.VisitDate)
			if err != nil {
				return nil, pkgerrors.Validation("invalid visit_date")
			}
			updated.VisitDate = d
		}

		if err := s.repo.Visitor.UpdateDetails(ctx, &updated); err != nil {
			s.logger.Error("更新访客信息失败", zap.String("visitor_id", id), zap.Error(err))
			return nil, translate(err, ErrVisitorNotFound, "failed to update visitor")
		}
		result = &updated
		s.logger.Info("访客信息已更新", zap.String("visitor_id", id), zap.String("by", actor.ID))

		return s.dispatcher.Enqueue(s.broadcasts(notify.KindVisitorStatusUpdate, result)...), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ────────────────────── Delete ──────────────────────

// Delete 删除访客并吊销其通行证；出入流水与安全事件保留用于审计
func (s *visitorWorkflow) Delete(ctx context.Context, id string, actor Actor) error {
	return s.transition(ctx, id, "delete", func() (*notify.Ticket, error) {
		visitor, err := loadVisitor(ctx, s.repo.Visitor, id)
		if err != nil {
			return nil, err
		}
		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			if _, err := tx.GatePass.RevokeActiveByVisitor(ctx, visitor.VisitorID); err != nil {
				return err
			}
			// 在场访客的登记流水随删除一并关闭
			note := "closed: visitor deleted"
			if _, err := s.ledger.Close(ctx, tx.CheckInOut, visitor.VisitorID, &note); err != nil && !errors.Is(err, ErrNoActiveCheckIn) {
				return err
			}
			return tx.Visitor.Delete(ctx, visitor.VisitorID)
		})
		if err != nil {
			s.logger.Error("删除访客失败", zap.String("visitor_id", id), zap.Error(err))
			return nil, translate(err, ErrVisitorNotFound, "failed to delete visitor")
		}
		s.logger.Info("访客已删除", zap.String("visitor_id", id), zap.String("by", actor.ID))

		event := notify.Event{
			Kind:       notify.KindVisitorStatusUpdate,
			Audience:   notify.ToOperators(),
			Visitor:    notify.Summarize(visitor),
			OccurredAt: s.now(),
		}
		return s.dispatcher.Enqueue(event), nil
	})
}

// ────────────────────── 安全事件 ──────────────────────

func (s *visitorWorkflow) FlagVisitor(ctx context.Context, id string, req *dto.FlagVisitorRequest, actor Actor) (*model.FlaggedVisitor, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	flag, visitor, err := s.incidents.Flag(ctx, id, req, actor)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Enqueue(notify.Event{
		Kind:       notify.KindVisitorFlagged,
		Audience:   notify.ToOperators(),
		Visitor:    notify.Summarize(visitor),
		Reason:     req.Reason,
		OccurredAt: s.now(),
	}).Wait(ctx)
	return flag, nil
}

func (s *visitorWorkflow) ReportSuspicious(ctx context.Context, id string, req *dto.ReportSuspiciousRequest, actor Actor) (*model.SuspiciousReport, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	report, visitor, err := s.incidents.Report(ctx, id, req, actor)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Enqueue(notify.Event{
		Kind:       notify.KindSuspiciousReport,
		Audience:   notify.ToOperators(),
		Visitor:    notify.Summarize(visitor),
		Reason:     req.Reason,
		OccurredAt: s.now(),
	}).Wait(ctx)
	return report, nil
}

// broadcasts 发往看板与（若有）被访人房间
func (s *visitorWorkflow) broadcasts(kind notify.Kind, v *model.Visitor) []notify.Event {
	summary := notify.Summarize(v)
	now := s.now()
	events := []notify.Event{{Kind: kind, Audience: notify.ToOperators(), Visitor: summary, OccurredAt: now}}
	if v.HostID != nil && *v.HostID != "" {
		events = append(events, notify.Event{Kind: kind, Audience: notify.ToHost(*v.HostID), Visitor: summary, OccurredAt: now})
	}
	return events
}
