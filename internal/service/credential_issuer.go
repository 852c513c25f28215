package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"safepass/backend/internal/dto"
	"safepass/backend/internal/model"
	"safepass/backend/internal/repository"
	"safepass/backend/pkg/jwt"
)

// CredentialIssuer 门禁通行证签发与校验接口
type CredentialIssuer interface {
	// Issue 生成编号与签名载荷并写入 passes；调用方负责事务与旧通行证失效
	Issue(ctx context.Context, passes repository.GatePassRepository, visitorID string) (*model.GatePass, error)
	// Verify 闸机扫码：校验签名并核对当前通行证状态
	Verify(ctx context.Context, payload string) (*dto.VerifyPassResponse, error)
	Revoke(ctx context.Context, number string) (*model.GatePass, error)
	GetByNumber(ctx context.Context, number string) (*model.GatePass, error)
	ListByVisitor(ctx context.Context, visitorID string) ([]model.GatePass, error)
}

type credentialIssuer struct {
	repo     *repository.Repository
	signer   *jwt.PassSigner
	numbers  *numberGenerator
	validity time.Duration
	now      Clock
	logger   *zap.Logger
}

// NewCredentialIssuer 创建 CredentialIssuer 实例
func NewCredentialIssuer(repo *repository.Repository, signer *jwt.PassSigner, validity time.Duration, now Clock, logger *zap.Logger) CredentialIssuer {
	if now == nil {
		now = time.Now
	}
	return &credentialIssuer{
		repo:     repo,
		signer:   signer,
		numbers:  newNumberGenerator(now, rand.Reader),
		validity: validity,
		now:      now,
		logger:   logger,
	}
}

// ────────────────────── Issue ──────────────────────

func (s *credentialIssuer) Issue(ctx context.Context, passes repository.GatePassRepository, visitorID string) (*model.GatePass, error) {
	number, err := s.numbers.Next()
	if err != nil {
		s.logger.Error("生成通行证编号失败", zap.Error(err))
		return nil, translate(err, nil, "failed to generate gate pass number")
	}

	issuedAt := s.now()
	validUntil := issuedAt.Add(s.validity)
	payload, err := s.signer.Sign(number, visitorID, issuedAt, validUntil)
	if err != nil {
		s.logger.Error("签名通行证载荷失败", zap.String("visitor_id", visitorID), zap.Error(err))
		return nil, translate(err, nil, "failed to sign gate pass")
	}

	pass := &model.GatePass{
		GatePassNumber: number,
		VisitorID:      visitorID,
		QRPayload:      payload,
		IssuedAt:       issuedAt,
		ValidUntil:     validUntil,
		Status:         model.GatePassActive,
	}
	if err := passes.Create(ctx, pass); err != nil {
		s.logger.Error("保存通行证失败", zap.String("visitor_id", visitorID), zap.String("number", number), zap.Error(err))
		return nil, translate(err, nil, "failed to save gate pass")
	}
	return pass, nil
}

// ────────────────────── Verify ──────────────────────

func (s *credentialIssuer) Verify(ctx context.Context, payload string) (*dto.VerifyPassResponse, error) {
	claims, err := s.signer.Verify(payload)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrCredentialExpired
		}
		return nil, ErrInvalidPayload
	}

	pass, err := s.repo.GatePass.GetByNumber(ctx, claims.GatePassNumber)
	if err != nil {
		return nil, translate(err, ErrGatePassNotFound, "failed to load gate pass")
	}
	if pass.VisitorID != claims.VisitorID {
		s.logger.Warn("通行证载荷与记录不一致", zap.String("number", pass.GatePassNumber))
		return nil, ErrInvalidPayload
	}

	resp := &dto.VerifyPassResponse{
		Valid:          pass.Status == model.GatePassActive && !pass.ExpiredAt(s.now()),
		GatePassNumber: pass.GatePassNumber,
		VisitorID:      pass.VisitorID,
		Status:         string(pass.Status),
		ValidUntil:     pass.ValidUntil,
	}
	switch {
	case pass.Status != model.GatePassActive:
		resp.Reason = "gate pass is " + string(pass.Status)
	case !resp.Valid:
		resp.Reason = "gate pass expired"
	}
	if v, err := s.repo.Visitor.GetByID(ctx, pass.VisitorID); err == nil {
		resp.VisitorName = v.Name
	}
	return resp, nil
}

// ────────────────────── Revoke ──────────────────────

func (s *credentialIssuer) Revoke(ctx context.Context, number string) (*model.GatePass, error) {
	pass, err := s.repo.GatePass.GetByNumber(ctx, number)
	if err != nil {
		return nil, translate(err, ErrGatePassNotFound, "failed to load gate pass")
	}
	if pass.Status != model.GatePassActive {
		return nil, ErrPassNotActive
	}

	pass.Status = model.GatePassRevoked
	if err := s.repo.GatePass.Update(ctx, pass, model.GatePassActive); err != nil {
		s.logger.Error("吊销通行证失败", zap.String("number", number), zap.Error(err))
		return nil, translate(err, ErrGatePassNotFound, "failed to revoke gate pass")
	}
	s.logger.Info("通行证已吊销", zap.String("number", number), zap.String("visitor_id", pass.VisitorID))
	return pass, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *credentialIssuer) GetByNumber(ctx context.Context, number string) (*model.GatePass, error) {
	pass, err := s.repo.GatePass.GetByNumber(ctx, number)
	if err != nil {
		return nil, translate(err, ErrGatePassNotFound, "failed to load gate pass")
	}
	return pass, nil
}

func (s *credentialIssuer) ListByVisitor(ctx context.Context, visitorID string) ([]model.GatePass, error) {
	if !isUUID(visitorID) {
		return nil, ErrVisitorNotFound
	}
	passes, err := s.repo.GatePass.ListByVisitor(ctx, visitorID)
	if err != nil {
		s.logger.Error("查询通行证列表失败", zap.String("visitor_id", visitorID), zap.Error(err))
		return nil, translate(err, nil, "failed to list gate passes")
	}
	return passes, nil
}

// ── 编号生成 ──

const (
	numberPrefix   = "GP-"
	suffixLen      = 6
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// numberGenerator 编号格式 GP-<毫秒时间戳 base36>-<6 位随机>
// 时间戳在进程内严格递增，跨进程唯一性由数据库唯一索引兜底
type numberGenerator struct {
	mu   sync.Mutex
	last int64
	now  Clock
	rand io.Reader
}

func newNumberGenerator(now Clock, r io.Reader) *numberGenerator {
	return &numberGenerator{now: now, rand: r}
}

func (g *numberGenerator) Next() (string, error) {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	suffix, err := randomSuffix(g.rand)
	if err != nil {
		return "", err
	}
	return numberPrefix + strings.ToUpper(strconv.FormatInt(ms, 36)) + "-" + suffix, nil
}

// randomSuffix 拒绝采样，避免取模偏差
func randomSuffix(r io.Reader) (string, error) {
	const limit = 256 - 256%len(suffixAlphabet)
	out := make([]byte, 0, suffixLen)
	buf := make([]byte, suffixLen*2)
	for len(out) < suffixLen {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, suffixAlphabet[int(b)%len(suffixAlphabet)])
			if len(out) == suffixLen {
				break
			}
		}
	}
	return string(out), nil
}
