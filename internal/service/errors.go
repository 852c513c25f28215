package service

import (
	"errors"

	"gorm.io/gorm"

	pkgerrors "safepass/backend/pkg/errors"
)

// ── 业务错误 ──
// 消息为对外稳定字符串，Handler 按 Kind 映射状态码

var (
	ErrVisitorNotFound  = pkgerrors.NotFound("visitor not found")
	ErrGatePassNotFound = pkgerrors.NotFound("gate pass not found")
	ErrFlagNotFound     = pkgerrors.NotFound("flag not found")
	ErrReportNotFound   = pkgerrors.NotFound("report not found")
	ErrNoActiveCheckIn  = pkgerrors.NotFound("no active check-in")
)

var (
	ErrNotPending       = pkgerrors.InvalidState("visitor is not pending")
	ErrNotApproved      = pkgerrors.InvalidState("visitor is not approved")
	ErrNotCheckedIn     = pkgerrors.InvalidState("visitor is not checked in")
	ErrNotEditable      = pkgerrors.InvalidState("only pending visitors can be edited")
	ErrNoActivePass     = pkgerrors.InvalidState("no active gate pass")
	ErrPassNotActive    = pkgerrors.InvalidState("gate pass is not active")
	ErrAlreadyCheckedIn = pkgerrors.InvalidState("visitor already has an open check-in")
	ErrConcurrentUpdate = pkgerrors.InvalidState("record was modified concurrently")
	ErrFlagResolved     = pkgerrors.InvalidState("flag already resolved")
	ErrReportTransition = pkgerrors.InvalidState("report status transition not allowed")
)

var (
	ErrCredentialExpired   = pkgerrors.Expired("gate pass expired")
	ErrHostNotFound        = pkgerrors.Validation("host not found")
	ErrInvalidHostID       = pkgerrors.Validation("invalid host_id")
	ErrInvalidReportStatus = pkgerrors.Validation("invalid report status")
	ErrInvalidFlagStatus   = pkgerrors.Validation("invalid flag status")
	ErrInvalidPayload      = pkgerrors.Validation("invalid gate pass payload")
	ErrExportGenerateFail  = pkgerrors.Dependency("failed to generate export", nil)
)

// translate 将仓储层错误映射为业务错误；已分类的错误原样返回
// notFound 为空时记录不存在也视为依赖失败
func translate(err error, notFound error, msg string) error {
	var be *pkgerrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &be):
		return err
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		return ErrConcurrentUpdate
	case notFound != nil && errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	}
	return pkgerrors.Dependency(msg, err)
}
