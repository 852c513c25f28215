package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("record was modified by another operation")

// Kind 业务错误分类，Handler 层据此映射 HTTP 状态码
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindValidation        Kind = "validation"
	KindExpiredCredential Kind = "expired_credential"
	KindDependency        Kind = "dependency_failure"
)

// Error 带分类的业务错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrNotFound) 等按分类匹配；
// 目标带消息时要求消息一致，用于匹配具体的哨兵错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Msg == "" || t.Msg == e.Msg
}

// 分类哨兵，仅用于 errors.Is 判断
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrExpiredCredential = &Error{Kind: KindExpiredCredential}
	ErrDependency        = &Error{Kind: KindDependency}
)

func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Msg: msg} }
func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Msg: msg} }
func Validation(msg string) *Error   { return &Error{Kind: KindValidation, Msg: msg} }
func Expired(msg string) *Error      { return &Error{Kind: KindExpiredCredential, Msg: msg} }

// Dependency 包装持久化或下游调用的失败
func Dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependency, Msg: msg, Err: err}
}

// KindOf 提取错误分类，非业务错误返回空
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message 返回对外稳定的错误消息（不含底层原因）
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return ""
}
