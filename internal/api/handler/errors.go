package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "safepass/backend/pkg/errors"
	"safepass/backend/pkg/response"
)

// handleError 按错误分类映射 HTTP 状态码与业务码
func handleError(c *gin.Context, err error) {
	msg := pkgerrors.Message(err)
	switch pkgerrors.KindOf(err) {
	case pkgerrors.KindValidation:
		response.BadRequest(c, 10001, msg)
	case pkgerrors.KindNotFound:
		response.NotFound(c, 20404, msg)
	case pkgerrors.KindInvalidState:
		response.Conflict(c, 20409, msg)
	case pkgerrors.KindExpiredCredential:
		response.Gone(c, 20410, msg)
	case pkgerrors.KindDependency:
		_ = c.Error(err)
		response.ServiceUnavailable(c, 50300, "服务暂不可用，请稍后重试")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// bindOptionalJSON 请求体可省略时使用，空体视为零值
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		bindFailed(c, err)
		return false
	}
	return true
}

// bindJSON 绑定失败时写入 400，请求体超限时写入 413
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		bindFailed(c, err)
		return false
	}
	return true
}

func bindFailed(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
}

func bindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return false
	}
	return true
}
