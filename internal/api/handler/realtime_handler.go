package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"safepass/backend/internal/realtime"
	"safepass/backend/pkg/jwt"
	"safepass/backend/pkg/response"
)

// RealtimeHandler websocket 推送入口
// 浏览器无法为 websocket 设置 Authorization 头，Token 从 ?token= 读取
type RealtimeHandler struct {
	hub      *realtime.Hub
	jwtMgr   *jwt.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler 创建 RealtimeHandler，allowOrigins 与 CORS 配置一致
func NewRealtimeHandler(hub *realtime.Hub, jwtMgr *jwt.Manager, allowOrigins []string, logger *zap.Logger) *RealtimeHandler {
	origins := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		origins[strings.TrimRight(o, "/")] = true
	}
	return &RealtimeHandler{
		hub:    hub,
		jwtMgr: jwtMgr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 非浏览器客户端不带 Origin
				return origin == "" || origins[origin]
			},
		},
	}
}

// ServeWS 升级连接并按角色加入房间
// GET /ws?token=
func (h *RealtimeHandler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, 10002, "缺少 Token")
		return
	}
	claims, err := h.jwtMgr.ParseToken(token)
	if err != nil || claims.TokenType != "access" {
		response.Unauthorized(c, 10002, "Token 无效或已过期")
		return
	}

	rooms := realtime.RoomsFor(claims.Role, claims.UserID)
	if len(rooms) == 0 {
		response.Forbidden(c, 10003, "无权限访问")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已写入错误响应
		h.logger.Warn("websocket 升级失败", zap.Error(err))
		return
	}
	h.hub.Serve(conn, claims.UserID, rooms)
}
