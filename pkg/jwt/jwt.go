package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"safepass/backend/config"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

const issuer = "safepass"

// Claims Access Token 声明（由外部认证服务签发，本服务只做校验）
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	TokenType string `json:"token_type"`
	jwtv5.RegisteredClaims
}

// Manager Access Token 管理器
type Manager struct {
	secret []byte
}

// NewManager 创建 JWT 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{secret: []byte(cfg.JWTSecret)}
}

// GenerateAccessToken 签发 Access Token（开发与测试用）
func (m *Manager) GenerateAccessToken(userID, role, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		Name:      name,
		TokenType: "access",
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Token
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(tokenString, m.secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ── 门禁通行证载荷 ──

// PassClaims 二维码中嵌入的通行证载荷，绑定编号、访客与签发时间
type PassClaims struct {
	GatePassNumber string `json:"gate_pass_number"`
	VisitorID      string `json:"visitor_id"`
	IssuedAt       int64  `json:"issued_at"` // Unix 毫秒
	jwtv5.RegisteredClaims
}

// PassSigner 通行证载荷签名器
type PassSigner struct {
	secret []byte
}

// NewPassSigner 创建通行证签名器
func NewPassSigner(cfg *config.GatePassConfig) *PassSigner {
	return &PassSigner{secret: []byte(cfg.SigningSecret)}
}

// Sign 生成载荷；validUntil 写入 exp，扫码端据此离线判断过期
func (s *PassSigner) Sign(number, visitorID string, issuedAt, validUntil time.Time) (string, error) {
	claims := PassClaims{
		GatePassNumber: number,
		VisitorID:      visitorID,
		IssuedAt:       issuedAt.UnixMilli(),
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   visitorID,
			IssuedAt:  jwtv5.NewNumericDate(issuedAt),
			ExpiresAt: jwtv5.NewNumericDate(validUntil),
			Issuer:    issuer,
		},
	}
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify 校验载荷签名与有效期
func (s *PassSigner) Verify(payload string) (*PassClaims, error) {
	claims := &PassClaims{}
	if err := parse(payload, s.secret, claims); err != nil {
		return nil, err
	}
	if claims.GatePassNumber == "" || claims.VisitorID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func parse(tokenString string, secret []byte, claims jwtv5.Claims) error {
	token, err := jwtv5.ParseWithClaims(tokenString, claims, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	}, jwtv5.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
