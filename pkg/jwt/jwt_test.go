package jwt

import (
	"errors"
	"testing"
	"time"

	"safepass/backend/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{JWTSecret: "test-secret-key-for-unit-testing-2026"})
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("user-1", "security", "Guard One", 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("期望 UserID=user-1，实际=%s", claims.UserID)
	}
	if claims.Role != "security" {
		t.Errorf("期望 Role=security，实际=%s", claims.Role)
	}
	if claims.Name != "Guard One" {
		t.Errorf("期望 Name=Guard One，实际=%s", claims.Name)
	}
	if claims.TokenType != "access" {
		t.Errorf("期望 TokenType=access，实际=%s", claims.TokenType)
	}
}

func TestParseToken_Expired(t *testing.T) {
	m := newTestManager()

	token, _ := m.GenerateAccessToken("user-1", "admin", "", -time.Minute)
	if _, err := m.ParseToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := newTestManager().GenerateAccessToken("user-1", "admin", "", time.Minute)

	other := NewManager(&config.AuthConfig{JWTSecret: "another-secret-key-0000000"})
	if _, err := other.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestPassSigner_RoundTrip(t *testing.T) {
	s := NewPassSigner(&config.GatePassConfig{SigningSecret: "pass-secret-key-0123456789"})
	issued := time.Now().Truncate(time.Millisecond)

	payload, err := s.Sign("GP-MABCDEF12-XK4P9Q", "visitor-1", issued, issued.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Sign 失败: %v", err)
	}

	claims, err := s.Verify(payload)
	if err != nil {
		t.Fatalf("Verify 失败: %v", err)
	}
	if claims.GatePassNumber != "GP-MABCDEF12-XK4P9Q" || claims.VisitorID != "visitor-1" {
		t.Errorf("载荷内容不符: %+v", claims)
	}
	if claims.IssuedAt != issued.UnixMilli() {
		t.Errorf("期望 IssuedAt=%d，实际=%d", issued.UnixMilli(), claims.IssuedAt)
	}
}

func TestPassSigner_Expired(t *testing.T) {
	s := NewPassSigner(&config.GatePassConfig{SigningSecret: "pass-secret-key-0123456789"})
	issued := time.Now().Add(-25 * time.Hour)

	payload, _ := s.Sign("GP-X-ABCDEF", "visitor-1", issued, issued.Add(24*time.Hour))
	if _, err := s.Verify(payload); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestPassSigner_RejectsAccessToken(t *testing.T) {
	secret := "shared-secret-key-0123456789"
	access, _ := NewManager(&config.AuthConfig{JWTSecret: secret}).GenerateAccessToken("u", "admin", "", time.Minute)

	s := NewPassSigner(&config.GatePassConfig{SigningSecret: secret})
	if _, err := s.Verify(access); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Access Token 不应通过通行证校验，实际: %v", err)
	}
}
