package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Auth:     AuthConfig{JWTSecret: "test-secret-key-for-unit-testing"},
		Mail:     MailConfig{Driver: MailDriverLog},
		Notify:   NotifyConfig{BroadcastDriver: BroadcastLocal, Timeout: time.Second},
		GatePass: GatePassConfig{Validity: 24 * time.Hour},
		App:      AppConfig{Timezone: "UTC"},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"短密钥":     func(c *Config) { c.Auth.JWTSecret = "short" },
		"端口越界":    func(c *Config) { c.Server.Port = 70000 },
		"未知邮件驱动":  func(c *Config) { c.Mail.Driver = "pigeon" },
		"缺少api_key": func(c *Config) { c.Mail.Driver = MailDriverMailerSend },
		"未知广播驱动":  func(c *Config) { c.Notify.BroadcastDriver = "kafka" },
		"零超时":     func(c *Config) { c.Notify.Timeout = 0 },
		"零有效期":    func(c *Config) { c.GatePass.Validity = 0 },
		"无效时区":    func(c *Config) { c.App.Timezone = "Mars/Base" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SAFEPASS_AUTH_JWT_SECRET", "env-secret-long-enough-123")
	t.Setenv("SAFEPASS_NOTIFY_BROADCAST_DRIVER", "redis")
	t.Setenv("SAFEPASS_GATE_PASS_VALIDITY", "12h")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-secret-long-enough-123", cfg.Auth.JWTSecret)
	assert.Equal(t, BroadcastRedis, cfg.Notify.BroadcastDriver)
	assert.Equal(t, 12*time.Hour, cfg.GatePass.Validity)
	// 未配置签名密钥时复用 jwt_secret
	assert.Equal(t, cfg.Auth.JWTSecret, cfg.GatePass.SigningSecret)
	assert.Equal(t, 5*time.Second, cfg.Notify.Timeout)
}
