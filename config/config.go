package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	NATS     NATSConfig     `mapstructure:"nats"`
	GatePass GatePassConfig `mapstructure:"gate_pass"`
	Log      LogConfig      `mapstructure:"log"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	BaseURL     string     `mapstructure:"base_url"`
	FrontendURL string     `mapstructure:"frontend_url"` // 邮件中门禁通行证链接的前缀
	CORS        CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 分钟
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig Access Token 校验配置（Token 由外部认证服务签发）
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// 邮件驱动
const (
	MailDriverSMTP       = "smtp"
	MailDriverMailerSend = "mailersend"
	MailDriverLog        = "log"
)

// MailConfig 邮件配置
type MailConfig struct {
	Driver   string `mapstructure:"driver"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
	APIKey   string `mapstructure:"api_key"` // mailersend
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// 实时广播驱动
const (
	BroadcastLocal = "local"
	BroadcastRedis = "redis"
	BroadcastNATS  = "nats"
)

// NotifyConfig 通知分发配置
type NotifyConfig struct {
	Async           bool          `mapstructure:"async"`
	QueueSize       int           `mapstructure:"queue_size"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BroadcastDriver string        `mapstructure:"broadcast_driver"`
	Channel         string        `mapstructure:"channel"` // redis 频道 / NATS subject 前缀
}

// NATSConfig NATS 连接配置
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// GatePassConfig 门禁通行证配置
type GatePassConfig struct {
	Validity      time.Duration `mapstructure:"validity"`
	SigningSecret string        `mapstructure:"signing_secret"` // 为空时复用 auth.jwt_secret
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AppConfig 业务配置
type AppConfig struct {
	Timezone string `mapstructure:"timezone"` // 统计"今日"所用时区
}

// Location 返回业务时区，Validate 已保证可加载
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > .env > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "safepass")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Karachi")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.driver", MailDriverLog)
	v.SetDefault("mail.smtp_host", "localhost")
	v.SetDefault("mail.smtp_port", 1025)
	v.SetDefault("mail.use_tls", false)
	v.SetDefault("mail.from", "no-reply@safepass.local")
	v.SetDefault("mail.from_name", "SafePass")

	v.SetDefault("notify.async", true)
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("notify.broadcast_driver", BroadcastLocal)
	v.SetDefault("notify.channel", "safepass:events")

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")

	v.SetDefault("gate_pass.validity", "24h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("app.timezone", "Asia/Karachi")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("SAFEPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv 只覆盖已知键，无默认值的敏感项需显式绑定
	for _, key := range []string{"auth.jwt_secret", "gate_pass.signing_secret", "mail.api_key", "mail.username", "mail.password"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if cfg.GatePass.SigningSecret == "" {
		cfg.GatePass.SigningSecret = cfg.Auth.JWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Mail.Driver {
	case MailDriverSMTP, MailDriverMailerSend, MailDriverLog:
	default:
		return fmt.Errorf("配置校验失败: 未知的 mail.driver %q", c.Mail.Driver)
	}
	if c.Mail.Driver == MailDriverMailerSend && c.Mail.APIKey == "" {
		return fmt.Errorf("配置校验失败: mailersend 驱动需要 mail.api_key")
	}
	switch c.Notify.BroadcastDriver {
	case BroadcastLocal, BroadcastRedis, BroadcastNATS:
	default:
		return fmt.Errorf("配置校验失败: 未知的 notify.broadcast_driver %q", c.Notify.BroadcastDriver)
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("配置校验失败: notify.timeout 必须大于 0")
	}
	if c.GatePass.Validity <= 0 {
		return fmt.Errorf("配置校验失败: gate_pass.validity 必须大于 0")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: app.timezone 无效: %w", err)
	}
	return nil
}
