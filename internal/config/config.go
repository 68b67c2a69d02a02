package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Payment     PaymentConfig     `mapstructure:"payment"`
	Certificate CertificateConfig `mapstructure:"certificate"`
	Mail        MailConfig        `mapstructure:"mail"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Rollbar     RollbarConfig     `mapstructure:"rollbar"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Log         LogConfig         `mapstructure:"log"`

	// 运行时标志，通过命令行参数设置
	MigrateOnly bool   `mapstructure:"-"`
	ConfigDir   string `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool

	// sqlite 驱动使用的文件路径
	Path string
}

// LogConfig 文件日志按 lumberjack 轮转，File 为空时只输出到标准输出
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

// PaymentConfig 支付网关配置。MinOrderAmount 与 UnitMultiplier 均以最小货币单位计。
type PaymentConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	KeyID           string `mapstructure:"key_id"`
	KeySecret       string `mapstructure:"key_secret"`
	Currency        string `mapstructure:"currency"`
	MinOrderAmount  int64  `mapstructure:"min_order_amount"`
	UnitMultiplier  int64  `mapstructure:"unit_multiplier"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	OrderTTLMinutes int    `mapstructure:"order_ttl_minutes"`
}

type CertificateConfig struct {
	IssuerName    string `mapstructure:"issuer_name"`
	StoragePrefix string `mapstructure:"storage_prefix"`
	ReconcileCron string `mapstructure:"reconcile_cron"`

	// 证书字体（TTF），留空使用内置字体
	FontPath     string `mapstructure:"font_path"`
	BoldFontPath string `mapstructure:"bold_font_path"`
}

type MailConfig struct {
	Provider       string `mapstructure:"provider"`
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	FromName       string `mapstructure:"from_name"`
	FromAddress    string `mapstructure:"from_address"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SampleRatio       float64 `mapstructure:"sample_ratio"`
}

type RollbarConfig struct {
	Token       string `mapstructure:"token"`
	Environment string `mapstructure:"environment"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests       int `mapstructure:"max_requests"`
	WindowMinutes     int `mapstructure:"window_minutes"`
	ProgressPerMinute int `mapstructure:"progress_per_minute"`
}

type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("payment.base_url", "https://api.razorpay.com/v1")
	v.SetDefault("payment.currency", "INR")
	v.SetDefault("payment.min_order_amount", 100)
	v.SetDefault("payment.unit_multiplier", 100)
	v.SetDefault("payment.timeout_seconds", 10)
	v.SetDefault("payment.order_ttl_minutes", 30)
	v.SetDefault("certificate.issuer_name", "LMS Academy")
	v.SetDefault("certificate.storage_prefix", "certificates")
	v.SetDefault("certificate.reconcile_cron", "@hourly")
	v.SetDefault("mail.provider", "console")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("log.file", "logs/lms.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("rate_limit.progress_per_minute", 120)
}

func LoadConfig(path string) (*Config, error) {
	// .env 可选，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LMS")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "PORT")

	// Payment
	v.BindEnv("payment.key_id", "RAZORPAY_KEY_ID")
	v.BindEnv("payment.key_secret", "RAZORPAY_KEY_SECRET")
	v.BindEnv("payment.min_order_amount", "PAYMENT_MIN_ORDER_AMOUNT")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")

	// Mail
	v.BindEnv("mail.provider", "MAIL_PROVIDER")
	v.BindEnv("mail.sendgrid_api_key", "SENDGRID_API_KEY")

	// Tracing / error reporting
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")
	v.BindEnv("rollbar.token", "ROLLBAR_TOKEN")

	v.BindEnv("log.level", "LOG_LEVEL")

	// Admin seed
	v.BindEnv("admin.email", "ADMIN_EMAIL")
	v.BindEnv("admin.password", "ADMIN_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 检查生产环境下的关键配置
func (c *Config) Validate() error {
	if c.Payment.UnitMultiplier <= 0 {
		return fmt.Errorf("payment.unit_multiplier must be positive, got %d", c.Payment.UnitMultiplier)
	}
	if c.Payment.MinOrderAmount < 0 {
		return fmt.Errorf("payment.min_order_amount must not be negative, got %d", c.Payment.MinOrderAmount)
	}
	if c.Server.Mode != "release" {
		return nil
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Payment.KeySecret == "" {
		return errors.New("payment key secret must be set in release mode")
	}
	return nil
}

func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release"
}
