package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Payment     PaymentConfig     `mapstructure:"payment"`
	Certificate CertificateConfig `mapstructure:"certificate"`
	Mail        MailConfig        `mapstructure:"mail"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

// PaymentConfig 支付网关（Razorpay）配置
type PaymentConfig struct {
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
	Currency  string `mapstructure:"currency"`
	// 未支付订单的过期时间（分钟），后台任务定期清理
	OrderExpireMinutes int `mapstructure:"order_expire_minutes"`
}

// CertificateConfig 证书渲染配置
type CertificateConfig struct {
	// 背景模板：优先远程 URL，失败后回退本地文件，均失败则渲染无背景证书
	TemplateURL  string `mapstructure:"template_url"`
	TemplateFile string `mapstructure:"template_file"`
	IssuerOrg    string `mapstructure:"issuer_org"`
	DefaultGrade string `mapstructure:"default_grade"`
	// 学生端仪表盘地址，用于二维码
	DashboardURL string `mapstructure:"dashboard_url"`
	// 模板拉取超时（秒）
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
}

type MailConfig struct {
	Provider    string `mapstructure:"provider"` // sendgrid / console
	SendGridKey string `mapstructure:"sendgrid_key"`
	FromName    string `mapstructure:"from_name"`
	FromEmail   string `mapstructure:"from_email"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LMS")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Payment
	viper.BindEnv("payment.key_id", "RAZORPAY_KEY_ID")
	viper.BindEnv("payment.key_secret", "RAZORPAY_KEY_SECRET")

	// Mail
	viper.BindEnv("mail.provider", "MAIL_PROVIDER")
	viper.BindEnv("mail.sendgrid_key", "SENDGRID_API_KEY")
	viper.BindEnv("mail.from_email", "MAIL_FROM_EMAIL")

	// Storage / OSS
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.Payment.OrderExpireMinutes <= 0 {
		cfg.Payment.OrderExpireMinutes = 30
	}
	if cfg.Certificate.FetchTimeoutSeconds <= 0 {
		cfg.Certificate.FetchTimeoutSeconds = 5
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}
