package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string `env:"LISTEN_ADDR"`
	Port          string `env:"PORT" envDefault:"8080"`
	DatabasePath  string `env:"DATABASE_PATH" envDefault:"weddinvite.db"`
	SessionSecret string `env:"SESSION_SECRET" envDefault:"weddinvite-dev-secret"`
	GinMode       string `env:"GIN_MODE" envDefault:"release"`
	SiteBaseURL   string `env:"SITE_BASE_URL" envDefault:"http://localhost:8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	StorageDriver     string `env:"STORAGE_DRIVER" envDefault:"local"`
	UploadDir         string `env:"UPLOAD_DIR" envDefault:"web/static/uploads"`
	UploadURLPath     string `env:"UPLOAD_URL_PATH" envDefault:"/static/uploads"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"auto"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3PublicURL       string `env:"S3_PUBLIC_URL"`
	MaxUploadMB       int    `env:"MAX_UPLOAD_MB" envDefault:"5"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Port = strings.TrimSpace(cfg.Port)
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}

	cfg.DatabasePath = strings.TrimSpace(cfg.DatabasePath)
	cfg.SessionSecret = strings.TrimSpace(cfg.SessionSecret)
	cfg.GinMode = strings.TrimSpace(cfg.GinMode)
	cfg.UploadDir = strings.TrimSpace(cfg.UploadDir)
	cfg.UploadURLPath = "/" + strings.Trim(strings.TrimSpace(cfg.UploadURLPath), "/")
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.SiteBaseURL = strings.TrimRight(strings.TrimSpace(cfg.SiteBaseURL), "/")
	cfg.AdminEmail = strings.TrimSpace(cfg.AdminEmail)
	cfg.AdminPassword = strings.TrimSpace(cfg.AdminPassword)

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 5
	}

	switch cfg.StorageDriver {
	case "", "local":
		cfg.StorageDriver = "local"
	case "s3":
		if cfg.S3Bucket == "" {
			return cfg, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return cfg, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

// MaxUploadBytes 返回单个上传文件允许的最大字节数。
func (c AppConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
