package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	defaultQueryCacheTTL = 5 * time.Minute
	defaultMaxPhotoBytes = 10 << 20

	// DefaultSessionSecret 仅用于本地开发
	DefaultSessionSecret = "postdesk-dev-secret"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr          string
	Port                string
	SessionSecret       string
	GinMode             string
	LogLevel            string
	SiteName            string
	TemplateGlob        string
	APIBaseURL          string
	UploadFolderBaseURL string
	HTTPTimeout         time.Duration
	BufferDSN           string
	RedisAddr           string
	QueryCacheTTL       time.Duration
	PhotoS3Bucket       string
	AWSRegion           string
	S3Endpoint          string
	RabbitMQURL         string
	MaxPhotoBytes       int64

	// Warnings 记录被忽略的非法配置项，由调用方写入日志。
	Warnings []string
}

// Load 从环境变量（以及可选的 .env 文件）读取应用配置，并为缺失项提供默认值。
func Load() AppConfig {
	// .env 不存在时直接使用进程环境变量
	_ = godotenv.Load()

	cfg := AppConfig{}

	cfg.Port = env("PORT", "8080")
	cfg.ListenAddr = env("LISTEN_ADDR", fmt.Sprintf(":%s", cfg.Port))
	cfg.SessionSecret = env("SESSION_SECRET", DefaultSessionSecret)
	if cfg.SessionSecret == DefaultSessionSecret {
		cfg.Warnings = append(cfg.Warnings, "SESSION_SECRET is not set, sessions are signed with the development secret")
	}
	cfg.GinMode = env("GIN_MODE", "release")
	cfg.LogLevel = env("LOG_LEVEL", "info")
	cfg.SiteName = env("SITE_NAME", "PostDesk")
	cfg.TemplateGlob = env("TEMPLATE_GLOB", "web/template/admin/*.html")

	cfg.APIBaseURL = strings.TrimRight(env("BLOG_API_BASE_URL", "http://localhost:5000"), "/")
	cfg.UploadFolderBaseURL = env("UPLOAD_FOLDER_BASE_URL", cfg.APIBaseURL+"/uploads/")
	if !strings.HasSuffix(cfg.UploadFolderBaseURL, "/") {
		cfg.UploadFolderBaseURL += "/"
	}

	cfg.HTTPTimeout = cfg.duration("HTTP_TIMEOUT", defaultHTTPTimeout)
	cfg.BufferDSN = env("BUFFER_DSN", "file:postdesk-buffers?mode=memory&cache=shared")
	cfg.RedisAddr = env("REDIS_ADDR", "")
	cfg.QueryCacheTTL = cfg.duration("QUERY_CACHE_TTL", defaultQueryCacheTTL)

	cfg.PhotoS3Bucket = env("PHOTO_S3_BUCKET", "")
	cfg.AWSRegion = env("AWS_REGION", "us-east-1")
	cfg.S3Endpoint = env("S3_ENDPOINT", "")
	cfg.RabbitMQURL = env("RABBITMQ_URL", "")

	cfg.MaxPhotoBytes = defaultMaxPhotoBytes
	if raw := env("MAX_PHOTO_BYTES", ""); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || size <= 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid MAX_PHOTO_BYTES %q, using %d", raw, cfg.MaxPhotoBytes))
		} else {
			cfg.MaxPhotoBytes = size
		}
	}

	return cfg
}

func env(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func (c *AppConfig) duration(key string, fallback time.Duration) time.Duration {
	raw := env(key, "")
	if raw == "" {
		return fallback
	}
	if raw == "0" {
		return 0
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed < 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using %s", key, raw, fallback))
		return fallback
	}
	return parsed
}
