package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/blogapi"
	"github.com/postdesk/internal/config"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/events"
	"github.com/postdesk/internal/handler"
	"github.com/postdesk/internal/logger"
	"github.com/postdesk/internal/notify"
	"github.com/postdesk/internal/photo"
	"github.com/postdesk/internal/querycache"
	"github.com/postdesk/internal/router"
	"github.com/postdesk/internal/service"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	for _, warning := range cfg.Warnings {
		log.Warn().Msg(warning)
	}
	gin.SetMode(cfg.GinMode)

	// 初始化编辑缓冲数据库
	if err := db.Init(cfg.BufferDSN); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := blogapi.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)
	photos := newPhotoFetcher(ctx, cfg, log)
	cache := newQueryCache(ctx, cfg, log)

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	editor := service.NewPostEditorService(service.PostEditorDeps{
		Posts:   client,
		Updater: client,
		Cache:   cache,
		Photos:  photos,
		Buffers: service.NewGormBufferStore(db.DB),
		Events:  publisher,
		Logger:  log,
	})

	api := handler.NewAPI(handler.Options{
		Editor:        editor,
		Auth:          service.NewAuthService(client),
		Notifier:      notify.NewSessionNotifier(),
		Logger:        log,
		SiteName:      cfg.SiteName,
		UploadBaseURL: cfg.UploadFolderBaseURL,
		MaxPhotoBytes: cfg.MaxPhotoBytes,
	})

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		TemplateGlob:  cfg.TemplateGlob,
		Logger:        log,
	})

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("api", cfg.APIBaseURL).
		Msg("postdesk listening")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("failed to run server")
	}
}

func newPhotoFetcher(ctx context.Context, cfg config.AppConfig, log zerolog.Logger) photo.Fetcher {
	if cfg.PhotoS3Bucket == "" {
		return photo.NewHTTPFetcher(cfg.UploadFolderBaseURL, cfg.HTTPTimeout)
	}

	s3Client, err := photo.NewS3Client(ctx, cfg.AWSRegion, cfg.S3Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure s3 client")
	}
	log.Info().Str("bucket", cfg.PhotoS3Bucket).Msg("re-fetching photos from s3")
	return photo.NewS3Fetcher(s3Client, cfg.PhotoS3Bucket, "")
}

func newQueryCache(ctx context.Context, cfg config.AppConfig, log zerolog.Logger) *querycache.Cache {
	if cfg.RedisAddr == "" {
		return querycache.New(querycache.NewMemoryStore(), cfg.QueryCacheTTL, log)
	}

	rdb, err := querycache.DialRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using in-memory query cache")
		return querycache.New(querycache.NewMemoryStore(), cfg.QueryCacheTTL, log)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("query cache backed by redis")
	return querycache.New(querycache.NewRedisStore(rdb), cfg.QueryCacheTTL, log)
}

func newPublisher(cfg config.AppConfig, log zerolog.Logger) (events.Publisher, func()) {
	if cfg.RabbitMQURL == "" {
		return events.NoopPublisher{}, func() {}
	}

	publisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, post events disabled")
		return events.NoopPublisher{}, func() {}
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("closing rabbitmq publisher")
		}
	}
}
