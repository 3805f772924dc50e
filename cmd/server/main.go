package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/myblog/internal/audit"
	"github.com/iliyamo/myblog/internal/config"
	"github.com/iliyamo/myblog/internal/database"
	"github.com/iliyamo/myblog/internal/handler"
	"github.com/iliyamo/myblog/internal/logging"
	"github.com/iliyamo/myblog/internal/provider"
	"github.com/iliyamo/myblog/internal/queue"
	"github.com/iliyamo/myblog/internal/router"
	"github.com/iliyamo/myblog/internal/service"
)

func main() {
	cfg, err := config.Load()
	logger := logging.Setup(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database unavailable")
	}
	defer db.Close()

	gateway := provider.NewGateway(cfg.ProviderURL, cfg.AnonKey, cfg.ServiceRoleKey, cfg.ProviderTimeout)
	if !gateway.Configured() {
		logger.Warn().Msg("AUTH_PROVIDER_URL is not set; only admin-session cookies can authenticate")
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	trail, err := audit.Open(cfg.AuditLogDir, cfg.Env)
	if err != nil {
		// the fallback still works, it just leaves no file trail
		logger.Error().Err(err).Str("dir", cfg.AuditLogDir).Msg("audit log unavailable")
	}
	defer trail.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher handler.InquiryPublisher
	if cfg.QueueEnabled {
		publisher = service.NewAMQPPublisher(cfg.RabbitURL)
		go func() {
			if err := queue.StartInquiryConsumer(ctx, cfg.RabbitURL, cfg.QueueLogDir); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("inquiry consumer stopped")
			}
		}()
	}

	e := router.New(cfg, router.Services{
		DB:        db,
		Gateway:   gateway,
		Redis:     rdb,
		Publisher: publisher,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Logger:    logger,
		Audit:     trail,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
