// cmd/coach-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"funnel-coach/internal/common/config"
	"funnel-coach/internal/common/database"
	commonhttp "funnel-coach/internal/common/http"
	"funnel-coach/internal/common/llm"
	"funnel-coach/internal/common/logger"
	"funnel-coach/internal/common/observability"
	"funnel-coach/internal/server"
	at "funnel-coach/internal/workers/coaching/analyze-transcript"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewFromConfig(cfg.Logging)
	defer func() { _ = zapLog.Sync() }()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting funnel coach",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
		zap.String("model", cfg.Gemini.Model),
	)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	obs := observability.New(observability.Options{
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		Environment:    cfg.App.Environment,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, log)
	defer obs.Shutdown()
	zapLog.Info("Observability initialized",
		zap.Bool("tracing", obs.TracingEnabled()),
		zap.String("jaegerEndpoint", cfg.Tracing.JaegerEndpoint),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Gemini client ---
	httpClient := commonhttp.NewClient(0)
	defer httpClient.CloseIdleConnections()

	var generator llm.Generator
	if cfg.Gemini.Configured() {
		gc, err := llm.NewGeminiClient(ctx, cfg.Gemini, httpClient)
		if err != nil {
			zapLog.Fatal("gemini client failed", zap.Error(err))
		}
		generator = gc
	} else {
		zapLog.Warn("GEMINI_API_KEY environment variable not set; analyses will fail until it is configured")
	}

	// --- Result cache (optional) ---
	opts := []at.Option{at.WithRecorder(obs)}
	var cachePinger server.Pinger
	if cfg.Cache.Enabled() {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Cache)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := rc.Ping(pingCtx); err != nil {
				_ = rc.Close()
				return err
			}
			return nil
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()

		cache := database.NewResultCache(rc, config.GetDuration(cfg.Cache.TTL))
		opts = append(opts, at.WithCache(cache))
		cachePinger = cache
		zapLog.Info("Result cache enabled", zap.String("address", cfg.Cache.Address))
	}

	handler, err := at.NewHandler(at.LoadConfig(cfg), generator, log, opts...)
	if err != nil {
		zapLog.Fatal("failed to create analyze handler", zap.Error(err))
	}

	srv := server.New(cfg, server.Deps{
		Analyze:      handler.Handle,
		AIConfigured: generator != nil,
		Cache:        cachePinger,
	}, log)

	if err := srv.Run(ctx); err != nil {
		zapLog.Error("server stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Funnel coach stopped gracefully")
}
