package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/config"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/domain"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/handler"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/infrastructure/enoki"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/infrastructure/events"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/infrastructure/quota"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/middleware"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/service"
	"github.com/quangdang46/talent-passport/shared/contracts"
	"github.com/quangdang46/talent-passport/shared/env"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/messaging"
	"github.com/quangdang46/talent-passport/shared/metrics"
	"github.com/quangdang46/talent-passport/shared/monitoring"
	"github.com/quangdang46/talent-passport/shared/recovery"
	"github.com/quangdang46/talent-passport/shared/redis"
	"github.com/quangdang46/talent-passport/shared/resilience"
	"github.com/quangdang46/talent-passport/shared/timeout"
)

func main() {
	env.Load()
	cfg := config.LoadConfig()

	logger := logging.NewLogger(&logging.Config{
		Level:       logging.LogLevel(cfg.LogLevel),
		Service:     "sponsorship-proxy",
		Environment: cfg.Environment,
		Version:     env.GetString("SERVICE_VERSION", "dev"),
		Output:      os.Stdout,
		PrettyLog:   cfg.Environment == "development",
		AddCaller:   cfg.Environment != "development",
	})

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	if !cfg.Enabled() {
		logger.Warn("ENOKI_PRIVATE_KEY is not set; sponsorship requests will be refused")
	}

	sentryEnabled, err := monitoring.InitSentry(&cfg.Sentry)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialise Sentry")
	}
	if sentryEnabled {
		defer monitoring.FlushSentry(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewMetrics("passport", "sponsorship_proxy", nil)
	upstream := enoki.NewClient(cfg.Enoki, httpMetrics, logger)

	var senderQuota domain.SenderQuota
	var redisClient *redis.Redis
	if cfg.Quota.Limit > 0 {
		redisClient, err = redis.NewFromURL(ctx, cfg.Quota.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to redis")
		}
		defer redisClient.Close()
		senderQuota = quota.NewRedisQuota(redisClient, cfg.Quota.Limit, cfg.Quota.Window)
	}

	var amqpClient contracts.AMQPClient
	var rabbit *messaging.RabbitMQ
	if cfg.EnableEvents {
		rabbit, err = messaging.NewRabbitMQ(cfg.RabbitMQ, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create amqp client")
		}
		defer rabbit.Close()
		err = rabbit.SetupExchanges([]messaging.ExchangeConfig{
			{Name: contracts.SponsorshipExchange, Type: "topic", Durable: true},
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to declare exchanges")
		}
		amqpClient = rabbit
	}
	publisher := events.NewEventPublisher(amqpClient, logger)

	sponsorship := service.NewSponsorshipService(cfg, upstream, senderQuota, publisher, logger)

	health := func() map[string]string {
		checks := map[string]string{"enoki": "ok"}
		if upstream.Breaker().GetState() == resilience.StateOpen {
			checks["enoki"] = "circuit open"
		}
		if rabbit != nil && !rabbit.IsConnected() {
			checks["rabbitmq"] = "disconnected"
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx); err != nil {
				checks["redis"] = err.Error()
			}
		}
		return checks
	}

	limits := middleware.RateLimitConfig{RatePerSecond: cfg.HTTP.RatePerSecond, Burst: cfg.HTTP.Burst}
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimitConfig{RatePerSecond: cfg.HTTP.RatePerSecond * 10, Burst: cfg.HTTP.Burst * 10},
		middleware.SponsorshipPathLimits(limits),
	)
	defer rateLimiter.Close()

	router := handler.NewRouter(handler.NewHandler(sponsorship, health, logger), handler.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimiter:    rateLimiter,
		Metrics:        httpMetrics,
		MetricsHandler: metrics.Handler(),
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           timeout.TimeoutMiddleware(cfg.HTTP.RequestTimeout)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	recovery.SafeGoWithContext(ctx, logger, func(context.Context) {
		logger.WithFields(map[string]interface{}{
			"addr":    cfg.HTTP.Addr,
			"network": cfg.Network,
			"enabled": cfg.Enabled(),
		}).Info("Sponsorship proxy listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to serve")
		}
	})

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
