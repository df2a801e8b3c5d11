package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"summary-gateway/logging"
	"summary-gateway/middleware/ratelimit"
	"summary-gateway/middleware/ratelimit/domain"
	"summary-gateway/middleware/ratelimit/infra"
	"summary-gateway/relay"
	"summary-gateway/relay/application"
	relayinfra "summary-gateway/relay/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, logCloser, err := logging.New(cfg.log)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.usesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
	}

	var counters domain.CounterStore
	switch cfg.counterBackend {
	case "redis":
		counters = infra.NewRedisCounterStore(rdb)
	default:
		mem := infra.NewMemoryCounterStore()
		mem.StartJanitor(ctx)
		counters = mem
	}

	var (
		statsStore  domain.StatsStore
		statsSource relay.StatsSource
	)
	switch cfg.rateStatsBackend {
	case "memory":
		mem := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.rateStatsTrackKeys))
		statsStore = mem
		statsSource = mem
	case "redis":
		rs := infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
		statsStore = rs
		statsSource = rs
	}

	completer := relayinfra.NewOpenAIClient(relayinfra.OpenAIConfig{
		APIKey:      cfg.openaiAPIKey,
		BaseURL:     cfg.openaiBaseURL,
		Model:       cfg.openaiModel,
		Temperature: cfg.openaiTemperature,
	})
	mailer, err := relayinfra.NewSMTPMailer(relayinfra.SMTPConfig{
		Host:     cfg.mailServer,
		Port:     cfg.mailPort,
		Username: cfg.mailUsername,
		Password: cfg.mailPassword,
		From:     cfg.mailFrom,
		StartTLS: cfg.mailStartTLS,
		SSLTLS:   cfg.mailSSLTLS,
	})
	if err != nil {
		log.Fatalf("mail config error: %v", err)
	}

	svc, err := application.NewService(completer, mailer, application.Config{
		CompletionTimeout: cfg.completionTimeout,
		MailTimeout:       cfg.mailTimeout,
		Logger:            logger,
	})
	if err != nil {
		log.Fatalf("service error: %v", err)
	}

	guard := ratelimit.NewGuard(ratelimit.GuardOptions{
		Counters:            counters,
		Stats:               statsStore,
		KeyHeader:           cfg.rateKeyHeader,
		TrustXForwardedFor:  cfg.trustXFF,
		AddRateLimitHeaders: cfg.addHeaders,
		Logger:              logger,
	})

	handler, err := relay.NewHandler(svc, guard, relay.WithLogger(logger))
	if err != nil {
		log.Fatalf("handler error: %v", err)
	}

	var middlewares []func(http.Handler) http.Handler
	if cfg.rateEnabled {
		buckets := infra.NewTokenBucketStore(cfg.rateRPS, cfg.rateBurst)
		buckets.StartJanitor(ctx)
		middlewares = append(middlewares, ratelimit.Middleware(ratelimit.Options{
			Store:               buckets,
			Stats:               statsStore,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		}))
	}
	middlewares = append(middlewares, ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	}))

	router := relay.NewRouter(relay.RouterOptions{
		Handler:        handler,
		AllowedOrigins: cfg.corsOrigins,
		Middlewares:    middlewares,
		Stats:          statsSource,
		Logger:         logger,
	})

	// WriteTimeout acima do timeout do provedor de IA
	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.completionTimeout + 15*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", cfg.listenAddr, "cors_origins", cfg.corsOrigins)
	logger.Info("rate limit",
		"counter_backend", cfg.counterBackend,
		"burst_enabled", cfg.rateEnabled, "rps", cfg.rateRPS, "burst", cfg.rateBurst,
		"key_header", cfg.rateKeyHeader, "trust_xff", cfg.trustXFF)
	logger.Info("rate stats", "backend", cfg.rateStatsBackend, "bucket", cfg.rateStatsBucket,
		"ttl", cfg.rateStatsTTL, "track_keys", cfg.rateStatsTrackKeys)
	logger.Info("concurrency", "max", cfg.concurrencyMax, "acquire_timeout", cfg.concurrencyTimeout)
	logger.Info("dependencies", "openai_base_url", cfg.openaiBaseURL, "model", cfg.openaiModel,
		"mail_server", cfg.mailServer, "mail_port", cfg.mailPort)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
