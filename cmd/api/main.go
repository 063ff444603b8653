package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"social-publisher/internal/api"
	"social-publisher/internal/config"
	"social-publisher/internal/media"
	"social-publisher/internal/notify"
	"social-publisher/internal/platform"
	"social-publisher/internal/publish"
	"social-publisher/internal/ratelimit"
	"social-publisher/internal/render"
	"social-publisher/internal/retry"
	"social-publisher/internal/store"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	var limiter publish.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limiter = ratelimit.NewPlatformLimiter(client, cfg.RateLimitCapacity, cfg.RateLimitRefill, cfg.RateLimitTTL)
	}

	var sink notify.Sink = notify.NewLogSink(log)
	if cfg.AMQPURL != "" {
		amqpSink, err := notify.NewAMQPSink(cfg.AMQPURL, "notifications", log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect amqp")
		}
		defer amqpSink.Close()
		sink = amqpSink
	}

	var resolver media.Resolver = media.PassthroughResolver{}
	if cfg.MediaBucket != "" {
		s3Resolver, err := media.NewS3Resolver(ctx, cfg.MediaBucket, cfg.MediaRegion, cfg.MediaURLExpiry)
		if err != nil {
			log.Fatal().Err(err).Msg("init media resolver")
		}
		resolver = s3Resolver
	}

	adapters := platform.NewDefaultRegistry(cfg.PublishTimeout)
	retryQueue := retry.NewQueue(st, cfg, log)
	publisher := publish.New(st, adapters, render.NewPlatformFormatter(), resolver, retryQueue, limiter, sink, cfg, log)

	server := api.New(cfg, st, retryQueue, publisher, log)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Info().Str("port", cfg.HTTPPort).Msg("ops api listening")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) zerolog.Logger {
	if cfg.Env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
