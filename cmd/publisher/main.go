package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"social-publisher/internal/config"
	"social-publisher/internal/media"
	"social-publisher/internal/notify"
	"social-publisher/internal/platform"
	"social-publisher/internal/publish"
	"social-publisher/internal/ratelimit"
	"social-publisher/internal/render"
	"social-publisher/internal/retry"
	"social-publisher/internal/scheduler"
	"social-publisher/internal/store"
	"social-publisher/internal/telemetry"
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
	formatter := render.NewPlatformFormatter()
	retryQueue := retry.NewQueue(st, cfg, log)
	publisher := publish.New(st, adapters, formatter, resolver, retryQueue, limiter, sink, cfg, log)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	sched := scheduler.New(st, publisher, cfg, log)
	scanner := retry.NewScanner(st, publisher, cfg, log)

	done := make(chan struct{}, 2)
	go func() {
		if err := sched.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("scheduler stopped")
		}
		done <- struct{}{}
	}()
	go func() {
		if err := scanner.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("retry scanner stopped")
		}
		done <- struct{}{}
	}()

	log.Info().
		Dur("scheduler_interval", cfg.SchedulerInterval).
		Dur("retry_interval", cfg.RetryScanInterval).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("publisher service started")

	<-ctx.Done()
	<-done
	<-done
	log.Info().Msg("publisher service stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	if cfg.Env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
