package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gitea.kood.tech/petrkubec/vibetribe/backend/avatar"
	"gitea.kood.tech/petrkubec/vibetribe/backend/cache/memory"
	rediscache "gitea.kood.tech/petrkubec/vibetribe/backend/cache/redis"
	"gitea.kood.tech/petrkubec/vibetribe/backend/config"
	"gitea.kood.tech/petrkubec/vibetribe/backend/events"
	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"golang.org/x/sync/errgroup"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting vibetribe backend", slog.String("env", cfg.Env), slog.String("namespace", cfg.App.Namespace))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	profiles, closeStore, err := initStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	app := &App{
		namespace: cfg.App.Namespace,
		jwtSecret: []byte(cfg.Auth.JWTSecret),
		defaults:  cfg.App.DefaultFilters(),
		store:     profiles,
		hub:       newHub(),
		metrics:   NewMetrics(),
		log:       log,
	}

	engine := match.NewEngine(profiles, match.WithLogger(log))
	app.matcher = engine

	resultCache, closeCache, err := initCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()
	if resultCache != nil {
		cached := match.NewCachedMatcher(engine, resultCache, cfg.App.Namespace, log)
		app.matcher = cached
		app.cache = cached
	}

	if app.avatars, err = initAvatars(ctx, cfg, log); err != nil {
		return err
	}

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URL, log)
	if err != nil {
		return err
	}
	defer publisher.Close()
	app.events = publisher

	consumer, err := events.NewConsumer(cfg.RabbitMQ.URL, cfg.App.Namespace, app.profileChanged, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newRouter(app, cfg.HTTP.CORSOrigins),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http_listen_start", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown_requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
		}
		return nil
	})

	return g.Wait()
}

// initCache returns nil when caching is off.
func initCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (match.Cache, func(), error) {
	switch cfg.Cache.Driver {
	case "redis":
		client, err := rediscache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		log.Info("match cache: redis", slog.String("addr", cfg.Redis.Addr), slog.Duration("ttl", cfg.Cache.TTL))
		return rediscache.New(client, "matches:"+cfg.App.Namespace, cfg.Cache.TTL), func() { _ = client.Close() }, nil
	case "memory":
		log.Info("match cache: memory", slog.Int("size", cfg.Cache.Size), slog.Duration("ttl", cfg.Cache.TTL))
		return memory.New(cfg.Cache.Size, cfg.Cache.TTL), func() {}, nil
	default:
		log.Info("match cache disabled")
		return nil, func() {}, nil
	}
}

func initAvatars(ctx context.Context, cfg *config.Config, log *slog.Logger) (avatar.Resolver, error) {
	if cfg.S3.Endpoint == "" {
		log.Info("s3 endpoint is empty, avatar keys resolve against the public base url")
		return avatar.Static{BaseURL: cfg.S3.PublicBaseURL}, nil
	}
	return avatar.NewS3(ctx, avatar.S3Config{
		Endpoint:   cfg.S3.Endpoint,
		AccessKey:  cfg.S3.AccessKey,
		SecretKey:  cfg.S3.SecretKey,
		Bucket:     cfg.S3.Bucket,
		PresignTTL: cfg.S3.PresignTTL,
	})
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
