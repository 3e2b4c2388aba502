package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"CatalogLens/internal/browse"
	"CatalogLens/internal/browser"
	"CatalogLens/internal/config"
	"CatalogLens/internal/records"
	"CatalogLens/pkg/kit"
)

func main() {
	service := "browser"

	cfg, err := config.Load()
	if err != nil {
		boot := kit.NewLogger(service, "info")
		boot.Fatal("invalid config", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, invalidate, closeSrc := buildSource(cfg, log)
	defer closeSrc()

	store := records.NewStore(src, log.Named("records"))
	if _, err := store.Refresh(ctx); err != nil {
		// Sessions report "unavailable" until a later refresh succeeds.
		log.Warn("initial records load failed", zap.Error(err))
	}
	go store.Run(ctx, cfg.RefreshInterval)

	joinKey, err := browse.ParseJoinKey(cfg.JoinKey)
	if err != nil {
		log.Fatal("invalid join key", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions := browse.NewManager(store, browse.Options{
		JoinKey:   joinKey,
		RowHeight: cfg.RowHeight,
		Overscan:  cfg.Overscan,
		IdleTTL:   cfg.SessionTTL,
		Log:       log.Named("browse"),
		Metrics:   browse.NewMetrics(reg),
	})
	defer sessions.Close()
	go sessions.Run(ctx)

	s := &browser.Server{
		Store:      store,
		Sessions:   sessions,
		Tokens:     browser.NewTokenMaker(cfg.SessionSecret),
		Log:        log,
		Invalidate: invalidate,
	}

	h := browser.NewHandler(s, browser.HTTPDeps{
		Log:                log,
		Service:            service,
		Registry:           reg,
		MetricsEnabled:     cfg.MetricsEnabled,
		MetricsToken:       cfg.MetricsToken,
		AdminToken:         cfg.AdminToken,
		SessionLimitPerMin: cfg.SessionLimitPerMin,
	})

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

// buildSource wires the configured record source, wrapped in the Redis cache
// when REDIS_ADDR is set.
func buildSource(cfg config.Config, log *zap.Logger) (records.Source, func(context.Context) error, func()) {
	var (
		src     records.Source
		closers []func()
	)

	switch cfg.Source {
	case config.SourcePostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open database failed", zap.Error(err))
		}
		closers = append(closers, func() { _ = db.Close() })
		src = records.NewPostgresSource(db)
	case config.SourceMemory:
		src = records.NewMemSource(records.DemoSnapshot())
	default:
		src = records.NewHTTPSource(cfg.UpstreamURL, cfg.UpstreamLimit)
	}

	var invalidate func(context.Context) error
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		closers = append(closers, func() { _ = rdb.Close() })

		cached := records.NewCachedSource(src, rdb, cfg.CacheTTL, log.Named("cache"))
		invalidate = cached.Invalidate
		src = cached
	}

	log.Info("records source ready",
		zap.String("source", cfg.Source),
		zap.Bool("redis_cache", cfg.RedisAddr != ""),
	)

	return src, invalidate, func() {
		for _, c := range closers {
			c()
		}
	}
}
