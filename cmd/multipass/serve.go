package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/config"
	httpserver "github.com/varela-dev/multipass/internal/http"
	"github.com/varela-dev/multipass/internal/oauth"
	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/rate"
	"github.com/varela-dev/multipass/internal/session"
	"github.com/varela-dev/multipass/internal/store/pg"
	"github.com/varela-dev/multipass/internal/tenant"
	migrations "github.com/varela-dev/multipass/migrations/postgres"
)

func newServeCmd(configPath *string) *cobra.Command {
	var flagMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API y el servidor de operaciones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, flagMigrate)
		},
	}
	cmd.Flags().BoolVar(&flagMigrate, "migrate", true, "aplica migraciones al arrancar (solo postgres)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, migrate bool) error {
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: cfg.App.Name})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("serve")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if pgStore, ok := store.(*pg.Store); ok && migrate {
		if err := pgStore.RunMigrations(ctx, migrations.FS); err != nil {
			return err
		}
	}

	cc, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = cc.Close() }()

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		window := config.Dur(cfg.Rate.Window, time.Minute)
		if cfg.Cache.Driver == "redis" {
			rc := rdb.NewClient(&rdb.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
			defer func() { _ = rc.Close() }()
			limiter = rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, window)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, window)
		}
	}

	c := &app.Container{
		Cfg:   cfg,
		Store: store,
		Cache: cc,
		Engine: oauth.NewEngine(store, oauth.Config{
			CodeTTL:    config.Dur(cfg.OAuth.CodeTTL, 0),
			AccessTTL:  config.Dur(cfg.OAuth.AccessTTL, 0),
			RefreshTTL: config.Dur(cfg.OAuth.RefreshTTL, 0),
		}),
		Guard:    oauth.NewGuard(store),
		Resolver: tenant.NewResolver(store, cc),
		Sessions: session.NewManager(cfg.Session.Secret, cfg.OAuth.Issuer, config.Dur(cfg.Session.TTL, 0)),
		Limiter:  limiter,
	}

	api := httpserver.NewServer("http.api", cfg.Server.Addr, httpserver.NewRouter(c))

	opsHandler, err := httpserver.NewOpsRouter()
	if err != nil {
		return err
	}
	ops := httpserver.NewServer("http.ops", cfg.Server.OpsAddr, opsHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(api.Start)
	g.Go(ops.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Warn("api shutdown", logger.Err(err))
		}
		return ops.Shutdown(shutdownCtx)
	})

	log.Info("multipass up",
		logger.String("env", cfg.App.Env),
		logger.String("addr", cfg.Server.Addr),
		logger.String("ops_addr", cfg.Server.OpsAddr),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Driver))

	return g.Wait()
}
