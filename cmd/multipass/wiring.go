package main

import (
	"context"
	"fmt"
	"os"

	"github.com/varela-dev/multipass/internal/cache"
	"github.com/varela-dev/multipass/internal/config"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/store/memory"
	"github.com/varela-dev/multipass/internal/store/pg"
)

// loadConfig resuelve la config: flag --config, luego $CONFIG_PATH, luego
// configs/config.yaml si existe, y si no los defaults de dev.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("configs/config.yaml"); err == nil {
			path = "configs/config.yaml"
		}
	}
	if path == "" {
		c := config.Default()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	}
	return config.Load(path)
}

type closer func()

// openStore abre el repositorio según el driver configurado.
func openStore(ctx context.Context, cfg *config.Config) (core.Repository, closer, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime, 0),
		})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "memory", "":
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("storage driver desconocido: %q", cfg.Storage.Driver)
	}
}

func openCache(cfg *config.Config) (cache.Client, error) {
	return cache.New(cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
		TTL:      config.Dur(cfg.Cache.TTL, 0),
	})
}
