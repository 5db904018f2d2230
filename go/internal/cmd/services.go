package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/config"
	"github.com/musicmind/academy/go/internal/presentation/gateway"
	"github.com/musicmind/academy/go/internal/presentation/session"
	"github.com/musicmind/academy/go/internal/presentation/store/memory"
	"github.com/musicmind/academy/go/internal/presentation/store/natskv"
	"github.com/musicmind/academy/go/internal/presentation/store/postgres"
	"github.com/musicmind/academy/go/internal/presentation/store/sqlite"
)

type Services struct {
	Store      session.Store
	Controller *session.Controller
	Gateway    *gateway.Service

	closers []func() error
}

// Close releases the store and any connections it holds, newest first.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Store → Controller → Gateway
	services := &Services{}

	store, err := setupStore(ctx, cfg, services)
	if err != nil {
		_ = services.Close()
		return nil, err
	}
	services.Store = store
	services.Controller = session.NewController(store, clockwork.NewRealClock())
	services.Gateway = gateway.NewService(gateway.DefaultConfig(), store, services.Controller)

	log.Info().Str("store", string(cfg.Store)).Msg("services ready")
	return services, nil
}

// setupStore opens the configured backend and registers its cleanup on s.
func setupStore(ctx context.Context, cfg config.Config, s *Services) (session.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil

	case config.StoreNATS:
		natsCfg := natskv.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Bucket = cfg.NATS.Bucket
		natsCfg.MaxReconnects = cfg.NATS.MaxReconnects
		natsCfg.ReconnectWait = cfg.NATS.ReconnectWait

		store, err := natskv.Connect(ctx, natsCfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil

	case config.StorePostgres:
		db, err := setupDatabase(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)

		pgCfg := postgres.DefaultConfig()
		pgCfg.DSN = cfg.DB.DSN()
		pgCfg.NotifyChannel = cfg.Postgres.NotifyChannel
		pgCfg.PingInterval = cfg.Postgres.PingInterval
		pgCfg.Writer = "presenter"

		store, err := postgres.New(db, pgCfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil

	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStore, cfg.Store)
	}
}
