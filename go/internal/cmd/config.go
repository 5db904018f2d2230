package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/config"
	"github.com/musicmind/academy/go/internal/presentation/render"
	"github.com/musicmind/academy/go/internal/presentation/session"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	config.SetupLogging(cfg.LogLevel)
	return cfg, nil
}

func loadCatalog(cfg config.Config) (*render.Catalog, error) {
	if cfg.StagesFile == "" {
		return render.DefaultCatalog(), nil
	}
	catalog, err := render.LoadCatalog(cfg.StagesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load stages file: %w", err)
	}
	log.Info().
		Str("path", cfg.StagesFile).
		Int("stages", len(catalog.Stages())).
		Msg("loaded stage catalog")
	return catalog, nil
}

func thresholds(cfg config.Config) session.Thresholds {
	return session.Thresholds{
		CalmAbove:    cfg.Timer.CalmAbove,
		WarningAbove: cfg.Timer.WarningAbove,
	}
}
