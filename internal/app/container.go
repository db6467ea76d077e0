// Package app assembles the application object graph.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	adapterrepo "github.com/eslsoft/studydeck/internal/adapter/repository"
	"github.com/eslsoft/studydeck/internal/adapter/rest"
	"github.com/eslsoft/studydeck/internal/infrastructure/config"
	"github.com/eslsoft/studydeck/internal/infrastructure/database"
	"github.com/eslsoft/studydeck/internal/infrastructure/server"
	"github.com/eslsoft/studydeck/internal/repository"
	"github.com/eslsoft/studydeck/internal/srs"
	"github.com/eslsoft/studydeck/internal/usecase"
)

// Container aggregates the application dependencies.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	Server *server.Server
}

// Initialize builds the full dependency graph from configuration. The
// returned cleanup closes database handles and must be called on shutdown.
func Initialize() (*Container, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := server.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	repo, cleanup, err := newRepository(cfg)
	if err != nil {
		return nil, nil, err
	}

	algorithm, err := newAlgorithm(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	cardUC := usecase.NewFlashcardUsecase(repo, algorithm)
	statsUC := usecase.NewStatsUsecase(repo)
	handler := rest.NewHandler(cardUC, statsUC)
	srv := server.NewServer(cfg, logger, handler)

	return &Container{Config: cfg, Logger: logger, Server: srv}, cleanup, nil
}

func newRepository(cfg *config.Config) (repository.FlashcardRepository, func(), error) {
	switch cfg.DatabaseDriver() {
	case config.DriverPostgres:
		pool, cleanup, err := database.NewPool(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.MigratePostgres(context.Background(), pool); err != nil {
			cleanup()
			return nil, nil, err
		}
		return adapterrepo.NewPostgresFlashcardRepository(pool), cleanup, nil
	case config.DriverSQLite:
		db, cleanup, err := database.OpenSQLite(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.MigrateSQLite(context.Background(), db); err != nil {
			cleanup()
			return nil, nil, err
		}
		return adapterrepo.NewSQLiteFlashcardRepository(db), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func newAlgorithm(cfg *config.Config) (srs.Algorithm, error) {
	switch cfg.SRS.Algorithm {
	case "", config.AlgorithmSM2:
		return srs.SM2{}, nil
	case config.AlgorithmAnki:
		return srs.NewAnki(srs.AnkiConfig{
			GraduatingIntervalDays: cfg.SRS.GraduatingIntervalDays,
			EasyIntervalDays:       cfg.SRS.EasyIntervalDays,
			StartingEase:           cfg.SRS.StartingEase,
			EasyBonus:              cfg.SRS.EasyBonus,
			IntervalModifier:       cfg.SRS.IntervalModifier,
		})
	default:
		return nil, fmt.Errorf("unsupported scheduling algorithm %q", cfg.SRS.Algorithm)
	}
}
