package config

import (
	"context"
	"fmt"
	"time"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/internal/storage"
	"github.com/akeren/waitlist-foundry/internal/storage/firestore"
	"github.com/akeren/waitlist-foundry/internal/storage/gormstore"
	"github.com/caarlos0/env/v11"
	"gorm.io/gorm"
)

// NewStore opens the backend named by STORAGE_BACKEND. For SQL backends the
// gorm handle is returned too so callers can run migrations; it is nil for
// Firestore.
func NewStore(ctx context.Context, logger *log.Logger, autoMigrate bool) (storage.Store, *gorm.DB, error) {
	backend := GetStorageBackend()

	if backend == BackendFirestore {
		var cfg firestore.Config
		if err := env.Parse(&cfg); err != nil {
			return nil, nil, fmt.Errorf("parse firestore config: %w", err)
		}

		openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		store, err := firestore.Open(openCtx, cfg)
		if err != nil {
			logger.Error("Failed to open Firestore", "project", cfg.ProjectID, "error", err)
			return nil, nil, err
		}

		logger.Info("Firestore storage initialized", "project", cfg.ProjectID, "collection", cfg.Collection)
		return store, nil, nil
	}

	db, err := NewDatabase(logger, &DBConfig{Dialect: backend})
	if err != nil {
		return nil, nil, err
	}

	if autoMigrate {
		if err := AutoMigrate(logger, db, models.ModelRegistry...); err != nil {
			CloseDatabase(db, logger)
			return nil, nil, err
		}
	}

	return gormstore.New(db), db, nil
}
