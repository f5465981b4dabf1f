package config

import (
	"context"
	"fmt"
	"time"

	"github.com/akeren/waitlist-foundry/config/router"
	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/notify"
	"github.com/akeren/waitlist-foundry/internal/storage"
	"github.com/akeren/waitlist-foundry/pkg/constants"
	"github.com/caarlos0/env/v11"
	"gorm.io/gorm"
)

const (
	defaultRequestTimeout = 30 * time.Second
	tracingFlushTimeout   = 5 * time.Second
)

type ApplicationConfig struct {
	// DB is nil when the Firestore backend is selected.
	DB              *gorm.DB
	Store           storage.Store
	Notifier        notify.Notifier
	Events          *notify.KafkaProducer
	RouterService   *router.RouterService
	Logger          *log.Logger
	Cache           Cache
	Config          *AppConfig
	TracingShutdown func(context.Context) error
}

// AppConfig holds the HTTP-facing settings. Non-positive limits fall back to
// the defaults.
type AppConfig struct {
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"`
	// AdminSecret guards /v1/admin. Empty rejects every admin request.
	AdminSecret string `env:"ADMIN_SECRET"`
}

func NewAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse app config: %w", err)
	}

	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = constants.DefaultRateLimitRequests
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = constants.DefaultRateLimitWindow()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	cfg.AdminSecret = sanitizeEnv(cfg.AdminSecret)

	return cfg, nil
}

// Cleanup releases resources in reverse order of construction.
func (ac *ApplicationConfig) Cleanup() {
	shutdownTracing(ac.Logger, ac.TracingShutdown)

	if ac.Notifier != nil {
		if err := ac.Notifier.Close(); err != nil {
			ac.Logger.Error("Failed to close notifier", "error", err)
		}
	}

	switch {
	case ac.Store != nil:
		if err := ac.Store.Close(); err != nil {
			ac.Logger.Error("Failed to close storage", "error", err)
		} else {
			ac.Logger.Info("Storage closed")
		}
	case ac.DB != nil:
		CloseDatabase(ac.DB, ac.Logger)
	}

	if ac.RouterService != nil {
		ac.RouterService.Cleanup()
	}
	if ac.Cache != nil {
		CloseCache(ac.Cache, ac.Logger)
	}

	ac.Logger.Info("Application cleanup completed")
}

func shutdownTracing(logger *log.Logger, shutdown func(context.Context) error) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown tracer provider", "error", err)
	}
}

// LoadApplicationConfiguration wires storage, cache, router and notifications
// from the environment. autoMigrate is refused in production.
func LoadApplicationConfiguration(logger *log.Logger, autoMigrate bool) (*ApplicationConfig, error) {
	InitializeEnvFile(logger)
	appEnv := GetAppEnv()

	if autoMigrate {
		if err := ValidateAutoMigrateAllowed(appEnv); err != nil {
			return nil, err
		}
		if appEnv == "" {
			logger.Warn("APP_ENV not set; allowing --auto-migrate as development")
		}
	}

	appConfig, err := NewAppConfig()
	if err != nil {
		return nil, err
	}
	if problem := adminSecretProblem(appEnv, appConfig.AdminSecret); problem != "" {
		logger.Warn(problem)
	}

	notifyConfig, err := LoadNotifyConfig()
	if err != nil {
		return nil, err
	}

	tracingShutdown, err := SetupTracing(logger)
	if err != nil {
		return nil, err
	}

	store, db, err := NewStore(context.Background(), logger, autoMigrate)
	if err != nil {
		shutdownTracing(logger, tracingShutdown)
		return nil, err
	}

	cache := NewCacheConfig().NewCacheOrNil(logger)
	if cache != nil {
		store = storage.WithCountCache(store, cache, constants.WaitlistCountCacheKey, constants.WaitlistCountCacheTTL, logger)
	}

	routerService := router.CreateRouterService(logger, cache, &router.RouterConfig{
		RateLimitRequests: appConfig.RateLimitRequests,
		RateLimitWindow:   appConfig.RateLimitWindow,
		RequestTimeout:    appConfig.RequestTimeout,
	})

	notifier, events := NewNotifier(logger, notifyConfig, routerService.MetricsRegistry())

	logger.Info("Application configuration loaded", "backend", GetStorageBackend(), "env", appEnv)

	return &ApplicationConfig{
		DB:              db,
		Store:           store,
		Notifier:        notifier,
		Events:          events,
		RouterService:   routerService,
		Logger:          logger,
		Cache:           cache,
		Config:          appConfig,
		TracingShutdown: tracingShutdown,
	}, nil
}
