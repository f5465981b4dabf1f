package config

import (
	"fmt"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/notify"
	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
)

func LoadNotifyConfig() (notify.Config, error) {
	var cfg notify.Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse notification config: %w", err)
	}
	return cfg, nil
}

// NewNotifier builds the dispatcher and, when KAFKA_BROKERS is set, the
// producer it publishes signup events to. reg may be nil.
func NewNotifier(logger *log.Logger, cfg notify.Config, reg prometheus.Registerer) (*notify.Dispatcher, *notify.KafkaProducer) {
	transport := notify.NewTransport(cfg, logger)

	var producer *notify.KafkaProducer
	opts := notify.Options{
		Transport: transport,
		Metrics:   notify.NewMetrics(reg),
	}

	if cfg.KafkaEnabled() {
		producer = notify.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		opts.Events = producer
		logger.Info("Signup events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL is not set; operator alerts are disabled")
	}

	logger.Info("Notifier initialized", "transport", transport.Name())
	return notify.NewDispatcher(cfg, logger, opts), producer
}
