package domain

import (
	"github.com/akeren/waitlist-foundry/config"
	"github.com/akeren/waitlist-foundry/domain/admin"
	"github.com/akeren/waitlist-foundry/domain/monitoring"
	"github.com/akeren/waitlist-foundry/domain/waitlist"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) {
	// Typed nils must not reach the health checks as non-nil interfaces.
	var cache, queue monitoring.Pinger
	if appConfig.Cache != nil {
		cache = appConfig.Cache
	}
	if appConfig.Events != nil {
		queue = appConfig.Events
	}

	appConfig.RouterService.MountController(monitoring.NewMonitoringController(appConfig.Store, appConfig.Logger, cache, queue))
	appConfig.RouterService.MountController(waitlist.NewWaitlistController(appConfig.Store, appConfig.Notifier, appConfig.Logger))
	appConfig.RouterService.MountController(admin.NewAdminController(appConfig.Store, appConfig.Config.AdminSecret, appConfig.Logger))
}
