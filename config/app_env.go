package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/pkg/utils"
	"github.com/joho/godotenv"
)

const (
	AppEnvKey = "APP_ENV"

	minAdminSecretLength = 16
)

// InitializeEnvFile loads ENV_FILE (comma-separated, default ".env") unless
// SKIP_DOTENV is true. Variables already set in the process win.
func InitializeEnvFile(logger *log.Logger) {
	if utils.GetEnvBoolOrDefault("SKIP_DOTENV", false) {
		logger.Info("Skipping .env file load (SKIP_DOTENV=true)")
		return
	}

	files := utils.GetEnvList("ENV_FILE")
	if files == nil {
		files = []string{".env"}
	}

	if err := godotenv.Load(files...); err != nil {
		logger.Warn("Env file not loaded", "files", files, "error", err.Error())
		return
	}

	logger.Info("Environment variables loaded", "files", files)
}

func GetValueFromEnvironmentVariable(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func GetAppEnv() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv(AppEnvKey)))
}

func isProductionEnv(appEnv string) bool {
	switch strings.ToLower(strings.TrimSpace(appEnv)) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// ValidateAutoMigrateAllowed keeps gorm AutoMigrate away from shared
// databases; those go through `waitlist migrate`.
func ValidateAutoMigrateAllowed(appEnv string) error {
	env := strings.ToLower(strings.TrimSpace(appEnv))

	switch env {
	case "", "dev", "development", "local", "test", "testing":
		return nil
	default:
		return fmt.Errorf("--auto-migrate is not allowed when %s=%q; run `waitlist migrate` instead", AppEnvKey, env)
	}
}

// adminSecretProblem describes why secret is a poor fit for appEnv, or
// returns "" when it is fine. An empty secret disables /v1/admin.
func adminSecretProblem(appEnv, secret string) string {
	switch {
	case secret == "":
		return "ADMIN_SECRET is empty; the admin API will reject every request"
	case isProductionEnv(appEnv) && len(secret) < minAdminSecretLength:
		return fmt.Sprintf("ADMIN_SECRET is shorter than %d characters", minAdminSecretLength)
	default:
		return ""
	}
}
