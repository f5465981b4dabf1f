package config

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/storage/gormstore"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendMySQL     = "mysql"
	BackendFirestore = "firestore"

	defaultSQLitePath = "waitlist.db"
)

type DBConfig struct {
	// Dialect defaults to STORAGE_BACKEND.
	Dialect         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string // Default: "require" for prod safety
}

// GetStorageBackend reads STORAGE_BACKEND, defaulting to sqlite.
func GetStorageBackend() string {
	backend := strings.ToLower(sanitizeEnv(GetValueFromEnvironmentVariable("STORAGE_BACKEND", BackendSQLite)))

	switch backend {
	case "", "sqlite3":
		return BackendSQLite
	case "postgresql", "pg":
		return BackendPostgres
	default:
		return backend
	}
}

func NewDatabase(logger *log.Logger, cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &DBConfig{}
	}
	if cfg.Dialect == "" {
		cfg.Dialect = GetStorageBackend()
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 100
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = time.Minute
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}

	dsn, err := BuildDSN(logger, cfg)
	if err != nil {
		return nil, err
	}

	dialector, err := gormstore.Dialector(cfg.Dialect, dsn)
	if err != nil {
		logger.Error("Unsupported storage backend", "backend", cfg.Dialect)
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        gormstore.NowUTC,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Error("Failed to connect to database", "backend", cfg.Dialect, "error", err)
		closeConnPool(gdb)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		logger.Error("Failed to get database instance", "error", err)
		closeConnPool(gdb)
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite serializes writers; a single connection avoids "database is locked".
	if cfg.Dialect == BackendSQLite {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		logger.Error("Database ping failed", "error", err)
		if closeErr := sqlDB.Close(); closeErr != nil {
			logger.Error("Failed to close database after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection established successfully", "backend", cfg.Dialect)
	return gdb, nil
}

// closeConnPool releases a pool gorm opened before failing its checks.
func closeConnPool(gdb *gorm.DB) {
	if gdb == nil {
		return
	}
	if closer, ok := gdb.ConnPool.(io.Closer); ok {
		_ = closer.Close()
	}
}

// BuildDSN assembles the connection string for cfg.Dialect from the environment.
func BuildDSN(logger *log.Logger, cfg *DBConfig) (string, error) {
	switch cfg.Dialect {
	case BackendSQLite:
		return sqliteDSN(logger), nil
	case BackendPostgres:
		return postgresDSN(logger, cfg.SSLMode)
	case BackendMySQL:
		return mysqlDSN(logger)
	}
	return "", fmt.Errorf("storage backend %q has no SQL database", cfg.Dialect)
}

func sqliteDSN(logger *log.Logger) string {
	path := readEnv("DB_PATH")["DB_PATH"]
	if path == "" {
		path = defaultSQLitePath
	}
	logger.Info("Using SQLite database", "path", path)

	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

// postgresDSN prefers APP_DATABASE_URL, then builds a URL from POSTGRES_*.
func postgresDSN(logger *log.Logger, defaultSSLMode string) (string, error) {
	env := readEnv("APP_DATABASE_URL", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER",
		"POSTGRES_PASSWORD", "POSTGRES_DB_NAME", "POSTGRES_SSLMODE")

	if env["APP_DATABASE_URL"] != "" {
		logger.Info("Using APP_DATABASE_URL for database connection")
		return env["APP_DATABASE_URL"], nil
	}

	if err := requireEnv(logger, env, "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_DB_NAME"); err != nil {
		return "", err
	}
	if _, err := strconv.Atoi(env["POSTGRES_PORT"]); err != nil {
		return "", fmt.Errorf("invalid POSTGRES_PORT %q: %w", env["POSTGRES_PORT"], err)
	}

	sslMode := env["POSTGRES_SSLMODE"]
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(env["POSTGRES_USER"], env["POSTGRES_PASSWORD"]),
		Host:     net.JoinHostPort(env["POSTGRES_HOST"], env["POSTGRES_PORT"]),
		Path:     "/" + env["POSTGRES_DB_NAME"],
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}

	logger.Info("Connecting to database", "host", u.Host, "user", env["POSTGRES_USER"], "dbname", env["POSTGRES_DB_NAME"], "sslmode", sslMode)
	return u.String(), nil
}

// mysqlDSN prefers MYSQL_DSN and otherwise formats MYSQL_* through the
// driver's own Config.
func mysqlDSN(logger *log.Logger) (string, error) {
	env := readEnv("MYSQL_DSN", "MYSQL_HOST", "MYSQL_PORT", "MYSQL_USER", "MYSQL_PASSWORD", "MYSQL_DATABASE")

	if env["MYSQL_DSN"] != "" {
		logger.Info("Using MYSQL_DSN for database connection")
		return env["MYSQL_DSN"], nil
	}

	if err := requireEnv(logger, env, "MYSQL_HOST", "MYSQL_USER", "MYSQL_DATABASE"); err != nil {
		return "", err
	}
	port := env["MYSQL_PORT"]
	if port == "" {
		port = "3306"
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(env["MYSQL_HOST"], port)
	mc.User = env["MYSQL_USER"]
	mc.Passwd = env["MYSQL_PASSWORD"]
	mc.DBName = env["MYSQL_DATABASE"]
	mc.ParseTime = true
	mc.MultiStatements = true
	mc.Params = map[string]string{"charset": "utf8mb4"}

	logger.Info("Connecting to database", "host", mc.Addr, "user", mc.User, "dbname", mc.DBName)
	return mc.FormatDSN(), nil
}

// readEnv returns the sanitized value of each key, empty when unset.
func readEnv(keys ...string) map[string]string {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		values[key] = sanitizeEnv(GetValueFromEnvironmentVariable(key, ""))
	}
	return values
}

func requireEnv(logger *log.Logger, values map[string]string, keys ...string) error {
	var missing []string
	for _, key := range keys {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	logger.Error("Missing required database environment variables", "missing_vars", strings.Join(missing, ", "))
	return fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
}

// sanitizeEnv trims whitespace and one pair of matching surrounding quotes.
func sanitizeEnv(v string) string {
	s := strings.TrimSpace(v)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return s
}

func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...interface{}) error {
	if db == nil {
		logger.Error("Cannot migrate: db is empty")
		return fmt.Errorf("cannot migrate: db is empty")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")

	return nil
}

func CloseDatabase(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
