package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
// Session, password and API settings are loaded by their own packages.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// DatabaseURL selects the user store:
	//   ""                       in-memory (development only)
	//   postgres://, postgresql:// Postgres via pgxpool
	//   sqlite://path, file:path SQLite file
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// DBMigrate applies embedded migrations at startup.
	DBMigrate bool

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("AUTH_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("AUTH_LOG_LEVEL", "info"),
		LogFormat: EnvString("AUTH_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("AUTH_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("AUTH_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("AUTH_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("AUTH_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("AUTH_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("AUTH_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("AUTH_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("AUTH_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("AUTH_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("AUTH_DB_MIGRATE", true),

		ReadinessRequireDB: EnvBool("AUTH_READINESS_REQUIRE_DB", false),

		MetricsEnabled: EnvBool("AUTH_METRICS_ENABLED", true),
	}
}
