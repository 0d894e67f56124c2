// Package config loads service configuration from the environment, in the
// style of the teacher's ingest/config package: typed accessors over
// os.LookupEnv with an optional "_FILE" indirection for secrets, and sane
// defaults for everything spec.md §6.3 lists.
package config

import "time"

// Config is the process-wide configuration, loaded once at startup and
// passed by handle to every component that needs it.
type Config struct {
	DatabaseURL string

	RedisHost     string
	RedisPort     int
	RedisUser     string
	RedisPassword string
	RedisDB       int

	LogBasePath        string
	LogFileRetention   time.Duration
	CORSOrigins        []string
	MaxWorkers         int
	CacheTTL           time.Duration
	LogBatchSize       int
	LogLevel           string
	LogFile            string
	RetentionHorizon   time.Duration
	HotQueryDefaultAll bool // §4.8: "no time range" default for general search is Both, not HotOnly
}

const (
	envDatabaseURL      = "DATABASE_URL"
	envRedisHost        = "REDIS_HOST"
	envRedisPort        = "REDIS_PORT"
	envRedisUser        = "REDIS_USER"
	envRedisPassword    = "REDIS_PASSWORD"
	envRedisDB          = "REDIS_DB"
	envLogBasePath      = "LOG_BASE_PATH"
	envLogRetentionDays = "LOG_FILE_RETENTION_DAYS"
	envCORSOrigins      = "CORS_ORIGINS"
	envMaxWorkers       = "MAX_WORKERS"
	envCacheTTL         = "CACHE_TTL"
	envLogBatchSize     = "LOG_BATCH_SIZE"
	envLogLevel         = "LOG_LEVEL"
	envLogFile          = "LOG_FILE"
	envRetentionDays    = "RETENTION_DAYS"
)

// Load reads Config from the process environment, applying the defaults
// named in spec.md §6.3.
func Load() *Config {
	return &Config{
		DatabaseURL:        String(envDatabaseURL, "file:logserver.db?cache=shared&_pragma=journal_mode(WAL)"),
		RedisHost:          String(envRedisHost, "127.0.0.1"),
		RedisPort:          Int(envRedisPort, 6379),
		RedisUser:          String(envRedisUser, ""),
		RedisPassword:      String(envRedisPassword, ""),
		RedisDB:            Int(envRedisDB, 0),
		LogBasePath:        String(envLogBasePath, "/var/log/app"),
		LogFileRetention:   time.Duration(Int(envLogRetentionDays, 2)) * 24 * time.Hour,
		CORSOrigins:        defaultList(List(envCORSOrigins), []string{"*"}),
		MaxWorkers:         Int(envMaxWorkers, 4),
		CacheTTL:           time.Duration(Int(envCacheTTL, 300)) * time.Second,
		LogBatchSize:       Int(envLogBatchSize, 100),
		LogLevel:           String(envLogLevel, "INFO"),
		LogFile:            String(envLogFile, ""),
		RetentionHorizon:   time.Duration(Int(envRetentionDays, 90)) * 24 * time.Hour,
		HotQueryDefaultAll: Bool("HOT_QUERY_DEFAULT_BOTH", true),
	}
}

func defaultList(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
