package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Audit configures the hash-chained audit log.
type Audit struct {
	LogDir        string `env:"AUDIT_LOG_DIR" envDefault:"audit_logs"`
	RetentionDays int    `env:"AUDIT_RETENTION_DAYS" envDefault:"90"`
}

// Consent configures the consent record store.
type Consent struct {
	Dir                  string `env:"CONSENT_DIR" envDefault:"data/consent"`
	DefaultRetentionDays int    `env:"DEFAULT_RETENTION_DAYS" envDefault:"90"`
	// DatabaseURL switches the consent store to Postgres when set.
	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"db/migrations"`
}

// Retention configures the background sweep.
type Retention struct {
	Interval time.Duration `env:"RETENTION_INTERVAL" envDefault:"24h"`
}

// Kafka configures the optional audit event mirror. Empty brokers disable it.
type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"compliance.audit-events"`
}

// RedisConfig configures the optional cross-replica sweep lock.
// Empty URL disables Redis entirely.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type Config struct {
	Server    Server
	Audit     Audit
	Consent   Consent
	Retention Retention
	Kafka     Kafka
	Redis     RedisConfig
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load builds the configuration from environment variables so main stays lean.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
