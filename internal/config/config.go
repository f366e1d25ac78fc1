package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"community-api"`
	Environment string `env:"ENVIRONMENT" envDefault:"local"`

	DBDriver               string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser                 string `env:"DB_USER"`
	DBPassword             string `env:"DB_PASSWORD"`
	DBHost                 string `env:"DB_HOST"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`
	PostgresDSN            string `env:"POSTGRES_DSN"`

	FirebaseProjectID string   `env:"FIREBASE_PROJECT_ID"`
	JWTSecret         string   `env:"AUTH_JWT_SECRET"`
	AdminUIDs         []string `env:"ADMIN_UIDS" envSeparator:","`

	StorageBucket string `env:"STORAGE_BUCKET"`
	ProofMaxBytes int64  `env:"PROOF_MAX_BYTES" envDefault:"5242880"`

	TemporalAddress   string `env:"TEMPORAL_ADDRESS" envDefault:"localhost:7233"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE" envDefault:"default"`
	TemporalDisabled  bool   `env:"TEMPORAL_DISABLED" envDefault:"false"`

	NotifyRetryAttempts int           `env:"NOTIFY_RETRY_ATTEMPTS" envDefault:"5"`
	NotifyRetryInterval time.Duration `env:"NOTIFY_RETRY_INTERVAL" envDefault:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL:
		if c.DBUser == "" || c.DBName == "" || (c.DBHost == "" && c.InstanceConnectionName == "") {
			return errors.New("DB_USER, DB_NAME and DB_HOST (or INSTANCE_CONNECTION_NAME) are required for mysql")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for postgres")
		}
	case DriverMemory:
	default:
		return errors.New("DB_DRIVER must be one of mysql, postgres, memory")
	}
	if c.ProofMaxBytes <= 0 {
		return errors.New("PROOF_MAX_BYTES must be positive")
	}
	if c.NotifyRetryAttempts < 1 {
		return errors.New("NOTIFY_RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}
