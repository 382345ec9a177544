package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

type Config struct {
	Port     string `env:"PORT,      default=7070"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	Terminal string `env:"TERMINAL_ID, default=front-desk"`

	API     APIConfig
	Session SessionConfig
	Store   StoreConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	NATS    NATSConfig
	OTel    OTelConfig
}

type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL, default=http://localhost:3000/api"`
	Timeout time.Duration `env:"API_TIMEOUT,  default=10s"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT,  default=30m"`
	IdleWarning time.Duration `env:"IDLE_WARNING,  default=1m"`
	RefreshLead time.Duration `env:"REFRESH_LEAD,  default=1m"`
	SessionTTL  time.Duration `env:"SESSION_TTL,   default=12h"`
	RememberTTL time.Duration `env:"REMEMBER_TTL,  default=720h"`
}

type StoreConfig struct {
	Driver     string `env:"STORE_DRIVER,          default=file"`
	Profile    string `env:"STORE_PROFILE,         default=default"`
	FilePath   string `env:"STORE_FILE_PATH"`
	Passphrase string `env:"STORE_FILE_PASSPHRASE"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=restaurant_console"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type NATSConfig struct {
	URL     string `env:"NATS_URL"`
	Subject string `env:"NATS_SUBJECT, default=console.session"`
}

type OTelConfig struct {
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadContext(context.Background(), nil)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadContext is Load with an explicit lookuper; nil reads the OS environment.
func LoadContext(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreFile, StoreRedis, StoreMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.Session.IdleTimeout > 0 && c.Session.IdleWarning >= c.Session.IdleTimeout {
		return fmt.Errorf("IDLE_WARNING (%s) must be shorter than IDLE_TIMEOUT (%s)", c.Session.IdleWarning, c.Session.IdleTimeout)
	}
	return nil
}
