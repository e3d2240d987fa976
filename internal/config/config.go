package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"devicesync/internal/utils/timex"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	defaultDeviceSecret = "device-SecRetKey"
	defaultUserSecret   = "user-SecRetKey"
)

type Config struct {
	Env      string
	DB       db
	Server   server
	Logger   logger
	Auth     auth
	Realtime realtime
	Devices  devices
	Sync     syncConfig
	Cleanup  cleanup
}

type db struct {
	Driver      string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type server struct {
	RunAddress string `env:"RUN_ADDRESS" envDefault:":8080"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL"`
}

type auth struct {
	DeviceTokenSecret string        `env:"DEVICE_TOKEN_SECRET"`
	DeviceTokenTTL    time.Duration `env:"DEVICE_TOKEN_TTL" envDefault:"7d"`
	UserTokenSecret   string        `env:"USER_TOKEN_SECRET"`
	UserTokenTTL      time.Duration `env:"USER_TOKEN_TTL" envDefault:"24h"`
}

type realtime struct {
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	ConnectionTimeout time.Duration `env:"CONNECTION_TIMEOUT" envDefault:"60s"`
}

type devices struct {
	MaxPerUser          int           `env:"MAX_DEVICES_PER_USER" envDefault:"10"`
	InactivityThreshold time.Duration `env:"DEVICE_INACTIVITY_THRESHOLD" envDefault:"90d"`
}

type syncConfig struct {
	BatchSize  int `env:"SYNC_BATCH_SIZE" envDefault:"100"`
	MaxRetries int `env:"SYNC_MAX_RETRIES" envDefault:"3"`
}

type cleanup struct {
	Interval         time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	OfflineRetention time.Duration `env:"OFFLINE_RETENTION" envDefault:"30d"`
}

// MustLoad загружает конфигурацию сервера из .env и переменных окружения
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Load читает конфигурацию; .env необязателен
func Load() (*Config, error) {
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("failed to load %s: %v", envPath, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvLocal)
	v.SetDefault("RUN_ADDRESS", ":8080")
	v.SetDefault("STORAGE_DRIVER", StoragePostgres)
	v.SetDefault("DEVICE_TOKEN_TTL", "7d")
	v.SetDefault("USER_TOKEN_TTL", "24h")
	v.SetDefault("HEARTBEAT_INTERVAL", "30s")
	v.SetDefault("CONNECTION_TIMEOUT", "60s")
	v.SetDefault("MAX_DEVICES_PER_USER", 10)
	v.SetDefault("DEVICE_INACTIVITY_THRESHOLD", "90d")
	v.SetDefault("SYNC_BATCH_SIZE", 100)
	v.SetDefault("SYNC_MAX_RETRIES", 3)
	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("OFFLINE_RETENTION", "30d")
}

func fromViper(v *viper.Viper) (*Config, error) {
	durations := map[string]*time.Duration{}
	cfg := &Config{
		Env: v.GetString("APP_ENV"),
		DB: db{
			Driver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
			DatabaseURI: v.GetString("DATABASE_URI"),
			Migrations:  v.GetString("MIGRATIONS_PATH"),
		},
		Server: server{RunAddress: v.GetString("RUN_ADDRESS")},
		Logger: logger{LogLevel: v.GetString("LOG_LEVEL")},
		Auth: auth{
			DeviceTokenSecret: v.GetString("DEVICE_TOKEN_SECRET"),
			UserTokenSecret:   v.GetString("USER_TOKEN_SECRET"),
		},
		Devices: devices{MaxPerUser: v.GetInt("MAX_DEVICES_PER_USER")},
		Sync: syncConfig{
			BatchSize:  v.GetInt("SYNC_BATCH_SIZE"),
			MaxRetries: v.GetInt("SYNC_MAX_RETRIES"),
		},
	}

	durations["DEVICE_TOKEN_TTL"] = &cfg.Auth.DeviceTokenTTL
	durations["USER_TOKEN_TTL"] = &cfg.Auth.UserTokenTTL
	durations["HEARTBEAT_INTERVAL"] = &cfg.Realtime.HeartbeatInterval
	durations["CONNECTION_TIMEOUT"] = &cfg.Realtime.ConnectionTimeout
	durations["DEVICE_INACTIVITY_THRESHOLD"] = &cfg.Devices.InactivityThreshold
	durations["CLEANUP_INTERVAL"] = &cfg.Cleanup.Interval
	durations["OFFLINE_RETENTION"] = &cfg.Cleanup.OfflineRetention

	for key, dst := range durations {
		d, err := timex.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if cfg.Auth.DeviceTokenSecret == "" {
		if cfg.Env == EnvProd {
			return nil, fmt.Errorf("DEVICE_TOKEN_SECRET is required in %s", EnvProd)
		}
		cfg.Auth.DeviceTokenSecret = defaultDeviceSecret
	}
	if cfg.Auth.UserTokenSecret == "" {
		if cfg.Env == EnvProd {
			return nil, fmt.Errorf("USER_TOKEN_SECRET is required in %s", EnvProd)
		}
		cfg.Auth.UserTokenSecret = defaultUserSecret
	}

	switch cfg.DB.Driver {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DB.DatabaseURI == "" {
			return nil, fmt.Errorf("DATABASE_URI is required for %s storage", StoragePostgres)
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.DB.Driver)
	}

	if cfg.Devices.MaxPerUser <= 0 {
		return nil, fmt.Errorf("MAX_DEVICES_PER_USER must be positive")
	}
	if cfg.Sync.BatchSize <= 0 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	if cfg.Sync.MaxRetries < 0 {
		return nil, fmt.Errorf("SYNC_MAX_RETRIES must not be negative")
	}
	if cfg.Realtime.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}

	return cfg, nil
}
