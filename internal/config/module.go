package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	GRPC    GRPCConfig    `yaml:"grpc"`
	Engine  EngineConfig  `yaml:"engine"`
	Notify  NotifyConfig  `yaml:"notify"`
	FHIR    FHIRConfig    `yaml:"fhir"`
	Archive ArchiveConfig `yaml:"archive"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type GRPCConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EngineConfig holds the scheduler tunables. Durations are strings parsed
// with time.ParseDuration; bad values fall back to the engine defaults.
type EngineConfig struct {
	DefaultStepTimeout    string `yaml:"default_step_timeout"`
	BackoffBase           string `yaml:"backoff_base"`
	BackoffMax            string `yaml:"backoff_max"`
	RetentionMaxInstances int    `yaml:"retention_max_instances"`
	RetentionTTL          string `yaml:"retention_ttl"`
}

type NotifyConfig struct {
	AuditURL        string `yaml:"audit_url"`
	AuditTimeout    string `yaml:"audit_timeout"`
	EventBusURL     string `yaml:"event_bus_url"`
	EventBusTimeout string `yaml:"event_bus_timeout"`
}

type FHIRConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// ArchiveConfig configures the optional Postgres snapshotter. Empty DSN
// disables it.
type ArchiveConfig struct {
	DSN      string `yaml:"dsn"`
	Interval string `yaml:"interval"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8140,
		},
		GRPC: GRPCConfig{
			Host: "0.0.0.0",
			Port: 9140,
		},
		Engine: EngineConfig{
			DefaultStepTimeout: "30s",
			BackoffBase:        "1s",
			BackoffMax:         "30s",
			RetentionTTL:       "24h",
		},
		Notify: NotifyConfig{
			AuditTimeout:    "5s",
			EventBusTimeout: "5s",
		},
		FHIR: FHIRConfig{
			Timeout: "15s",
		},
		Archive: ArchiveConfig{
			Interval: "1m",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("APP_HTTP_HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_HTTP_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("APP_GRPC_HOST")); v != "" {
		cfg.GRPC.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_GRPC_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.GRPC.Port = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("APP_FHIR_BASE_URL")); v != "" {
		cfg.FHIR.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_AUDIT_URL")); v != "" {
		cfg.Notify.AuditURL = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_EVENT_BUS_URL")); v != "" {
		cfg.Notify.EventBusURL = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_ARCHIVE_DSN")); v != "" {
		cfg.Archive.DSN = v
	}

	return cfg, nil
}

func Module(path string) fx.Option {
	return fx.Provide(func() (Config, error) {
		return Load(path)
	})
}
