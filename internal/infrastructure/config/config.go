package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Security   SecurityConfig   `koanf:"security"`
	Compliance ComplianceConfig `koanf:"compliance"`
	Risk       RiskConfig       `koanf:"risk"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRate   float64 `koanf:"sample_rate"`
}

type SecurityConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	TokenExpiry time.Duration `koanf:"token_expiry"`
}

// ComplianceConfig tunes the rule engine and its scheduler. Schedule is
// a cron spec; an empty value falls back to hourly runs.
type ComplianceConfig struct {
	Schedule   string        `koanf:"schedule"`
	RunTimeout time.Duration `koanf:"run_timeout"`
}

// RiskConfig carries the scoring policy. The constants encode policy
// choices, so operators may override them per deployment.
type RiskConfig struct {
	MaintenanceBaseline int           `koanf:"maintenance_baseline"`
	IncidentMaxExpected int           `koanf:"incident_max_expected"`
	ComplianceWeight    float64       `koanf:"compliance_weight"`
	MaintenanceWeight   float64       `koanf:"maintenance_weight"`
	IncidentWeight      float64       `koanf:"incident_weight"`
	CacheTTL            time.Duration `koanf:"cache_ttl"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Telemetry: TelemetryConfig{
			SampleRate: 0.1,
		},
		Security: SecurityConfig{
			TokenExpiry: 24 * time.Hour,
		},
		Compliance: ComplianceConfig{
			Schedule:   "@hourly",
			RunTimeout: 5 * time.Minute,
		},
		Risk: RiskConfig{
			MaintenanceBaseline: 50,
			IncidentMaxExpected: 50,
			ComplianceWeight:    0.4,
			MaintenanceWeight:   0.3,
			IncidentWeight:      0.3,
			CacheTTL:            time.Minute,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional; environment variables win either way.
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("FLEET_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FLEET_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
