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
	Server    ServerConfig    `yaml:"server"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Mission   MissionConfig   `yaml:"mission"`
	Approval  ApprovalConfig  `yaml:"approval"`
	Retention RetentionConfig `yaml:"retention"`
	Notify    NotifyConfig    `yaml:"notify"`
	Database  DatabaseConfig  `yaml:"database"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type GRPCConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WorkflowConfig paces the analysis pipeline. Durations are strings so the
// file reads like "1s"; consumers parse with a fallback.
type WorkflowConfig struct {
	SettleDelay  string `yaml:"settle_delay"`
	SingleFlight bool   `yaml:"single_flight"`
}

type MissionConfig struct {
	LoadDuration    string `yaml:"load_duration"`
	UnloadDuration  string `yaml:"unload_duration"`
	TravelPerMinute string `yaml:"travel_per_minute"`
	BatteryFloorPct int    `yaml:"battery_floor_pct"`
	BatteryDrainPct int    `yaml:"battery_drain_pct"`
}

type ApprovalConfig struct {
	Escalation EscalationConfig `yaml:"escalation"`
}

type EscalationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Window  string `yaml:"window"`
	Policy  string `yaml:"policy"` // extend or reject
}

type RetentionConfig struct {
	MaxAge        string `yaml:"max_age"`
	SweepInterval string `yaml:"sweep_interval"`
}

type NotifyConfig struct {
	AuditURL     string `yaml:"audit_url"`
	AuditTimeout string `yaml:"audit_timeout"`
	EventURL     string `yaml:"event_url"`
	EventTimeout string `yaml:"event_timeout"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8100,
		},
		GRPC: GRPCConfig{
			Host: "0.0.0.0",
			Port: 9114,
		},
		Workflow: WorkflowConfig{
			SettleDelay: "1s",
		},
		Mission: MissionConfig{
			LoadDuration:    "6s",
			UnloadDuration:  "4s",
			TravelPerMinute: "1s",
			BatteryFloorPct: 20,
			BatteryDrainPct: 3,
		},
		Approval: ApprovalConfig{
			Escalation: EscalationConfig{
				Enabled: false,
				Window:  "10m",
				Policy:  "extend",
			},
		},
		Retention: RetentionConfig{
			MaxAge:        "1h",
			SweepInterval: "5m",
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

	if v := strings.TrimSpace(os.Getenv("APP_SERVER_HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_SERVER_PORT")); v != "" {
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
	if v := strings.TrimSpace(os.Getenv("APP_DATABASE_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_SETTLE_DELAY")); v != "" {
		cfg.Workflow.SettleDelay = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_SINGLE_FLIGHT")); v != "" {
		cfg.Workflow.SingleFlight = v == "1" || strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(os.Getenv("APP_NOTIFY_AUDIT_URL")); v != "" {
		cfg.Notify.AuditURL = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_NOTIFY_EVENT_URL")); v != "" {
		cfg.Notify.EventURL = v
	}

	return cfg, nil
}

func Module(path string) fx.Option {
	return fx.Provide(func() (Config, error) {
		return Load(path)
	})
}
