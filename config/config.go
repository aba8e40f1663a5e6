package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Zones      ZonesConfig      `yaml:"zones"`
	Presence   PresenceConfig   `yaml:"presence"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ZonesConfig holds the operator-configured room lists used to classify
// zone identifiers.
type ZonesConfig struct {
	DefaultWaitingZone  string   `yaml:"default_waiting_zone"`
	WaitingRoomPrefixes []string `yaml:"waiting_room_prefixes"`
	ReceptionZones      []string `yaml:"reception_zones"`
	TreatmentRoomCodes  []string `yaml:"treatment_room_codes"`
}

// PresenceConfig holds presence-tracking settings.
type PresenceConfig struct {
	StalenessSeconds int           `yaml:"staleness_seconds"`
	Staleness        time.Duration `yaml:"-"` // Ignored by YAML parser
	Timezone         string        `yaml:"timezone"`
}

// ScheduleConfig holds the appointment-mirror sync settings.
type ScheduleConfig struct {
	Enabled         bool            `yaml:"enabled"`
	IntervalSeconds int             `yaml:"interval_seconds"`
	Interval        time.Duration   `yaml:"-"` // Ignored by YAML parser
	HTTPProxy       string          `yaml:"http_proxy"`
	Request         ScheduleRequest `yaml:"request"`
}

// ScheduleRequest defines the HTTP request against the upstream
// scheduling system.
type ScheduleRequest struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	PageSize int               `yaml:"pageSize"`
	Payload  map[string]any    `yaml:"payload"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 15
	}

	if cfg.Zones.DefaultWaitingZone == "" {
		cfg.Zones.DefaultWaitingZone = "waiting-room-main"
	}
	if len(cfg.Zones.WaitingRoomPrefixes) == 0 {
		cfg.Zones.WaitingRoomPrefixes = []string{"waiting-room-"}
	}
	if len(cfg.Zones.ReceptionZones) == 0 {
		cfg.Zones.ReceptionZones = []string{"reception"}
	}

	// Clients heartbeat every 2 minutes; readers treat anything older
	// than 3 minutes as gone.
	if cfg.Presence.StalenessSeconds <= 0 {
		cfg.Presence.StalenessSeconds = 180
	}
	cfg.Presence.Staleness = time.Duration(cfg.Presence.StalenessSeconds) * time.Second
	if cfg.Presence.Timezone == "" {
		cfg.Presence.Timezone = "Local"
	}

	if cfg.Schedule.IntervalSeconds <= 0 {
		cfg.Schedule.IntervalSeconds = 300
	}
	cfg.Schedule.Interval = time.Duration(cfg.Schedule.IntervalSeconds) * time.Second

	if cfg.Schedule.Request.PageSize <= 0 {
		cfg.Schedule.Request.PageSize = 100
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
