package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Lookup    LookupConfig    `mapstructure:"lookup"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	SDA       SDAConfig       `mapstructure:"sda"`
	Soil      SoilConfig      `mapstructure:"soil"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Prefetch  PrefetchConfig  `mapstructure:"prefetch"`
	Maps      MapsConfig      `mapstructure:"maps"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL          string `mapstructure:"url"`
	ClickSubject string `mapstructure:"click_subject"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// LookupConfig configures the polygon lookup used by the click resolver.
// Mode "local" (default) queries the soil service in-process; mode "http"
// calls BaseURL/soil, which is rate limited per client IP like any caller.
type LookupConfig struct {
	Mode    string        `mapstructure:"mode"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ResolverConfig struct {
	FallbackHalfWidth float64 `mapstructure:"fallback_half_width"`
	FallbackEnabled   bool    `mapstructure:"fallback_enabled"`
}

// SDAConfig points at the USDA Soil Data Access tabular endpoint.
type SDAConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SoilConfig struct {
	CacheTTL     int  `mapstructure:"cache_ttl"`
	StoreEnabled bool `mapstructure:"store_enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// PrefetchConfig lists points to warm and an optional cron schedule.
// Points are "lon lat" pairs; SOILMAP_PREFETCH_POINTS separates points with
// commas, e.g. "-122.4194 37.7749,-100 30".
type PrefetchConfig struct {
	Schedule string   `mapstructure:"schedule"`
	Points   []string `mapstructure:"points"`
}

type MapsConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	CenterLat       float64 `mapstructure:"center_lat"`
	CenterLng       float64 `mapstructure:"center_lng"`
	Zoom            int     `mapstructure:"zoom"`
	ControlPosition string  `mapstructure:"control_position"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "soilmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "soilmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.click_subject", "map.clicks")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("lookup.mode", "local")
	v.SetDefault("lookup.base_url", "http://localhost:8000")
	v.SetDefault("lookup.timeout", 5*time.Second)
	v.SetDefault("resolver.fallback_half_width", 0.0015)
	v.SetDefault("resolver.fallback_enabled", true)
	v.SetDefault("sda.url", "https://sdmdataaccess.nrcs.usda.gov/Tabular/post.rest")
	v.SetDefault("sda.timeout", 20*time.Second)
	v.SetDefault("soil.cache_ttl", 3600)
	v.SetDefault("soil.store_enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "soil-prefetch")
	v.SetDefault("prefetch.schedule", "")
	v.SetDefault("prefetch.points", []string{})
	v.SetDefault("maps.api_key", "")
	v.SetDefault("maps.center_lat", 37.7749)
	v.SetDefault("maps.center_lng", -122.4194)
	v.SetDefault("maps.zoom", 12)
	v.SetDefault("maps.control_position", "TOP_RIGHT")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SOILMAP_LOOKUP_BASE_URL → lookup.base_url
	v.SetEnvPrefix("SOILMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	switch c.Lookup.Mode {
	case "http":
		if c.Lookup.BaseURL == "" {
			errs = append(errs, "lookup.base_url is required in http mode")
		}
	case "local":
	default:
		errs = append(errs, fmt.Sprintf("lookup.mode must be http or local, got %q", c.Lookup.Mode))
	}
	if c.Lookup.Timeout <= 0 {
		errs = append(errs, "lookup.timeout must be positive")
	}
	if c.Resolver.FallbackHalfWidth <= 0 || c.Resolver.FallbackHalfWidth > 1 {
		errs = append(errs, fmt.Sprintf("resolver.fallback_half_width must be in (0, 1], got %g", c.Resolver.FallbackHalfWidth))
	}
	if c.SDA.URL == "" {
		errs = append(errs, "sda.url is required")
	}
	if c.SDA.Timeout <= 0 {
		errs = append(errs, "sda.timeout must be positive")
	}
	if c.NATS.ClickSubject == "" {
		errs = append(errs, "nats.click_subject is required")
	}
	if c.Maps.Zoom < 0 || c.Maps.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("maps.zoom must be 0-22, got %d", c.Maps.Zoom))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
