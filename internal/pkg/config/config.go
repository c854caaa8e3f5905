package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Map       MapConfig       `mapstructure:"map"`
	Surface   SurfaceConfig   `mapstructure:"surface"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	InitTimeout  int      `mapstructure:"init_timeout"` // seconds a session may wait for its provider
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NATSConfig: an empty URL disables state fan-out.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// ValkeyConfig: an empty address disables snapshots.
type ValkeyConfig struct {
	Addr       string `mapstructure:"addr"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// MapConfig is the host application's map setup.
type MapConfig struct {
	APIKey           string   `mapstructure:"api_key"`
	ElementID        string   `mapstructure:"element_id"`
	Append           bool     `mapstructure:"append"`
	CreateInitMarker bool     `mapstructure:"create_init_marker"`
	CenterLat        float64  `mapstructure:"center_lat"`
	CenterLon        float64  `mapstructure:"center_lon"`
	Zoom             int      `mapstructure:"zoom"`
	MinZoom          int      `mapstructure:"min_zoom"`
	MaxZoom          int      `mapstructure:"max_zoom"`
	Version          string   `mapstructure:"version"`
	Language         string   `mapstructure:"language"`
	Region           string   `mapstructure:"region"`
	Libraries        []string `mapstructure:"libraries"`
}

// SurfaceConfig sizes headless surfaces.
type SurfaceConfig struct {
	WidthPx  int `mapstructure:"width_px"`
	HeightPx int `mapstructure:"height_px"`
}

// InitOptions turns the map section into session init defaults.
func (m MapConfig) InitOptions() domain.InitOptions {
	center := domain.GeoPoint{Lat: m.CenterLat, Lon: m.CenterLon}
	zoom, minZoom, maxZoom := m.Zoom, m.MinZoom, m.MaxZoom
	return domain.InitOptions{
		APIKey:           m.APIKey,
		HostElementID:    m.ElementID,
		Append:           m.Append,
		CreateInitMarker: m.CreateInitMarker,
		View: &domain.ViewOverrides{
			Center:  &center,
			Zoom:    &zoom,
			MinZoom: &minZoom,
			MaxZoom: &maxZoom,
		},
		API: &domain.APIOptions{
			Version:   m.Version,
			Language:  m.Language,
			Region:    m.Region,
			Libraries: m.Libraries,
		},
	}
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	view := domain.DefaultViewOptions()
	api := domain.DefaultAPIOptions()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.init_timeout", 30)
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.ttl_seconds", 3600)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("map.api_key", "")
	v.SetDefault("map.element_id", "Map")
	v.SetDefault("map.append", false)
	v.SetDefault("map.create_init_marker", true)
	v.SetDefault("map.center_lat", view.Center.Lat)
	v.SetDefault("map.center_lon", view.Center.Lon)
	v.SetDefault("map.zoom", view.Zoom)
	v.SetDefault("map.min_zoom", view.MinZoom)
	v.SetDefault("map.max_zoom", view.MaxZoom)
	v.SetDefault("map.version", api.Version)
	v.SetDefault("map.language", api.Language)
	v.SetDefault("map.region", api.Region)
	v.SetDefault("map.libraries", api.Libraries)
	v.SetDefault("surface.width_px", 1280)
	v.SetDefault("surface.height_px", 800)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PINMAP_MAP_API_KEY → map.api_key
	v.SetEnvPrefix("PINMAP")
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
	if c.Server.InitTimeout <= 0 {
		errs = append(errs, "server.init_timeout must be positive")
	}
	if c.Map.ElementID == "" {
		errs = append(errs, "map.element_id is required")
	}
	center := domain.GeoPoint{Lat: c.Map.CenterLat, Lon: c.Map.CenterLon}
	if err := center.Validate(); err != nil {
		errs = append(errs, "map center: "+err.Error())
	}
	if c.Map.MinZoom < 0 || c.Map.MaxZoom > 22 || c.Map.MinZoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Sprintf("map zoom range must satisfy 0 <= min_zoom <= max_zoom <= 22, got %d..%d", c.Map.MinZoom, c.Map.MaxZoom))
	}
	if c.Map.Zoom < c.Map.MinZoom || c.Map.Zoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Sprintf("map.zoom %d outside [%d, %d]", c.Map.Zoom, c.Map.MinZoom, c.Map.MaxZoom))
	}
	if c.Surface.WidthPx <= 0 || c.Surface.HeightPx <= 0 {
		errs = append(errs, "surface.width_px and surface.height_px must be positive")
	}
	if c.Valkey.Addr != "" && c.Valkey.TTLSeconds <= 0 {
		errs = append(errs, "valkey.ttl_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
