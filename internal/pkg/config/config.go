package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	S3        S3Config        `mapstructure:"s3"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Map       MapConfig       `mapstructure:"map"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Navigator NavigatorConfig `mapstructure:"navigator"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	RateLimit    int      `mapstructure:"rate_limit"` // requests per minute per IP
}

// Store drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverS3       = "s3"
)

// StoreConfig selects where the customer document lives.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`     // file driver
	Document string `mapstructure:"document"` // row / object name for the other drivers
	SeedDemo bool   `mapstructure:"seed_demo"`
}

type DatabaseConfig struct {
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

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Key      string `mapstructure:"key"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // optional, for S3-compatible stores
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// MapConfig is the operational region shown to clients.
type MapConfig struct {
	Bounds        domain.Bounds `mapstructure:"bounds"`
	MinZoom       int           `mapstructure:"min_zoom"`
	MaxZoom       int           `mapstructure:"max_zoom"`
	TrackingZoom  int           `mapstructure:"tracking_zoom"`
	ScreenWidth   int           `mapstructure:"screen_width"`
	ScreenHeight  int           `mapstructure:"screen_height"`
	TileURL       string        `mapstructure:"tile_url"`
	TileAttribute string        `mapstructure:"tile_attribution"`
}

// Routing providers.
const (
	RoutingOSRM         = "osrm"
	RoutingStraightLine = "straightline"
)

type RoutingConfig struct {
	Provider string        `mapstructure:"provider"`
	OSRMURL  string        `mapstructure:"osrm_url"`
	Profile  string        `mapstructure:"profile"`
	Timeout  time.Duration `mapstructure:"timeout"`
	SpeedKMH float64       `mapstructure:"speed_kmh"` // straightline duration estimate
}

// NavigatorConfig configures the terminal navigation client.
type NavigatorConfig struct {
	RegistryURL string        `mapstructure:"registry_url"`
	AgentID     string        `mapstructure:"agent_id"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FIELDNAV_STORE_DRIVER → store.driver
	v.SetEnvPrefix("FIELDNAV")
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

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.path", "customers.json")
	v.SetDefault("store.document", "customers")
	v.SetDefault("store.seed_demo", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fieldnav")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "fieldnav")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("sqlite.path", "fieldnav.db")

	v.SetDefault("s3.key", "customers.json")
	v.SetDefault("s3.region", "us-east-1")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)

	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	// Sri Lanka.
	v.SetDefault("map.bounds.min_lat", 5.85)
	v.SetDefault("map.bounds.min_lon", 79.5)
	v.SetDefault("map.bounds.max_lat", 9.9)
	v.SetDefault("map.bounds.max_lon", 81.95)
	v.SetDefault("map.min_zoom", 7)
	v.SetDefault("map.max_zoom", 19)
	v.SetDefault("map.tracking_zoom", 15)
	v.SetDefault("map.screen_width", 1280)
	v.SetDefault("map.screen_height", 800)
	v.SetDefault("map.tile_url", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("map.tile_attribution", "© OpenStreetMap contributors")

	v.SetDefault("routing.provider", RoutingOSRM)
	v.SetDefault("routing.osrm_url", "https://router.project-osrm.org")
	v.SetDefault("routing.profile", "driving")
	v.SetDefault("routing.timeout", 5*time.Second)
	v.SetDefault("routing.speed_kmh", 40.0)

	v.SetDefault("navigator.registry_url", "http://localhost:8080")
	v.SetDefault("navigator.agent_id", "")
	v.SetDefault("navigator.timeout", 5*time.Second)
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

	switch c.Store.Driver {
	case DriverFile:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the file driver")
		}
	case DriverPostgres:
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
	case DriverSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, "sqlite.path is required for the sqlite driver")
		}
	case DriverS3:
		if c.S3.Bucket == "" {
			errs = append(errs, "s3.bucket is required for the s3 driver")
		}
		if c.S3.Key == "" {
			errs = append(errs, "s3.key is required for the s3 driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be one of file, postgres, sqlite, s3; got %q", c.Store.Driver))
	}
	if c.Store.Driver != DriverFile && c.Store.Document == "" {
		errs = append(errs, "store.document is required")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if !c.Map.Bounds.Valid() {
		errs = append(errs, "map.bounds must be a non-empty box within -85..85 lat and -180..180 lon")
	}
	if c.Map.MinZoom < 0 || c.Map.MaxZoom > 22 || c.Map.MinZoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Sprintf("map zoom range %d..%d is invalid", c.Map.MinZoom, c.Map.MaxZoom))
	}
	if c.Map.TrackingZoom < c.Map.MinZoom || c.Map.TrackingZoom > c.Map.MaxZoom {
		errs = append(errs, "map.tracking_zoom must lie within min_zoom..max_zoom")
	}
	if c.Map.ScreenWidth <= 0 || c.Map.ScreenHeight <= 0 {
		errs = append(errs, "map.screen_width and map.screen_height must be positive")
	}

	switch c.Routing.Provider {
	case RoutingOSRM:
		if c.Routing.OSRMURL == "" {
			errs = append(errs, "routing.osrm_url is required for the osrm provider")
		}
	case RoutingStraightLine:
		if c.Routing.SpeedKMH <= 0 {
			errs = append(errs, "routing.speed_kmh must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("routing.provider must be osrm or straightline; got %q", c.Routing.Provider))
	}
	if c.Routing.Timeout <= 0 {
		errs = append(errs, "routing.timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
