package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all service settings, populated from environment variables and
// an optional env-format file named by CONFIG_FILE.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	HTTPTimeout     time.Duration

	// Batch behavior.
	Initialization bool // first load: also (re)build location areas and migrate the schema
	Debug          bool // write CSV dumps instead of loading the warehouse
	LocalFiles     bool // skip the portal and read the local fallback CSVs
	Retries        int
	Schedule       string

	// Montgomery County open-data portal (Socrata).
	PortalBaseURL string
	SotaToken     string
	SotaUser      string
	SotaPassword  string

	// Files.
	LocalDataDir string
	StaticDir    string
	OutputDir    string

	// Vehicle specifications feed.
	VehicleFeedURL string

	// Weather archive.
	WeatherBaseURL   string
	WeatherTimezone  string
	WeatherRateLimit float64 // requests per second
	WeatherCacheSize int
	RedisAddr        string

	// Warehouse.
	WarehouseDriver string
	WarehouseDSN    string
	LoadBatchSize   int

	// Load notifications. Publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

var defaults = map[string]any{
	"HTTP_ADDR":          ":8080",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "json",
	"SHUTDOWN_TIMEOUT":   "10s",
	"HTTP_TIMEOUT":       "60s",
	"DWH_INITIALIZATION": false,
	"DEBUG":              false,
	"LOCAL_FILES":        true,
	"N_RETRIES":          3,
	"SCHEDULE":           "@monthly",
	"PORTAL_BASE_URL":    "https://data.montgomerycountymd.gov",
	"LOCAL_DATA_DIR":     "emergency",
	"STATIC_DIR":         "static",
	"OUTPUT_DIR":         "out",
	"VEHICLE_FEED_URL":   "https://www.fueleconomy.gov/feg/epadata/vehicles.csv",
	"WEATHER_BASE_URL":   "https://archive-api.open-meteo.com/v1/archive",
	"WEATHER_TIMEZONE":   "America/New_York",
	"WEATHER_RATE_LIMIT": 5.0,
	"WEATHER_CACHE_SIZE": 1000,
	"DWH_DRIVER":         "postgres",
	"DWH_DSN":            "host=localhost user=postgres password=postgres dbname=vehicle_crashes_dwh port=5432 sslmode=disable",
	"LOAD_BATCH_SIZE":    500,
	"KAFKA_TOPIC":        "crash-etl-loads",
}

// Load reads configuration, applying defaults where unset.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE %s: %w", path, err)
		}
	}

	shutdownTimeout, err := parsePositiveDuration(v, "SHUTDOWN_TIMEOUT")
	if err != nil {
		return nil, err
	}
	httpTimeout, err := parsePositiveDuration(v, "HTTP_TIMEOUT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:       strings.ToLower(v.GetString("LOG_FORMAT")),
		ShutdownTimeout: shutdownTimeout,
		HTTPTimeout:     httpTimeout,

		Initialization: v.GetBool("DWH_INITIALIZATION"),
		Debug:          v.GetBool("DEBUG"),
		LocalFiles:     v.GetBool("LOCAL_FILES"),
		Retries:        v.GetInt("N_RETRIES"),
		Schedule:       v.GetString("SCHEDULE"),

		PortalBaseURL: strings.TrimRight(v.GetString("PORTAL_BASE_URL"), "/"),
		SotaToken:     v.GetString("SOTA_TOKEN"),
		SotaUser:      v.GetString("SOTA_USER"),
		SotaPassword:  v.GetString("SOTA_PWD"),

		LocalDataDir: v.GetString("LOCAL_DATA_DIR"),
		StaticDir:    v.GetString("STATIC_DIR"),
		OutputDir:    v.GetString("OUTPUT_DIR"),

		VehicleFeedURL: v.GetString("VEHICLE_FEED_URL"),

		WeatherBaseURL:   v.GetString("WEATHER_BASE_URL"),
		WeatherTimezone:  v.GetString("WEATHER_TIMEZONE"),
		WeatherRateLimit: v.GetFloat64("WEATHER_RATE_LIMIT"),
		WeatherCacheSize: v.GetInt("WEATHER_CACHE_SIZE"),
		RedisAddr:        v.GetString("REDIS_ADDR"),

		WarehouseDriver: strings.ToLower(v.GetString("DWH_DRIVER")),
		WarehouseDSN:    v.GetString("DWH_DSN"),
		LoadBatchSize:   v.GetInt("LOAD_BATCH_SIZE"),

		KafkaBrokers: parseBrokers(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	if c.Retries < 1 {
		return errors.New("N_RETRIES must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid SCHEDULE %q: %w", c.Schedule, err)
	}
	if _, err := time.LoadLocation(c.WeatherTimezone); err != nil {
		return fmt.Errorf("invalid WEATHER_TIMEZONE %q: %w", c.WeatherTimezone, err)
	}
	if c.WeatherRateLimit <= 0 {
		return errors.New("WEATHER_RATE_LIMIT must be positive")
	}
	if c.WeatherCacheSize < 1 {
		return errors.New("WEATHER_CACHE_SIZE must be positive")
	}
	switch c.WarehouseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DWH_DRIVER %q: want postgres or sqlite", c.WarehouseDriver)
	}
	if !c.Debug && c.WarehouseDSN == "" {
		return errors.New("DWH_DSN is required unless DEBUG is set")
	}
	if c.LoadBatchSize < 1 || c.LoadBatchSize > 10000 {
		return errors.New("LOAD_BATCH_SIZE must be between 1 and 10000")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// PublishEnabled reports whether load notifications should be sent.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v.GetString(key))
	}
	return d, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
