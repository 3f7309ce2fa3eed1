package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"Pace/pkg/util"
)

const (
	ProviderClickHouse = "clickhouse"
	ProviderHTTP       = "http"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"1s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Dashboard struct {
		DailyStepGoal    int    `yaml:"daily_step_goal" default:"8000"`
		DistanceUnit     string `yaml:"distance_unit" default:"metric"`
		WindowDays       int    `yaml:"window_days" default:"7"`
		Timezone         string `yaml:"timezone" default:"Local"`
		CancelSuperseded bool   `yaml:"cancel_superseded"`
	} `yaml:"dashboard"`
	Provider struct {
		Type     string        `yaml:"type" default:"clickhouse"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"10m"`
	} `yaml:"provider"`
	HealthAPI struct {
		BaseURL string        `yaml:"base_url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"health_api"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pace"`
		Table            string        `yaml:"table" default:"step_samples"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		SamplesTopic   string   `yaml:"samples_topic"`
		SnapshotsTopic string   `yaml:"snapshots_topic"`
		LogsTopic      string   `yaml:"logs_topic"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"gzip"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"pace-ingest"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
		Pipeline struct {
			BufferSize  int  `yaml:"buffer_size" default:"64"`
			SettledOnly bool `yaml:"settled_only" default:"true"`
		} `yaml:"pipeline"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"pace"`
		L1TTL    time.Duration `yaml:"l1_ttl" default:"1m"`
	} `yaml:"redis"`
	RateLimit struct {
		RefreshBurst  float64 `yaml:"refresh_burst" default:"5"`
		RefreshPerSec float64 `yaml:"refresh_per_sec" default:"1"`
	} `yaml:"ratelimit"`
}

// Default returns a config populated from struct defaults only.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PACE_PROVIDER"); v != "" {
		c.Provider.Type = v
	}
	if v := os.Getenv("PACE_TIMEZONE"); v != "" {
		c.Dashboard.Timezone = v
	}
	if v := os.Getenv("HEALTH_API_URL"); v != "" {
		c.HealthAPI.BaseURL = v
	}
	if v := os.Getenv("HEALTH_API_TOKEN"); v != "" {
		c.HealthAPI.Token = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Provider.Type {
	case ProviderClickHouse:
	case ProviderHTTP:
		if c.HealthAPI.BaseURL == "" {
			return fmt.Errorf("health_api.base_url is required for provider type 'http'")
		}
	default:
		return fmt.Errorf("provider.type must be 'clickhouse' or 'http', got '%s'", c.Provider.Type)
	}
	if c.Dashboard.WindowDays < 1 {
		return fmt.Errorf("dashboard.window_days must be >= 1, got %d", c.Dashboard.WindowDays)
	}
	if c.Dashboard.DistanceUnit != "metric" && c.Dashboard.DistanceUnit != "imperial" {
		return fmt.Errorf("dashboard.distance_unit must be 'metric' or 'imperial', got '%s'", c.Dashboard.DistanceUnit)
	}
	if _, err := util.LoadLocation(c.Dashboard.Timezone); err != nil {
		return fmt.Errorf("dashboard.timezone: %w", err)
	}
	if (c.Kafka.SamplesTopic != "" || c.Kafka.SnapshotsTopic != "" || c.Kafka.LogsTopic != "") && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers are required when a kafka topic is configured")
	}
	return nil
}

// Location resolves the dashboard time zone.
func (c *Config) Location() *time.Location {
	loc, err := util.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// NeedsClickHouse reports whether any component reads or writes step samples in ClickHouse.
func (c *Config) NeedsClickHouse() bool {
	return c.Provider.Type == ProviderClickHouse || c.Kafka.SamplesTopic != ""
}
