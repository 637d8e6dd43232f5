package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"city-stats-platform/internal/roster"
	"city-stats-platform/internal/sources"
	"city-stats-platform/pkg/database"
)

var validate = validator.New()

// Config holds the application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sources  SourcesConfig  `yaml:"sources"`
}

// DatabaseConfig selects and tunes the store
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" validate:"oneof=sqlite3 postgres"`
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"gte=0,lte=65535"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" validate:"gte=0"`
}

// ServerConfig configures the read API
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error fatal"`
}

// PipelineConfig configures batch runs
type PipelineConfig struct {
	BatchSize        int           `yaml:"batch_size" validate:"min=1"`
	ProgressFile     string        `yaml:"progress_file" validate:"required"`
	ReportFile       string        `yaml:"report_file"`
	ScheduleInterval time.Duration `yaml:"schedule_interval" validate:"gte=0"`
	RunTimeout       time.Duration `yaml:"run_timeout" validate:"gte=0"`
	MinPopulation    int           `yaml:"min_population" validate:"gte=0"`
	MetadataFallback bool          `yaml:"metadata_fallback"`
}

// SourcesConfig holds one section per external provider
type SourcesConfig struct {
	OpenWeather ProviderSettings `yaml:"openweather"`
	OpenAQ      ProviderSettings `yaml:"openaq"`
	GeoDB       ProviderSettings `yaml:"geodb"`
}

// ProviderSettings configures a single provider adapter
type ProviderSettings struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          database.DriverSQLite,
			DSN:             "city_stats.db",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "city_stats",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Pipeline: PipelineConfig{
			BatchSize:        roster.DefaultBatchSize,
			ProgressFile:     "progress.json",
			ReportFile:       "city_stats_results.txt",
			ScheduleInterval: 15 * time.Minute,
			RunTimeout:       10 * time.Minute,
			MinPopulation:    100000,
		},
		Sources: SourcesConfig{
			OpenWeather: ProviderSettings{BaseURL: sources.DefaultOpenWeatherURL, Timeout: sources.DefaultTimeout, MaxRetries: 3},
			OpenAQ:      ProviderSettings{BaseURL: sources.DefaultOpenAQURL, Timeout: sources.DefaultTimeout, MaxRetries: 3},
			GeoDB:       ProviderSettings{BaseURL: sources.DefaultGeoDBURL, Timeout: sources.DefaultTimeout, MaxRetries: 3},
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// an optional .env file and finally the process environment
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// StoreConfig converts the database section into connection settings
func (c *Config) StoreConfig() *database.Config {
	d := c.Database
	return &database.Config{
		Driver:          d.Driver,
		DSN:             d.DSN,
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// ProviderConfig converts a provider section into adapter settings
func (p ProviderSettings) ProviderConfig() sources.ProviderConfig {
	return sources.ProviderConfig{
		APIKey:     p.APIKey,
		BaseURL:    p.BaseURL,
		Timeout:    p.Timeout,
		MaxRetries: p.MaxRetries,
	}
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Pipeline.ProgressFile, "PROGRESS_FILE")
	setString(&c.Pipeline.ReportFile, "REPORT_FILE")

	setString(&c.Sources.OpenWeather.APIKey, "OPENWEATHER_API_KEY")
	setString(&c.Sources.OpenWeather.BaseURL, "OPENWEATHER_BASE_URL")
	setString(&c.Sources.OpenAQ.APIKey, "OPENAQ_API_KEY")
	setString(&c.Sources.OpenAQ.BaseURL, "OPENAQ_BASE_URL")
	setString(&c.Sources.GeoDB.APIKey, "GEODB_API_KEY")
	setString(&c.Sources.GeoDB.BaseURL, "GEODB_BASE_URL")

	var errs []error
	errs = append(errs,
		setInt(&c.Database.Port, "DB_PORT"),
		setInt(&c.Server.Port, "SERVER_PORT"),
		setInt(&c.Pipeline.BatchSize, "BATCH_SIZE"),
		setInt(&c.Pipeline.MinPopulation, "MIN_POPULATION"),
		setDuration(&c.Pipeline.ScheduleInterval, "SCHEDULE_INTERVAL"),
		setDuration(&c.Pipeline.RunTimeout, "RUN_TIMEOUT"),
		setBool(&c.Pipeline.MetadataFallback, "METADATA_FALLBACK"),
	)

	var timeout time.Duration
	if err := setDuration(&timeout, "SOURCE_TIMEOUT"); err != nil {
		errs = append(errs, err)
	} else if timeout > 0 {
		c.Sources.OpenWeather.Timeout = timeout
		c.Sources.OpenAQ.Timeout = timeout
		c.Sources.GeoDB.Timeout = timeout
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}
