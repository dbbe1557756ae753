package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the mindloop engine
type Config struct {
	General   GeneralConfig    `mapstructure:"general"`
	Server    ServerConfig     `mapstructure:"server"`
	LLM       LLMConfig        `mapstructure:"llm"`
	Pacing    PacingConfig     `mapstructure:"pacing"`
	Cycle     CycleConfig      `mapstructure:"cycle"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Events    EventsConfig     `mapstructure:"events"`
	Telemetry TelemetryConfig  `mapstructure:"telemetry"`
	Schedules []ScheduleConfig `mapstructure:"schedules"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	AllowOrigins      []string      `mapstructure:"allow_origins"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// LLMConfig describes the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Referer     string        `mapstructure:"referer"`
	Title       string        `mapstructure:"title"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Agent       RetryConfig   `mapstructure:"agent"`
	Coordinator RetryConfig   `mapstructure:"coordinator"`
}

// RetryConfig is a retry ladder: attempts and the first backoff delay.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

func (l LLMConfig) Normalize() LLMConfig {
	l.BaseURL = strings.TrimRight(strings.TrimSpace(l.BaseURL), "/")
	if l.BaseURL == "" {
		l.BaseURL = "https://openrouter.ai/api/v1"
	}
	if l.Title == "" {
		l.Title = "Mindloop"
	}
	if l.Timeout <= 0 {
		l.Timeout = 60 * time.Second
	}
	if l.Agent.MaxAttempts <= 0 {
		l.Agent.MaxAttempts = 3
	}
	if l.Agent.BaseDelay <= 0 {
		l.Agent.BaseDelay = 2 * time.Second
	}
	if l.Coordinator.MaxAttempts <= 0 {
		l.Coordinator.MaxAttempts = 5
	}
	if l.Coordinator.BaseDelay <= 0 {
		l.Coordinator.BaseDelay = 3 * time.Second
	}
	return l
}

func (l LLMConfig) Validate() error {
	if !strings.HasPrefix(l.BaseURL, "http://") && !strings.HasPrefix(l.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) url, got %q", l.BaseURL)
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// EventsConfig controls where orchestrator events are fanned out.
type EventsConfig struct {
	RedisStream  string `mapstructure:"redis_stream"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Backend   string         `mapstructure:"backend"` // file, redis, postgres, memory
	Namespace string         `mapstructure:"namespace"`
	Redis     RedisConfig    `mapstructure:"redis"`
	File      FileConfig     `mapstructure:"file"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "file", "memory":
		return nil
	case "redis":
		return s.Redis.Validate()
	case "postgres":
		return s.Postgres.Validate()
	default:
		return fmt.Errorf("storage.backend %q is not supported", s.Backend)
	}
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// FileConfig contains file storage settings
type FileConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns the connection string, preferring an explicit url.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, sslmode)
}

// LoadConfig loads config from file. An empty path searches the usual
// locations; a missing file is not an error and defaults plus MINDLOOP_* env
// variables apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("MINDLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM = cfg.LLM.Normalize()
	cfg.Pacing = cfg.Pacing.Normalize()
	cfg.Cycle = cfg.Cycle.Normalize()

	validators := []func() error{
		cfg.LLM.Validate,
		cfg.Pacing.Validate,
		cfg.Cycle.Validate,
		cfg.Storage.Validate,
		cfg.Telemetry.Validate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	for i, s := range cfg.Schedules {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("schedules[%d]: %w", i, err)
		}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.token_ttl", 24*time.Hour)
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.title", "Mindloop")
	// keys without a default are invisible to AutomaticEnv during Unmarshal
	v.SetDefault("llm.api_key", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.admin_password_hash", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("pacing.strategy", PacingJitter)
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.namespace", "mindloop")
	v.SetDefault("storage.file.data_dir", "./data")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("events.stream_max_len", 10000)
	v.SetDefault("cycle.max_rounds", DefaultMaxRounds)
	v.SetDefault("cycle.evaluate_completeness", true)
}
