package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the brief pipeline and its collaborators.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Research  ResearchConfig  `mapstructure:"research"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug             bool          `mapstructure:"debug"`
	LogLevel          string        `mapstructure:"log_level"`
	Listen            string        `mapstructure:"listen"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
}

// LLMConfig contains the language-model provider settings. The pipeline
// routes planning and synthesis to the primary model and the cheaper
// condensation/summarization calls to the secondary model.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	PrimaryModel   string        `mapstructure:"primary_model"`
	SecondaryModel string        `mapstructure:"secondary_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// ResearchConfig bounds the pipeline itself.
type ResearchConfig struct {
	MaxPerQuery            int           `mapstructure:"max_per_query"`
	MinSources             int           `mapstructure:"min_sources"`
	HistoryWindow          int           `mapstructure:"history_window"`
	RetryBudget            int           `mapstructure:"retry_budget"`
	MaxConcurrentFetches   int           `mapstructure:"max_concurrent_fetches"`
	MaxConcurrentSummaries int           `mapstructure:"max_concurrent_summaries"`
	FetchTimeout           time.Duration `mapstructure:"fetch_timeout"`
}

// SearchConfig contains web search settings.
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // serper or brave
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// FetchConfig contains content fetching settings.
type FetchConfig struct {
	Type     string        `mapstructure:"type"` // readability or chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TelemetryConfig contains telemetry and monitoring settings.
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Index    IndexConfig    `mapstructure:"index"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RedisConfig contains Redis connection settings (fetch cache + scheduler locks).
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// IndexConfig contains brief search-index settings.
type IndexConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DSN builds a Postgres connection string from either the URL or the parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// Addr returns the host:port address for Redis.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("briefly")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BRIEFLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.listen", ":10010")
	v.SetDefault("general.max_processing_time", "5m")

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.primary_model", "gpt-4o")
	v.SetDefault("llm.secondary_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.timeout", "90s")
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("research.max_per_query", 5)
	v.SetDefault("research.min_sources", 1)
	v.SetDefault("research.history_window", 3)
	v.SetDefault("research.retry_budget", 2)
	v.SetDefault("research.max_concurrent_fetches", 4)
	v.SetDefault("research.max_concurrent_summaries", 3)
	v.SetDefault("research.fetch_timeout", "30s")

	v.SetDefault("search.provider", "serper")
	v.SetDefault("search.timeout", "30s")

	v.SetDefault("fetch.type", "readability")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_chars", 12000)
	v.SetDefault("fetch.cache_ttl", "1h")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.periodic_logs", false)

	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", "5s")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", "5s")
	v.SetDefault("storage.index.enabled", false)
	v.SetDefault("storage.index.path", "./data/briefs.bleve")
}

// overrideFromEnv maps conventional environment variables onto config keys.
func overrideFromEnv(v *viper.Viper) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		v.Set("llm.api_key", key)
	}
	if key := os.Getenv("SERPER_API_KEY"); key != "" {
		v.Set("search.serper_api_key", key)
	}
	if key := os.Getenv("BRAVE_SEARCH_KEY"); key != "" {
		v.Set("search.brave_api_key", key)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		v.Set("storage.postgres.url", url)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		v.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("storage.redis.port", p)
		}
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		v.Set("storage.redis.password", pass)
	}
	if secret := os.Getenv("BRIEFLY_JWT_SECRET"); secret != "" {
		v.Set("general.jwt_secret", secret)
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Search.Provider {
	case "serper", "brave":
	default:
		return fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}
	switch cfg.Fetch.Type {
	case "readability", "chromedp":
	default:
		return fmt.Errorf("unknown fetcher type %q", cfg.Fetch.Type)
	}
	if cfg.Research.MinSources < 1 {
		return fmt.Errorf("research.min_sources must be at least 1")
	}
	if cfg.Research.MaxConcurrentSummaries < 1 {
		return fmt.Errorf("research.max_concurrent_summaries must be at least 1")
	}
	if cfg.Research.MaxConcurrentFetches < 1 {
		return fmt.Errorf("research.max_concurrent_fetches must be at least 1")
	}
	if cfg.Research.RetryBudget < 0 {
		return fmt.Errorf("research.retry_budget must not be negative")
	}
	return nil
}
