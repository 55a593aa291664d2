package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // AGENT_TIMEZONE must resolve on hosts without zoneinfo
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Twitter  TwitterConfig
	LLM      LLMConfig
	Brand    BrandConfig
	Agent    AgentConfig
	Search   SearchConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig selects the primary store and the local fallback directory.
type DatabaseConfig struct {
	Driver      string // postgres or sqlite
	URL         string
	SQLitePath  string
	FallbackDir string
}

// TwitterConfig holds the OAuth 1.0a user credentials and app bearer token.
type TwitterConfig struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
}

// LLMConfig selects the text model provider.
type LLMConfig struct {
	Provider     string // openai or gemini
	OpenAIAPIKey string
	OpenAIModel  string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
	GeminiAPIKey string
	GeminiModel  string
}

// BrandConfig carries the identity strings injected into generated content.
type BrandConfig struct {
	Token        string
	Handle       string
	PlatformURL  string
	MarketHandle string
}

// AgentConfig controls the orchestrator loop.
type AgentConfig struct {
	Tick           time.Duration
	Timezone       string
	WeeklyCron     string
	KeywordReplies bool
	CatalogFile    string
}

// SearchConfig holds Google Custom Search credentials. Empty disables search.
type SearchConfig struct {
	GoogleAPIKey   string
	SearchEngineID string
}

// AuthConfig holds status API admin credentials.
type AuthConfig struct {
	JWTSecret     string
	AdminPassword string
	PasswordHash  string
	TokenDuration time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultDatabaseDriver = "sqlite"
	defaultSQLitePath     = "agent.db"
	defaultFallbackDir    = "data"

	defaultLLMProvider   = "openai"
	defaultOpenAIModel   = "gpt-4o"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultTemperature   = float32(0.7)
	defaultMaxTokens     = 1024
	defaultModelTimeout  = 120 * time.Second
	defaultTokenDuration = 24 * time.Hour

	defaultBrandToken        = "$EXMPLR"
	defaultBrandHandle       = "@exmplrai"
	defaultBrandPlatformURL  = "https://app.exmplr.io"
	defaultBrandMarketHandle = "@aixbt"

	defaultTick       = 60 * time.Second
	defaultTimezone   = "America/Chicago"
	defaultWeeklyCron = "0 15 * * 3"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DATABASE_DRIVER", defaultDatabaseDriver),
			URL:         os.Getenv("DATABASE_URL"),
			SQLitePath:  getEnv("SQLITE_PATH", defaultSQLitePath),
			FallbackDir: getEnv("FALLBACK_DIR", defaultFallbackDir),
		},
		Twitter: TwitterConfig{
			APIKey:            os.Getenv("TWITTER_API_KEY"),
			APISecret:         os.Getenv("TWITTER_API_SECRET"),
			AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
			BearerToken:       os.Getenv("TWITTER_BEARER_TOKEN"),
		},
		LLM: LLMConfig{
			Provider:     getEnv("LLM_PROVIDER", defaultLLMProvider),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:  getEnv("OPENAI_MODEL", defaultOpenAIModel),
			Temperature:  defaultTemperature,
			MaxTokens:    defaultMaxTokens,
			Timeout:      defaultModelTimeout,
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  getEnv("GEMINI_MODEL", defaultGeminiModel),
		},
		Brand: BrandConfig{
			Token:        getEnv("BRAND_TOKEN", defaultBrandToken),
			Handle:       getEnv("BRAND_HANDLE", defaultBrandHandle),
			PlatformURL:  strings.TrimRight(getEnv("BRAND_PLATFORM_URL", defaultBrandPlatformURL), "/"),
			MarketHandle: getEnv("BRAND_MARKET_HANDLE", defaultBrandMarketHandle),
		},
		Agent: AgentConfig{
			Tick:        defaultTick,
			Timezone:    getEnv("AGENT_TIMEZONE", defaultTimezone),
			WeeklyCron:  getEnv("WEEKLY_CRON", defaultWeeklyCron),
			CatalogFile: os.Getenv("AGENT_FEEDS_FILE"),
		},
		Search: SearchConfig{
			GoogleAPIKey:   os.Getenv("GOOGLE_API_KEY"),
			SearchEngineID: os.Getenv("SEARCH_ENGINE_ID"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("ADMIN_JWT_SECRET"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
			PasswordHash:  os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenDuration: defaultTokenDuration,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("invalid DATABASE_DRIVER: must be 'postgres' or 'sqlite'")
	}

	switch cfg.LLM.Provider {
	case "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("invalid LLM_PROVIDER: must be 'openai' or 'gemini'")
	}

	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 32)
		if err != nil || temp < 0 || temp > 2 {
			return Config{}, fmt.Errorf("invalid OPENAI_TEMPERATURE: must be between 0 and 2")
		}
		cfg.LLM.Temperature = float32(temp)
	}

	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid LLM_MAX_TOKENS: must be a non-negative integer")
		}
		cfg.LLM.MaxTokens = n
	}

	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS: %w", err)
		}
		cfg.LLM.Timeout = d
	}

	if v := os.Getenv("AGENT_TICK_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil || d == 0 {
			return Config{}, fmt.Errorf("invalid AGENT_TICK_SECONDS: must be a positive integer")
		}
		cfg.Agent.Tick = d
	}

	if v := os.Getenv("AGENT_KEYWORD_REPLIES"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AGENT_KEYWORD_REPLIES: %w", err)
		}
		cfg.Agent.KeywordReplies = enabled
	}

	if _, err := time.LoadLocation(cfg.Agent.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid AGENT_TIMEZONE: %w", err)
	}

	if v := os.Getenv("ADMIN_TOKEN_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_HOURS: must be a positive integer")
		}
		cfg.Auth.TokenDuration = time.Duration(hours) * time.Hour
	}

	return cfg, nil
}

// HasUserCredentials reports whether all four OAuth 1.0a values are present.
func (c TwitterConfig) HasUserCredentials() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
