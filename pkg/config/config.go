package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultJWTSecret is only accepted in development.
const DefaultJWTSecret = "change_me"

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	SQLite    SQLiteConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Chat      ChatConfig
	Auth      AuthConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Environment    string
}

type StorageConfig struct {
	Backend string // sqlite | postgres | memory
}

type SQLiteConfig struct {
	Path string
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	ReplyTTLSec int
}

type LLMConfig struct {
	Provider    string // openai | gemini
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	TopP        float32
	MaxTokens   int
	TimeoutSec  int
}

type ChatConfig struct {
	GenerationTimeoutMs int
	MaxResponseChars    int
	PromptTokenLimit    int
	ModelCacheTTLMin    int
}

type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	AccessTTLMin    int
	RefreshTTLHours int
}

type UploadConfig struct {
	Dir       string
	MaxImages int
	// MaxPixels caps width*height of a single decoded image.
	MaxPixels int
}

type RateLimitConfig struct {
	ChatPerMinute     int
	AnalysisPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/agrodrone")

	viper.SetEnvPrefix("AGRODRONE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks enumerated values and the timeouts the chat path relies on.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for the postgres backend")
	}

	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if c.Chat.GenerationTimeoutMs <= 0 {
		return fmt.Errorf("chat.generationTimeoutMs must be > 0")
	}
	if c.Chat.MaxResponseChars <= 0 {
		return fmt.Errorf("chat.maxResponseChars must be > 0")
	}
	if c.Upload.MaxImages <= 0 {
		return fmt.Errorf("upload.maxImages must be > 0")
	}
	if c.Upload.MaxPixels <= 0 {
		return fmt.Errorf("upload.maxPixels must be > 0")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret cannot be empty")
	}
	if c.Auth.JWTSecret == DefaultJWTSecret && !c.IsDevelopment() {
		return fmt.Errorf("auth.jwtSecret must be set outside development")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}

func (c ChatConfig) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutMs) * time.Millisecond
}

func (c ChatConfig) ModelCacheTTL() time.Duration {
	return time.Duration(c.ModelCacheTTLMin) * time.Minute
}

func (c RedisConfig) ReplyTTL() time.Duration {
	return time.Duration(c.ReplyTTLSec) * time.Second
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 100*1024*1024)
	viper.SetDefault("server.allowedOrigins", []string{"http://localhost:5173", "http://localhost:3000"})
	viper.SetDefault("server.environment", "development")

	viper.SetDefault("storage.backend", "sqlite")
	viper.SetDefault("sqlite.path", "./data/agrodrone.db")
	viper.SetDefault("postgres.dsn", "")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.replyTTLSec", 600)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.topP", 0.9)
	viper.SetDefault("llm.maxTokens", 120)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("chat.generationTimeoutMs", 3000)
	viper.SetDefault("chat.maxResponseChars", 600)
	viper.SetDefault("chat.promptTokenLimit", 512)
	viper.SetDefault("chat.modelCacheTTLMin", 60)

	viper.SetDefault("auth.jwtSecret", DefaultJWTSecret)
	viper.SetDefault("auth.issuer", "agrodrone")
	viper.SetDefault("auth.accessTTLMin", 60)
	viper.SetDefault("auth.refreshTTLHours", 24*7)

	viper.SetDefault("upload.dir", "./data/media")
	viper.SetDefault("upload.maxImages", 50)
	viper.SetDefault("upload.maxPixels", 40_000_000)

	viper.SetDefault("rateLimit.chatPerMinute", 30)
	viper.SetDefault("rateLimit.analysisPerMinute", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
