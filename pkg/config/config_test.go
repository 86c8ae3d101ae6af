package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Storage.Backend)
	}
	if got := cfg.Chat.GenerationTimeout(); got != 3*time.Second {
		t.Errorf("expected 3s generation timeout, got %v", got)
	}
	if got := cfg.Chat.ModelCacheTTL(); got != time.Hour {
		t.Errorf("expected 1h model cache ttl, got %v", got)
	}
	if cfg.Upload.MaxPixels != 40_000_000 {
		t.Errorf("expected 40MP pixel cap, got %d", cfg.Upload.MaxPixels)
	}
	if cfg.Upload.MaxImages != 50 {
		t.Errorf("expected 50 max images, got %d", cfg.Upload.MaxImages)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development environment by default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGRODRONE_CHAT_GENERATIONTIMEOUTMS", "1500")
	t.Setenv("AGRODRONE_LLM_PROVIDER", "gemini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Chat.GenerationTimeout(); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", got)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected gemini provider, got %q", cfg.LLM.Provider)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage: StorageConfig{Backend: "sqlite"},
			LLM:     LLMConfig{Provider: "openai"},
			Chat:    ChatConfig{GenerationTimeoutMs: 3000, MaxResponseChars: 600},
			Upload:  UploadConfig{MaxImages: 10, MaxPixels: 1000},
			Auth:    AuthConfig{JWTSecret: "s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mongo" }, true},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "t5" }, true},
		{"zero timeout", func(c *Config) { c.Chat.GenerationTimeoutMs = 0 }, true},
		{"zero max chars", func(c *Config) { c.Chat.MaxResponseChars = 0 }, true},
		{"zero max images", func(c *Config) { c.Upload.MaxImages = 0 }, true},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"zero max pixels", func(c *Config) { c.Upload.MaxPixels = 0 }, true},
		{"default secret in development", func(c *Config) { c.Auth.JWTSecret = DefaultJWTSecret }, false},
		{"default secret in production", func(c *Config) {
			c.Auth.JWTSecret = DefaultJWTSecret
			c.Server.Environment = "production"
		}, true},
		{"custom secret in production", func(c *Config) { c.Server.Environment = "production" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGRODRONE_SERVER_ENVIRONMENT", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected default jwt secret to be rejected in production")
	}

	t.Setenv("AGRODRONE_AUTH_JWTSECRET", "a-real-secret")
	if _, err := Load(); err != nil {
		t.Fatalf("Load failed with explicit secret: %v", err)
	}
}
