package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_PATH", "PORT", "ENVIRONMENT", "LOG_LEVEL", "CORS_ORIGINS",
		"DB_PROVIDER", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "SQLITE_PATH",
		"MA_BATCH_SIZE", "MA_PAUSE", "MA_CONCURRENCY", "MA_HISTORY_LIMIT", "MA_BACKFILL_DAYS",
		"SCHEDULE_ENABLED", "SCHEDULE_DAILY_AT", "SCHEDULE_TIMEZONE",
		"CACHE_PROVIDER", "CACHE_TTL", "REDIS_ADDR", "MONGODB_URI",
	} {
		t.Setenv(key, "")
	}
	// keep a stray .env in the working directory out of the test
	t.Chdir(t.TempDir())
}

func TestLoadConfigMissingDatabase(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig()
	if !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("LoadConfig error = %v, want ErrMissingConfig", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/screener")
	t.Setenv("MA_BATCH_SIZE", "25")
	t.Setenv("MA_PAUSE", "250")
	t.Setenv("CACHE_TTL", "2h")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Builder.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.Builder.BatchSize)
	}
	if cfg.Builder.Pause != 250*time.Millisecond {
		t.Errorf("Pause = %v, want 250ms", cfg.Builder.Pause)
	}
	if cfg.Cache.TTL != 2*time.Hour {
		t.Errorf("TTL = %v, want 2h", cfg.Cache.TTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.Database.DSN() != "postgres://u:p@localhost:5432/screener" {
		t.Errorf("DSN = %s", cfg.Database.DSN())
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  provider: sqlite
  sqlite_path: /tmp/screener.db
builder:
  batch_size: 10
  pause: 5ms
cache:
  provider: none
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("MA_BATCH_SIZE", "12")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Provider != ProviderSQLite {
		t.Errorf("Provider = %s, want sqlite", cfg.Database.Provider)
	}
	if cfg.Builder.BatchSize != 12 {
		t.Errorf("BatchSize = %d, want env override 12", cfg.Builder.BatchSize)
	}
	if cfg.Builder.Pause != 5*time.Millisecond {
		t.Errorf("Pause = %v, want 5ms", cfg.Builder.Pause)
	}
	if cfg.Builder.HistoryLimit != 220 {
		t.Errorf("HistoryLimit = %d, want default 220", cfg.Builder.HistoryLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		missing bool
		wantErr bool
	}{
		{"valid sqlite", func(c *Config) { c.Database.Provider = ProviderSQLite }, false, false},
		{"redis without addr", func(c *Config) {
			c.Database.Provider = ProviderSQLite
			c.Cache.Provider = CacheRedis
			c.Cache.RedisAddr = ""
		}, true, true},
		{"mongo without uri", func(c *Config) {
			c.Database.Provider = ProviderSQLite
			c.Cache.Provider = CacheMongo
		}, true, true},
		{"bad schedule", func(c *Config) {
			c.Database.Provider = ProviderSQLite
			c.Schedule.DailyAt = "late"
		}, false, true},
		{"short history", func(c *Config) {
			c.Database.Provider = ProviderSQLite
			c.Builder.HistoryLimit = 150
		}, false, true},
		{"unknown provider", func(c *Config) { c.Database.Provider = "oracle" }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrMissingConfig) != tt.missing {
				t.Errorf("errors.Is(ErrMissingConfig) = %v, want %v", !tt.missing, tt.missing)
			}
		})
	}
}

func TestMaskHost(t *testing.T) {
	if got := maskHost("db"); got != "***" {
		t.Errorf("maskHost(db) = %s", got)
	}
	if got := maskHost("localhost"); got != "loc***" {
		t.Errorf("maskHost(localhost) = %s", got)
	}
}
