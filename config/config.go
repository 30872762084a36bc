package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrMissingConfig is returned when a required setting is absent
var ErrMissingConfig = errors.New("missing configuration")

// Database providers
const (
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"
)

// Cache providers
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheMongo  = "mongo"
	CacheNone   = "none"
)

// Config is built once at startup and passed to every component
type Config struct {
	Port        string         `yaml:"port"`
	Environment string         `yaml:"environment"`
	LogLevel    string         `yaml:"log_level"`
	CORSOrigins []string       `yaml:"cors_origins"`
	Database    DatabaseConfig `yaml:"database"`
	Builder     BuilderConfig  `yaml:"builder"`
	Schedule    ScheduleConfig `yaml:"schedule"`
	Cache       CacheConfig    `yaml:"cache"`
}

// DatabaseConfig selects and tunes the relational store
type DatabaseConfig struct {
	Provider        string        `yaml:"provider"`
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// BuilderConfig tunes the moving-average batch job
type BuilderConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	Pause        time.Duration `yaml:"pause"`
	Concurrency  int           `yaml:"concurrency"`
	HistoryLimit int           `yaml:"history_limit"`
	BackfillDays int           `yaml:"backfill_days"`
}

// ScheduleConfig controls the nightly job
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DailyAt  string `yaml:"daily_at"`
	Timezone string `yaml:"timezone"`
}

// CacheConfig selects the response cache backend
type CacheConfig struct {
	Provider      string        `yaml:"provider"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
}

// Default returns the configuration used when nothing overrides a setting
func Default() *Config {
	return &Config{
		Port:        "8080",
		Environment: "development",
		LogLevel:    "info",
		CORSOrigins: []string{"*"},
		Database: DatabaseConfig{
			Provider:        ProviderPostgres,
			Port:            "5432",
			SSLMode:         "require",
			SQLitePath:      "screener.db",
			MaxIdleConns:    10,
			MaxOpenConns:    25,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Builder: BuilderConfig{
			BatchSize:    50,
			Pause:        100 * time.Millisecond,
			Concurrency:  1,
			HistoryLimit: 220,
			BackfillDays: 30,
		},
		Schedule: ScheduleConfig{
			Enabled:  true,
			DailyAt:  "22:30",
			Timezone: "America/New_York",
		},
		Cache: CacheConfig{
			Provider:      CacheMemory,
			TTL:           24 * time.Hour,
			RedisAddr:     "localhost:6379",
			MongoDatabase: "nasdaq_screener",
		},
	}
}

// LoadConfig loads the optional YAML file named by CONFIG_PATH, then .env,
// then environment variables, and validates the result.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}

	db := &c.Database
	db.Provider = getEnv("DB_PROVIDER", db.Provider)
	db.URL = getEnv("DATABASE_URL", db.URL)
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnv("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Name = getEnv("DB_NAME", db.Name)
	db.SSLMode = getEnv("DB_SSLMODE", db.SSLMode)
	db.SQLitePath = getEnv("SQLITE_PATH", db.SQLitePath)
	db.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", db.MaxIdleConns)
	db.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", db.MaxOpenConns)
	db.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", db.ConnMaxLifetime)
	db.ConnMaxIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", db.ConnMaxIdleTime)

	b := &c.Builder
	b.BatchSize = getEnvInt("MA_BATCH_SIZE", b.BatchSize)
	b.Pause = getEnvDuration("MA_PAUSE", b.Pause)
	b.Concurrency = getEnvInt("MA_CONCURRENCY", b.Concurrency)
	b.HistoryLimit = getEnvInt("MA_HISTORY_LIMIT", b.HistoryLimit)
	b.BackfillDays = getEnvInt("MA_BACKFILL_DAYS", b.BackfillDays)

	s := &c.Schedule
	s.Enabled = getEnvBool("SCHEDULE_ENABLED", s.Enabled)
	s.DailyAt = getEnv("SCHEDULE_DAILY_AT", s.DailyAt)
	s.Timezone = getEnv("SCHEDULE_TIMEZONE", s.Timezone)

	cc := &c.Cache
	cc.Provider = getEnv("CACHE_PROVIDER", cc.Provider)
	cc.TTL = getEnvDuration("CACHE_TTL", cc.TTL)
	cc.RedisAddr = getEnv("REDIS_ADDR", cc.RedisAddr)
	cc.RedisPassword = getEnv("REDIS_PASSWORD", cc.RedisPassword)
	cc.RedisDB = getEnvInt("REDIS_DB", cc.RedisDB)
	cc.MongoURI = getEnv("MONGODB_URI", cc.MongoURI)
	cc.MongoDatabase = getEnv("MONGODB_DATABASE", cc.MongoDatabase)
}

// Validate fails fast on missing credentials or nonsensical settings
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Provider {
	case ProviderPostgres:
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "") {
			return fmt.Errorf("%w: DATABASE_URL or DB_HOST, DB_USER and DB_NAME must be set", ErrMissingConfig)
		}
	case ProviderSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH must be set", ErrMissingConfig)
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown database provider %q", c.Database.Provider))
	}

	switch c.Cache.Provider {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("%w: REDIS_ADDR must be set for the redis cache", ErrMissingConfig)
		}
	case CacheMongo:
		if c.Cache.MongoURI == "" {
			return fmt.Errorf("%w: MONGODB_URI must be set for the mongo cache", ErrMissingConfig)
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown cache provider %q", c.Cache.Provider))
	}

	if c.Builder.BatchSize <= 0 {
		problems = append(problems, "builder batch size must be positive")
	}
	if c.Builder.Concurrency <= 0 {
		problems = append(problems, "builder concurrency must be positive")
	}
	if c.Builder.HistoryLimit < 200 {
		problems = append(problems, "builder history limit must be at least 200")
	}
	if c.Builder.Pause < 0 {
		problems = append(problems, "builder pause must not be negative")
	}
	if c.Builder.BackfillDays <= 0 {
		problems = append(problems, "builder backfill days must be positive")
	}
	if _, err := time.Parse("15:04", c.Schedule.DailyAt); err != nil {
		problems = append(problems, fmt.Sprintf("schedule daily_at %q is not HH:MM", c.Schedule.DailyAt))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN builds the postgres connection string
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// InitDB opens the configured database, applies pool settings and verifies the connection
func InitDB(cfg *Config, log *logrus.Logger) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.IsProduction() {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch cfg.Database.Provider {
	case ProviderSQLite:
		log.Infof("Opening SQLite database: %s", cfg.Database.SQLitePath)
		dialector = sqlite.Open(cfg.Database.SQLitePath)
	default:
		// Log connection info (masked for security)
		log.WithFields(logrus.Fields{
			"host":   maskHost(cfg.Database.Host),
			"port":   cfg.Database.Port,
			"user":   cfg.Database.User,
			"dbname": cfg.Database.Name,
		}).Info("Connecting to database")
		dialector = postgres.Open(cfg.Database.DSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("Database connection verified successfully")
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("150ms") or bare milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
