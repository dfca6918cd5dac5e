// Package config loads the API configuration.
//
// Values are resolved in priority order:
//  1. Defaults
//  2. TOML file named by TODOLIST_CONFIG (optional)
//  3. Environment variables (a .env file in the working directory is loaded first)
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port      int             `toml:"port"`
	Store     string          `toml:"store"`
	Database  DatabaseConfig  `toml:"database"`
	JWT       JWTConfig       `toml:"jwt"`
	Log       LogConfig       `toml:"log"`
	Redis     RedisConfig     `toml:"redis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Alarm     AlarmConfig     `toml:"alarm"`
	CORS      CORSConfig      `toml:"cors"`

	// TrustedProxies lists the addresses or CIDR prefixes whose forwarding headers
	// (X-Forwarded-For, X-Real-IP) are believed. Empty means none.
	TrustedProxies []string `toml:"trusted_proxies"`
}

type DatabaseConfig struct {
	URL      string `toml:"url"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	Schema   string `toml:"schema"`
	SSLMode  string `toml:"sslmode"`

	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	LogLevel        string        `toml:"log_level"`
}

type JWTConfig struct {
	Secret string        `toml:"secret"`
	TTL    time.Duration `toml:"ttl"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type RateLimitConfig struct {
	AuthLimit  int           `toml:"auth_limit"`
	AuthWindow time.Duration `toml:"auth_window"`
}

type AlarmConfig struct {
	SweepInterval time.Duration `toml:"sweep_interval"`
	Horizon       time.Duration `toml:"horizon"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Port:  8080,
		Store: StorePostgres,
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			LogLevel:        "warn",
		},
		JWT: JWTConfig{TTL: 24 * time.Hour},
		Log: LogConfig{Level: "info", Format: "text"},
		RateLimit: RateLimitConfig{
			AuthLimit:  5,
			AuthWindow: time.Minute,
		},
		Alarm: AlarmConfig{
			SweepInterval: time.Minute,
			Horizon:       10 * time.Minute,
		},
		CORS: CORSConfig{AllowedOrigins: []string{"https://*", "http://*"}},
	}
}

// Load resolves the configuration from defaults, the optional TOML file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("TODOLIST_CONFIG"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	var errs []error

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: invalid integer %q", v))
		} else {
			cfg.Port = port
		}
	}
	if v := os.Getenv("STORE"); v != "" {
		cfg.Store = strings.ToLower(strings.TrimSpace(v))
	}

	// Connection variables keep the names the project was scaffolded with.
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Host, "BLUEPRINT_DB_HOST")
	setString(&cfg.Database.Port, "BLUEPRINT_DB_PORT")
	setString(&cfg.Database.Username, "BLUEPRINT_DB_USERNAME")
	setString(&cfg.Database.Password, "BLUEPRINT_DB_PASSWORD")
	setString(&cfg.Database.Database, "BLUEPRINT_DB_DATABASE")
	setString(&cfg.Database.Schema, "BLUEPRINT_DB_SCHEMA")
	setString(&cfg.Database.SSLMode, "BLUEPRINT_DB_SSLMODE")
	setString(&cfg.Database.LogLevel, "DB_LOG_LEVEL")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	errs = append(errs, setDuration(&cfg.JWT.TTL, "JWT_TTL"))

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	errs = append(errs, setInt(&cfg.Redis.DB, "REDIS_DB"))

	errs = append(errs, setInt(&cfg.RateLimit.AuthLimit, "AUTH_RATE_LIMIT"))
	errs = append(errs, setDuration(&cfg.RateLimit.AuthWindow, "AUTH_RATE_WINDOW"))

	errs = append(errs, setDuration(&cfg.Alarm.SweepInterval, "ALARM_SWEEP_INTERVAL"))
	errs = append(errs, setDuration(&cfg.Alarm.Horizon, "ALARM_HORIZON"))

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

// setDuration accepts Go duration strings ("90s") or a bare number of seconds.
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}
	*dst = d
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	switch c.Store {
	case StorePostgres:
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Database == "") {
			errs = append(errs, errors.New("database: DATABASE_URL or BLUEPRINT_DB_HOST and BLUEPRINT_DB_DATABASE are required"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt ttl must be positive"))
	}
	if c.RateLimit.AuthLimit <= 0 || c.RateLimit.AuthWindow <= 0 {
		errs = append(errs, errors.New("rate limit and window must be positive"))
	}
	if c.Alarm.SweepInterval <= 0 {
		errs = append(errs, errors.New("alarm sweep interval must be positive"))
	}
	if c.Alarm.Horizon < c.Alarm.SweepInterval {
		errs = append(errs, errors.New("alarm horizon must not be shorter than the sweep interval"))
	}
	for _, p := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			errs = append(errs, fmt.Errorf("trusted proxy %q is not an address or CIDR prefix", p))
		}
	}

	return errors.Join(errs...)
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.Username, d.Password, d.Database, d.Port, d.SSLMode)
	if d.Schema != "" {
		dsn += " search_path=" + d.Schema
	}
	return dsn
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
