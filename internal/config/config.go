// Package config loads the YAML configuration and applies environment
// overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type Engine struct {
	FetchTimeoutSec int `yaml:"fetch_timeout_sec"`
	DeadlineSec     int `yaml:"deadline_sec"`
	Concurrency     int `yaml:"concurrency"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Storage struct {
	Dir            string `yaml:"dir"`
	LiveBackend    string `yaml:"live_backend"`    // sqlite | redis | memory
	HistoryBackend string `yaml:"history_backend"` // sqlite | postgres
	Redis          Redis  `yaml:"redis"`
	PostgresDSN    string `yaml:"postgres_dsn"`
}

type Refresh struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	Concurrency     int  `yaml:"concurrency"`
}

type Log struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	Output     string `yaml:"output"` // stdout | file | both
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Fetcher toggles one upstream source. MaxRequestsPerMinute takes
// precedence over MinIntervalMS when both are set.
type Fetcher struct {
	Enabled              bool   `yaml:"enabled"`
	URL                  string `yaml:"url,omitempty"`
	MinIntervalMS        int    `yaml:"min_interval_ms"`
	MaxRequestsPerMinute int    `yaml:"max_requests_per_minute"`
	Burst                int    `yaml:"burst"`
}

func (f Fetcher) MinInterval() time.Duration {
	return time.Duration(f.MinIntervalMS) * time.Millisecond
}

type BancoPiano struct {
	Fetcher     `yaml:",inline"`
	TableTTLSec int `yaml:"table_ttl_sec"`
}

type Fetchers struct {
	Yahoo      Fetcher    `yaml:"yahoo"`
	Data912    Fetcher    `yaml:"data912"`
	DolarAPI   Fetcher    `yaml:"dolarapi"`
	BancoPiano BancoPiano `yaml:"bancopiano"`
	Dummy      Fetcher    `yaml:"dummy"`
}

type Config struct {
	LockMinutes int      `yaml:"lock_minutes"`
	Server      Server   `yaml:"server"`
	Engine      Engine   `yaml:"engine"`
	Storage     Storage  `yaml:"storage"`
	Refresh     Refresh  `yaml:"refresh"`
	Log         Log      `yaml:"log"`
	Fetchers    Fetchers `yaml:"fetchers"`
}

func Default() Config {
	return Config{
		LockMinutes: 15,
		Server:      Server{Host: "127.0.0.1", Port: 8000, RequestTimeoutSec: 15},
		Engine:      Engine{FetchTimeoutSec: 10, DeadlineSec: 15, Concurrency: 4},
		Storage: Storage{
			Dir:            "./data",
			LiveBackend:    "sqlite",
			HistoryBackend: "sqlite",
			Redis:          Redis{Addr: "127.0.0.1:6379", Prefix: "pricecache"},
		},
		Refresh: Refresh{Enabled: false, IntervalMinutes: 15, Concurrency: 4},
		Log: Log{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePath:   "./logs/pricecache.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Fetchers: Fetchers{
			Yahoo:    Fetcher{Enabled: true, URL: "https://query1.finance.yahoo.com", MaxRequestsPerMinute: 60, Burst: 5},
			Data912:  Fetcher{Enabled: true, URL: "https://data912.com/live/arg_bonds"},
			DolarAPI: Fetcher{Enabled: true, URL: "https://dolarapi.com/v1/dolares/bolsa"},
			BancoPiano: BancoPiano{
				Fetcher:     Fetcher{Enabled: true, URL: "https://www.bancopiano.com.ar/Inversiones/Cotizaciones/Bonos/", MinIntervalMS: 1000},
				TableTTLSec: 300,
			},
			Dummy: Fetcher{Enabled: false},
		},
	}
}

// LockDuration is how long a cached price is trusted.
func (c Config) LockDuration() time.Duration {
	return time.Duration(c.LockMinutes) * time.Minute
}

// Load reads YAML config from path. If path is empty, config.yaml in the
// working directory is tried. A missing file yields defaults. Environment
// variables are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// YAML encodes c in the file format Load reads.
func (c Config) YAML() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return b, nil
}

// Save writes cfg as YAML to path.
func (c Config) Save(path string) error {
	b, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.LockMinutes < 0 {
		errs = append(errs, fmt.Errorf("lock_minutes must be >= 0, got %d", c.LockMinutes))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Engine.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("engine.concurrency must be >= 1, got %d", c.Engine.Concurrency))
	}
	if c.Engine.FetchTimeoutSec < 1 || c.Engine.DeadlineSec < 1 {
		errs = append(errs, errors.New("engine timeouts must be >= 1s"))
	}
	switch c.Storage.LiveBackend {
	case "sqlite", "memory":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.live_backend %q", c.Storage.LiveBackend))
	}
	switch c.Storage.HistoryBackend {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.history_backend %q", c.Storage.HistoryBackend))
	}
	if c.Refresh.Enabled && c.Refresh.IntervalMinutes < 1 {
		errs = append(errs, errors.New("refresh.interval_minutes must be >= 1"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if x, ok := envInt("PORT"); ok && x > 0 {
		cfg.Server.Port = x
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Server.RequestTimeoutSec = x
	}
	if x, ok := envInt("LOCK_MINUTES"); ok && x >= 0 {
		cfg.LockMinutes = x
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("LIVE_BACKEND"); v != "" {
		cfg.Storage.LiveBackend = strings.ToLower(v)
	}
	if v := os.Getenv("HISTORY_BACKEND"); v != "" {
		cfg.Storage.HistoryBackend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v, ok := envBool("REFRESH_ENABLED"); ok {
		cfg.Refresh.Enabled = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v, ok := envBool("DUMMY_FETCHER"); ok {
		cfg.Fetchers.Dummy.Enabled = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return x, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}
