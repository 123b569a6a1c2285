package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/sheetsite/pkg/storage"
)

// Store backends
const (
	StoreSheet2DB = "sheet2db"
	StoreBolt     = "bolt"
	StoreMemory   = "memory"
)

// Config is the process configuration
type Config struct {
	Listen     string `yaml:"listen"`
	AdminToken string `yaml:"admin_token"`

	Store   StoreConfig   `yaml:"store"`
	Content ContentConfig `yaml:"content"`
	Signals SignalsConfig `yaml:"signals"`
	Log     LogConfig     `yaml:"log"`

	// LeadsPerMinute is the per-client limit on lead submissions
	LeadsPerMinute int `yaml:"leads_per_minute"`
}

// StoreConfig selects and configures the content store
type StoreConfig struct {
	Type         string        `yaml:"type"`
	BaseURL      string        `yaml:"base_url"`
	APIID        string        `yaml:"api_id"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	RequestDelay time.Duration `yaml:"request_delay"`
	DataDir      string        `yaml:"data_dir"`
}

// ContentConfig tunes page resolution
type ContentConfig struct {
	MockFallback bool          `yaml:"mock_fallback"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheSize    int           `yaml:"cache_size"`
}

// SignalsConfig tunes the signal agent
type SignalsConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func Default() Config {
	return Config{
		Listen: ":8080",
		Store: StoreConfig{
			Type:         StoreSheet2DB,
			BaseURL:      storage.DefaultSheet2DBURL,
			Timeout:      10 * time.Second,
			RequestDelay: time.Second,
			DataDir:      "data",
		},
		Content: ContentConfig{
			MockFallback: true,
			CacheTTL:     time.Minute,
			CacheSize:    256,
		},
		Signals: SignalsConfig{
			BatchSize:     10,
			FlushInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		LeadsPerMinute: 6,
	}
}

// Load reads path over the defaults, applies SHEETSITE_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that apply further
// overrides (command-line flags) before validating
func Read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("SHEETSITE_API_ID", &c.Store.APIID)
	str("SHEETSITE_BASE_URL", &c.Store.BaseURL)
	str("SHEETSITE_TOKEN", &c.Store.Token)
	str("SHEETSITE_STORE", &c.Store.Type)
	str("SHEETSITE_DATA_DIR", &c.Store.DataDir)
	str("SHEETSITE_ADMIN_TOKEN", &c.AdminToken)
	str("SHEETSITE_LISTEN", &c.Listen)
	str("SHEETSITE_LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("SHEETSITE_MOCK_FALLBACK"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SHEETSITE_MOCK_FALLBACK: %w", err)
		}
		c.Content.MockFallback = b
	}
	return nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Type {
	case StoreSheet2DB:
		if c.Store.APIID == "" {
			errs = append(errs, errors.New("store.api_id is required for the sheet2db store"))
		}
		if c.Store.BaseURL == "" {
			errs = append(errs, errors.New("store.base_url is required for the sheet2db store"))
		}
	case StoreBolt:
		if c.Store.DataDir == "" {
			errs = append(errs, errors.New("store.data_dir is required for the bolt store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store type %q", c.Store.Type))
	}

	if c.Store.RequestDelay < 0 {
		errs = append(errs, errors.New("store.request_delay must not be negative"))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("store.timeout must be positive"))
	}
	if c.Content.CacheTTL < 0 {
		errs = append(errs, errors.New("content.cache_ttl must not be negative"))
	}
	if c.Signals.BatchSize < 1 {
		errs = append(errs, errors.New("signals.batch_size must be at least 1"))
	}
	if c.Signals.FlushInterval <= 0 {
		errs = append(errs, errors.New("signals.flush_interval must be positive"))
	}
	if c.LeadsPerMinute < 1 {
		errs = append(errs, errors.New("leads_per_minute must be at least 1"))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}

	return errors.Join(errs...)
}

// OpenBackend creates the storage backend the configuration selects
func (c Config) OpenBackend() (storage.Backend, error) {
	switch c.Store.Type {
	case StoreSheet2DB:
		return storage.NewSheet2DB(storage.Sheet2DBConfig{
			BaseURL: c.Store.BaseURL,
			APIID:   c.Store.APIID,
			Token:   c.Store.Token,
			Timeout: c.Store.Timeout,
		})
	case StoreBolt:
		return storage.NewBoltBackend(c.Store.DataDir)
	case StoreMemory:
		return storage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", c.Store.Type)
	}
}
