package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "mobcal/internal/log"
	"mobcal/internal/model"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultCatalogue    = "./catalogue.yaml"
	defaultCacheDir     = "./var/catalogue-cache"
	defaultRefresh      = "*/15 * * * *"
	defaultURLTemplate  = "/mobs/{id}.html"
	defaultCalendarName = "Mob Sessions"
	defaultLogLevel     = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and feed.
	Listen string `yaml:"listen" json:"listen"`

	// Catalogue is a local path or an http(s) URL of the activity catalogue.
	Catalogue string `yaml:"catalogue" json:"catalogue"`

	// CacheDir stores the last good body of remote catalogues.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is a standard 5-field cron schedule (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BackfillDays and HorizonDays size the evaluation window around now.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`

	// URLTemplate builds occurrence links; "{id}" is the activity ID.
	URLTemplate string `yaml:"url_template" json:"url_template"`

	// CalendarName is the X-WR-CALNAME of the iCalendar feed.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// Workers bounds concurrent entry evaluation; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Catalogue:    defaultCatalogue,
		CacheDir:     defaultCacheDir,
		RefreshCron:  defaultRefresh,
		BackfillDays: model.DefaultBackfillDays,
		HorizonDays:  model.DefaultHorizonDays,
		URLTemplate:  defaultURLTemplate,
		CalendarName: defaultCalendarName,
		LogLevel:     defaultLogLevel,
	}
}

// Normalize fills in missing or zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Catalogue == "" {
		c.Catalogue = defaultCatalogue
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.BackfillDays <= 0 {
		c.BackfillDays = model.DefaultBackfillDays
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = model.DefaultHorizonDays
	}
	if c.URLTemplate == "" {
		c.URLTemplate = defaultURLTemplate
	}
	if c.CalendarName == "" {
		c.CalendarName = defaultCalendarName
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	c.LogLevel = strings.ToLower(string(appLog.ParseLevel(c.LogLevel)))
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written with 0600
// permissions and returned. Otherwise the file is decoded, normalized and
// validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller may still run with the defaults.
				return cfg, err
			}
			appLog.Info("config created with defaults", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".mobcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
