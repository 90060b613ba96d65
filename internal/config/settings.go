package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Cache policies for the album-level download short-circuit.
const (
	// CachePolicyAny skips resolution and download when any page image of
	// the album is already on disk.
	CachePolicyAny = "any"

	// CachePolicyComplete always resolves the album and downloads whatever
	// pages are missing.
	CachePolicyComplete = "complete"
)

// Settings holds all configuration options.
//
// Settings is built once at startup and passed by pointer to every
// component constructor. Nothing reads configuration from globals.
type Settings struct {
	// Storage
	BaseDir     string `mapstructure:"base_dir" json:"base_dir" yaml:"base_dir"`
	HistoryPath string `mapstructure:"history_path" json:"history_path" yaml:"history_path"`
	CachePolicy string `mapstructure:"cache_policy" json:"cache_policy" yaml:"cache_policy"`

	// Remote host
	DomainList        []string `mapstructure:"domain_list" json:"domain_list" yaml:"domain_list"`
	UserAgent         string   `mapstructure:"user_agent" json:"user_agent" yaml:"user_agent"`
	ProxyURL          string   `mapstructure:"proxy_url" json:"proxy_url" yaml:"proxy_url"`
	ResolverCacheSize int      `mapstructure:"resolver_cache_size" json:"resolver_cache_size" yaml:"resolver_cache_size"`

	// Download settings
	RetryCount          int           `mapstructure:"retry_count" json:"retry_count" yaml:"retry_count"`
	RetryInitialBackoff time.Duration `mapstructure:"retry_initial_backoff" json:"retry_initial_backoff" yaml:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `mapstructure:"retry_max_backoff" json:"retry_max_backoff" yaml:"retry_max_backoff"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	MaxConnections      int           `mapstructure:"max_connections" json:"max_connections" yaml:"max_connections"`
	MaxConcurrentPages  int           `mapstructure:"max_concurrent_pages" json:"max_concurrent_pages" yaml:"max_concurrent_pages"`
	MaxRetryCount       int           `mapstructure:"max_retry_count" json:"max_retry_count" yaml:"max_retry_count"` // upper bound for per-request retry_count
	ProduceTimeout      time.Duration `mapstructure:"produce_timeout" json:"produce_timeout" yaml:"produce_timeout"`

	// Document settings
	PDFDPI float64 `mapstructure:"pdf_dpi" json:"pdf_dpi" yaml:"pdf_dpi"`

	Server  ServerSettings  `mapstructure:"server" json:"server" yaml:"server"`
	Logging LoggingSettings `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// ServerSettings holds the HTTP service options.
type ServerSettings struct {
	Host            string        `mapstructure:"host" json:"host" yaml:"host"`
	Port            int           `mapstructure:"port" json:"port" yaml:"port"`
	PublicURL       string        `mapstructure:"public_url" json:"public_url" yaml:"public_url"` // used to build download_url
	EnableCORS      bool          `mapstructure:"enable_cors" json:"enable_cors" yaml:"enable_cors"`
	Debug           bool          `mapstructure:"debug" json:"debug" yaml:"debug"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingSettings holds logger options.
type LoggingSettings struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"` // json, console
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		BaseDir:     filepath.Join("temp", "img"),
		HistoryPath: filepath.Join("temp", "albumpdf.db"),
		CachePolicy: CachePolicyAny,

		DomainList:        []string{"18comic.vip"},
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		ResolverCacheSize: 256,

		RetryCount:          3,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     10 * time.Second,
		RequestTimeout:      30 * time.Second,
		MaxConnections:      100,
		MaxConcurrentPages:  10,
		MaxRetryCount:       10,
		ProduceTimeout:      10 * time.Minute,

		PDFDPI: 100,

		Server: ServerSettings{
			Host:            "0.0.0.0",
			Port:            5000,
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads settings from a YAML or JSON file, then applies ALBUMPDF_*
// environment overrides (ALBUMPDF_SERVER_PORT overrides server.port).
//
// An empty path or a missing file yields the defaults plus environment.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	v.SetEnvPrefix("ALBUMPDF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("base_dir", d.BaseDir)
	v.SetDefault("history_path", d.HistoryPath)
	v.SetDefault("cache_policy", d.CachePolicy)
	v.SetDefault("domain_list", d.DomainList)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("proxy_url", d.ProxyURL)
	v.SetDefault("resolver_cache_size", d.ResolverCacheSize)
	v.SetDefault("retry_count", d.RetryCount)
	v.SetDefault("retry_initial_backoff", d.RetryInitialBackoff)
	v.SetDefault("retry_max_backoff", d.RetryMaxBackoff)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("max_connections", d.MaxConnections)
	v.SetDefault("max_concurrent_pages", d.MaxConcurrentPages)
	v.SetDefault("max_retry_count", d.MaxRetryCount)
	v.SetDefault("produce_timeout", d.ProduceTimeout)
	v.SetDefault("pdf_dpi", d.PDFDPI)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.public_url", d.Server.PublicURL)
	v.SetDefault("server.enable_cors", d.Server.EnableCORS)
	v.SetDefault("server.debug", d.Server.Debug)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate checks that the settings are usable.
func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.BaseDir) == "" {
		errs = append(errs, errors.New("base_dir must not be empty"))
	}
	if len(s.DomainList) == 0 {
		errs = append(errs, errors.New("domain_list must contain at least one host"))
	}
	if s.RetryCount < 1 {
		errs = append(errs, fmt.Errorf("retry_count must be >= 1, got %d", s.RetryCount))
	}
	if s.RetryInitialBackoff < 0 || s.RetryMaxBackoff < s.RetryInitialBackoff {
		errs = append(errs, fmt.Errorf("invalid retry backoff %s..%s", s.RetryInitialBackoff, s.RetryMaxBackoff))
	}
	if s.MaxRetryCount < s.RetryCount {
		errs = append(errs, fmt.Errorf("max_retry_count must be >= retry_count (%d), got %d", s.RetryCount, s.MaxRetryCount))
	}
	if s.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", s.RequestTimeout))
	}
	if s.ProduceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("produce_timeout must be positive, got %s", s.ProduceTimeout))
	}
	if s.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("max_connections must be >= 1, got %d", s.MaxConnections))
	}
	if s.MaxConcurrentPages < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent_pages must be >= 1, got %d", s.MaxConcurrentPages))
	}
	if s.PDFDPI <= 0 {
		errs = append(errs, fmt.Errorf("pdf_dpi must be positive, got %v", s.PDFDPI))
	}
	switch s.CachePolicy {
	case CachePolicyAny, CachePolicyComplete:
	default:
		errs = append(errs, fmt.Errorf("unknown cache_policy %q", s.CachePolicy))
	}
	return errors.Join(errs...)
}

// DocumentDir is where assembled documents are written.
func (s *Settings) DocumentDir() string {
	return s.BaseDir
}

// Addr returns the listen address for the HTTP service.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Server.Host, s.Server.Port)
}

// Save writes settings to a file. A .json extension produces JSON,
// anything else YAML.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
