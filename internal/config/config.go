package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/viperadnan-git/playdl/internal/core/storage"
)

const EnvPrefix = "PLDL_"

type Config struct {
	Download  DownloadConfig  `koanf:"download"`
	Extractor ExtractorConfig `koanf:"extractor"`
	Disk      DiskConfig      `koanf:"disk"`
	Cache     CacheConfig     `koanf:"cache"`
	Sync      SyncConfig      `koanf:"sync"`
	Classify  ClassifyConfig  `koanf:"classify"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type DownloadConfig struct {
	OutDir          string `koanf:"out_dir"`
	MetaDir         string `koanf:"meta_dir"`
	Workers         int    `koanf:"workers"`
	MinDuration     string `koanf:"min_duration"`
	AllowEmpty      bool   `koanf:"allow_empty"`
	Sorted          bool   `koanf:"sorted"`
	Proxy           string `koanf:"proxy"`
	RetryAttempts   int    `koanf:"retry_attempts"`
	RetryWait       string `koanf:"retry_wait"`
	RetrySkipped    bool   `koanf:"retry_skipped"`
	SkipRetryDelay  string `koanf:"skip_retry_delay"`
	SkipRetryJitter string `koanf:"skip_retry_jitter"`
	RenameExisting  bool   `koanf:"rename_existing"`
	DryRun          bool   `koanf:"dry_run"`
}

type ExtractorConfig struct {
	Binary string   `koanf:"binary"`
	Opts   []string `koanf:"opts"`
	Audio  bool     `koanf:"audio"`
	FFmpeg string   `koanf:"ffmpeg"`
	// UpdateCmd runs once before any playlist is resolved.
	UpdateCmd []string `koanf:"update_cmd"`
}

type DiskConfig struct {
	MinFree      string `koanf:"min_free"`
	MaxWait      string `koanf:"max_wait"`
	PollInterval string `koanf:"poll_interval"`
}

type CacheConfig struct {
	Dir  string `koanf:"dir"`
	Move bool   `koanf:"move"`
}

type SyncConfig struct {
	Provider string `koanf:"provider"`
	Dest     string `koanf:"dest"`
	Binary   string `koanf:"binary"`
	Interval string `koanf:"interval"`
}

// ClassifyConfig adds error patterns ahead of the built-in tables.
type ClassifyConfig struct {
	Unavailable []string `koanf:"unavailable"`
	Transient   []string `koanf:"transient"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", configPath, err)
		}
	}

	// 3. Load env vars: PLDL_DOWNLOAD_OUT_DIR -> download.out_dir
	// Only the first underscore separates section and key.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return envKey(key), value
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(key string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", ".", 1)
}

// Validate checks the human formatted values parse.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"download.min_duration":      c.Download.MinDuration,
		"download.retry_wait":        c.Download.RetryWait,
		"download.skip_retry_delay":  c.Download.SkipRetryDelay,
		"download.skip_retry_jitter": c.Download.SkipRetryJitter,
		"disk.max_wait":              c.Disk.MaxWait,
		"disk.poll_interval":         c.Disk.PollInterval,
		"sync.interval":              c.Sync.Interval,
	} {
		if _, err := ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := ParseSize(c.Disk.MinFree); err != nil {
		return fmt.Errorf("disk.min_free: %w", err)
	}
	if c.Download.Workers < 0 {
		return fmt.Errorf("download.workers: must not be negative")
	}
	return nil
}

// ParseDuration parses a Go duration; empty means zero.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// ParseSize parses a byte size like "1GB" or "500 MiB"; empty means zero.
func ParseSize(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return humanize.ParseBytes(s)
}

// MustDuration is for values already checked by Validate.
func MustDuration(s string) time.Duration {
	d, _ := ParseDuration(s)
	return d
}

// Storage returns the sync destination settings.
func (s SyncConfig) Storage() storage.Settings {
	return storage.Settings{Provider: s.Provider, Dest: s.Dest, Binary: s.Binary}
}
