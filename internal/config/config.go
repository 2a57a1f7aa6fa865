// Package config loads ccmeter settings, plan limits and model pricing.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/theirongolddev/ccmeter/internal/logger"
)

// Config holds all ccmeter configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Quota      QuotaConfig      `toml:"quota"`
	Models     ModelsConfig     `toml:"models"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Index      IndexConfig      `toml:"index"`
	Appearance AppearanceConfig `toml:"appearance"`
	Pricing    PricingOverrides `toml:"pricing"`
}

// GeneralConfig holds log locations and defaults.
type GeneralConfig struct {
	Roots         []string `toml:"roots"`
	ClaudeDir     string   `toml:"claude_dir,omitempty"`
	DefaultPeriod string   `toml:"default_period"`
}

// QuotaConfig selects a plan and optionally overrides its limits.
type QuotaConfig struct {
	Plan        string                `toml:"plan,omitempty"`
	WindowHours int                   `toml:"window_hours"`
	Plans       map[string]PlanLimits `toml:"plans,omitempty"`
}

// ModelsConfig overrides per-model context capacity.
type ModelsConfig struct {
	ContextWindow map[string]int64 `toml:"context_window,omitempty"`
}

// DaemonConfig controls the background service.
type DaemonConfig struct {
	Addr            string      `toml:"addr"`
	RefreshInterval Duration    `toml:"refresh_interval"`
	Debounce        Duration    `toml:"debounce"`
	NotifyThreshold float64     `toml:"notify_threshold"`
	Retry           RetryConfig `toml:"retry"`
}

// RetryConfig is the backoff policy for failed refresh passes.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay"`
	Multiplier  float64  `toml:"multiplier"`
}

// IndexConfig bounds the in-memory event index and its on-disk copy.
type IndexConfig struct {
	MaxEvents int  `toml:"max_events"`
	UseCache  bool `toml:"use_cache"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// PricingOverrides allows user-defined pricing for specific models.
type PricingOverrides struct {
	Overrides map[string]ModelPricingOverride `toml:"overrides,omitempty"`
}

// ModelPricingOverride holds per-model pricing overrides.
type ModelPricingOverride struct {
	InputPerMTok        *float64 `toml:"input_per_mtok,omitempty"`
	OutputPerMTok       *float64 `toml:"output_per_mtok,omitempty"`
	CacheWrite5mPerMTok *float64 `toml:"cache_write_5m_per_mtok,omitempty"`
	CacheWrite1hPerMTok *float64 `toml:"cache_write_1h_per_mtok,omitempty"`
	CacheReadPerMTok    *float64 `toml:"cache_read_per_mtok,omitempty"`
}

// Duration is a time.Duration that reads and writes as "15s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := parseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultRoots returns the two directories Claude Code writes projects to.
func DefaultRoots() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".config", "claude", "projects"),
		filepath.Join(home, ".claude", "projects"),
	}
}

// DefaultClaudeDir returns ~/.claude.
func DefaultClaudeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Roots:         DefaultRoots(),
			DefaultPeriod: "week",
		},
		Quota: QuotaConfig{
			WindowHours: 5,
		},
		Daemon: DaemonConfig{
			Addr:            "127.0.0.1:8787",
			RefreshInterval: Duration{15 * time.Second},
			Debounce:        Duration{500 * time.Millisecond},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   Duration{time.Second},
				Multiplier:  2,
			},
		},
		Index: IndexConfig{
			MaxEvents: 5_000_000,
			UseCache:  true,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ccmeter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ccmeter")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
// A .env file beside it is loaded first, then CCMETER_* variables override.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("ignoring unreadable .env", "path", envPath, "error", err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-owned config path
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.normalize()
	ApplyPricingOverrides(cfg.Pricing)
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("CCMETER_PLAN"); v != "" {
		cfg.Quota.Plan = v
	}
	if v := os.Getenv("CCMETER_ROOTS"); v != "" {
		cfg.General.Roots = filepath.SplitList(v)
	}
	if v := os.Getenv("CCMETER_REFRESH_INTERVAL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("CCMETER_REFRESH_INTERVAL: %w", err)
		}
		cfg.Daemon.RefreshInterval = Duration{d}
	}
	return nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if len(c.General.Roots) == 0 {
		c.General.Roots = def.General.Roots
	}
	for i, r := range c.General.Roots {
		c.General.Roots[i] = expandHome(r)
	}
	if c.General.ClaudeDir == "" {
		c.General.ClaudeDir = DefaultClaudeDir()
	}
	c.General.ClaudeDir = expandHome(c.General.ClaudeDir)
	if c.Quota.WindowHours <= 0 {
		c.Quota.WindowHours = def.Quota.WindowHours
	}
	if c.Daemon.RefreshInterval.Duration < 2*time.Second {
		c.Daemon.RefreshInterval = def.Daemon.RefreshInterval
	}
	if c.Daemon.Debounce.Duration <= 0 {
		c.Daemon.Debounce = def.Daemon.Debounce
	}
	if c.Index.MaxEvents <= 0 {
		c.Index.MaxEvents = def.Index.MaxEvents
	}
}

// parseDuration accepts Go durations ("15s") or bare integer seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs) * time.Second, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
