package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/ccmeter/internal/logger"
)

// clearEnv registers cleanup for key and leaves it unset for the test.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t, "CCMETER_PLAN")
	clearEnv(t, "CCMETER_ROOTS")
	clearEnv(t, "CCMETER_REFRESH_INTERVAL")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(cfg.General.Roots) != 2 {
		t.Errorf("Roots = %v, want the two default roots", cfg.General.Roots)
	}
	if cfg.Quota.WindowHours != 5 {
		t.Errorf("WindowHours = %d, want 5", cfg.Quota.WindowHours)
	}
	if cfg.Daemon.Debounce.Duration != 500*time.Millisecond {
		t.Errorf("Debounce = %s, want 500ms", cfg.Daemon.Debounce)
	}
}

func TestLoadFrom_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t, "CCMETER_PLAN")
	clearEnv(t, "CCMETER_ROOTS")
	t.Setenv("CCMETER_REFRESH_INTERVAL", "30")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[general]
roots = ["/logs/a", "/logs/b", "/logs/c"]

[quota]
plan = "Max 20x"

[quota.plans.max20x]
sonnet = 1000

[daemon]
refresh_interval = "45s"
debounce = "250ms"

[models.context_window]
"claude-sonnet-4-5" = 1000000
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CCMETER_PLAN=pro\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if len(cfg.General.Roots) != 3 {
		t.Errorf("Roots = %v, want 3 entries", cfg.General.Roots)
	}
	// .env sets CCMETER_PLAN, which overrides the file.
	if cfg.Quota.Plan != "pro" {
		t.Errorf("Plan = %q, want pro (from .env)", cfg.Quota.Plan)
	}
	if cfg.Daemon.RefreshInterval.Duration != 30*time.Second {
		t.Errorf("RefreshInterval = %s, want 30s (env wins)", cfg.Daemon.RefreshInterval)
	}
	if cfg.Daemon.Debounce.Duration != 250*time.Millisecond {
		t.Errorf("Debounce = %s, want 250ms", cfg.Daemon.Debounce)
	}
	if got := cfg.ContextWindow("claude-sonnet-4-5-20250929"); got != 1_000_000 {
		t.Errorf("ContextWindow(sonnet 4.5) = %d, want 1000000", got)
	}
	if got := cfg.ContextWindow("claude-opus-4-6"); got != DefaultContextWindow {
		t.Errorf("ContextWindow(opus) = %d, want default", got)
	}
}

func TestLoadFrom_MalformedEnvWarns(t *testing.T) {
	clearEnv(t, "CCMETER_PLAN")

	var buf bytes.Buffer
	orig := logger.Logger
	logger.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() { logger.Logger = orig })

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CCMETER-PLAN=pro\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Quota.Plan != "" {
		t.Errorf("Plan = %q, want empty", cfg.Quota.Plan)
	}
	if !strings.Contains(buf.String(), ".env") {
		t.Errorf("no warning logged for malformed .env, got %q", buf.String())
	}
}

func TestLoadFrom_MissingEnvIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	orig := logger.Logger
	logger.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() { logger.Logger = orig })

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "config.toml")); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

func TestLoadFrom_InvalidToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[general\nroots = 1"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("LoadFrom succeeded on malformed TOML, want error")
	}
}

func TestResolvePlan(t *testing.T) {
	claudeDir := t.TempDir()

	tests := []struct {
		name       string
		plan       string
		overrides  map[string]PlanLimits
		wantName   string
		wantSonnet int
	}{
		{"explicit pro", "pro", nil, PlanPro, 45},
		{"spaced display name", "Max 5x", nil, PlanMax5x, 225},
		{"override applied", "max20x", map[string]PlanLimits{PlanMax20x: {Sonnet: 1000}}, PlanMax20x, 1000},
		{"unknown falls back", "enterprise", nil, PlanMax5x, 225},
		{"detected when empty", "", nil, PlanMax5x, 225},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.General.ClaudeDir = claudeDir
			cfg.Quota.Plan = tt.plan
			cfg.Quota.Plans = tt.overrides

			name, limits := cfg.ResolvePlan()
			if name != tt.wantName {
				t.Errorf("plan = %q, want %q", name, tt.wantName)
			}
			if limits.Sonnet != tt.wantSonnet {
				t.Errorf("Sonnet limit = %d, want %d", limits.Sonnet, tt.wantSonnet)
			}
		})
	}
}

func TestDetectPlan(t *testing.T) {
	dir := t.TempDir()
	if got := DetectPlan(dir).Plan; got != PlanMax5x {
		t.Errorf("missing file plan = %q, want %q", got, PlanMax5x)
	}

	if err := os.WriteFile(filepath.Join(dir, ".claude.json"), []byte(`{"billingType":"apple_subscription"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	info := DetectPlan(dir)
	if info.Plan != PlanPro || info.BillingType != "apple_subscription" {
		t.Errorf("DetectPlan = %+v, want pro/apple_subscription", info)
	}
}

func TestTierOf(t *testing.T) {
	tests := []struct {
		model string
		want  Tier
	}{
		{"claude-opus-4-6", TierOpus},
		{"claude-3-5-haiku-20241022", TierHaiku},
		{"claude-sonnet-4-5", TierSonnet},
		{"", TierSonnet},
	}
	for _, tt := range tests {
		if got := TierOf(tt.model); got != tt.want {
			t.Errorf("TierOf(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}
