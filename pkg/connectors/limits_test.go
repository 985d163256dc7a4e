package connectors

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLimitsForResolution(t *testing.T) {
	cfg := &LimitsConfig{
		Defaults: Limits{MaxItems: 25, LookbackDays: 14},
		PerType: map[string]Limits{
			TypeTwitter: {MaxItems: 100, LookbackDays: 7},
		},
	}

	if got := cfg.For("unknown-type", 0); got != cfg.Defaults {
		t.Fatalf("unknown type resolved to %+v, want defaults", got)
	}
	if got := cfg.For(TypeTwitter, 0); got.MaxItems != 100 || got.LookbackDays != 7 {
		t.Fatalf("per-type limits = %+v", got)
	}
	if got := cfg.For(TypeTwitter, 10); got.MaxItems != 10 {
		t.Fatalf("per-source max not honored, got %d", got.MaxItems)
	}
	if got := cfg.For(TypeTwitter, 500); got.MaxItems != 100 {
		t.Fatalf("per-source max exceeded the type cap, got %d", got.MaxItems)
	}
}

func TestApplyDefaultMaxItems(t *testing.T) {
	cfg := &LimitsConfig{
		Defaults: Limits{MaxItems: 25, LookbackDays: 14},
		PerType: map[string]Limits{
			TypeTwitter: {MaxItems: 100, LookbackDays: 7},
		},
	}

	cfg.ApplyDefaultMaxItems(60)
	if got := cfg.For("unknown-type", 0); got.MaxItems != 60 {
		t.Fatalf("override not applied, got %d", got.MaxItems)
	}
	if got := cfg.For(TypeTwitter, 0); got.MaxItems != 100 {
		t.Fatalf("override leaked into per-type limits, got %d", got.MaxItems)
	}

	cfg.ApplyDefaultMaxItems(0)
	if got := cfg.For("unknown-type", 0); got.MaxItems != 60 {
		t.Fatalf("non-positive override changed the cap, got %d", got.MaxItems)
	}
}

func TestLoadLimitsEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadLimits("")
	if err != nil {
		t.Fatalf("LoadLimits: %v", err)
	}
	if cfg.Defaults.MaxItems <= 0 || len(cfg.PerType) == 0 {
		t.Fatalf("defaults incomplete: %+v", cfg)
	}
}

func TestLoadLimitsMissingFileFallsBack(t *testing.T) {
	cfg, err := LoadLimits(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if cfg == nil || cfg.Defaults.MaxItems <= 0 {
		t.Fatal("missing file must still yield usable defaults")
	}
}

func TestLoadLimitsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	raw := []byte(`defaults:
  max_items: 40
  lookback_days: 10
per_type:
  rss:
    max_items: 80
    lookback_days: 21
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := LoadLimits(path)
	if err != nil {
		t.Fatalf("LoadLimits: %v", err)
	}
	if cfg.Defaults.MaxItems != 40 || cfg.Defaults.LookbackDays != 10 {
		t.Fatalf("defaults = %+v", cfg.Defaults)
	}
	if got := cfg.For(TypeRSS, 0); got.MaxItems != 80 || got.LookbackDays != 21 {
		t.Fatalf("rss limits = %+v", got)
	}
}

func TestLoadLimitsRejectsIncompleteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	if err := os.WriteFile(path, []byte("per_type: {}\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := LoadLimits(path); err == nil {
		t.Fatal("file without defaults accepted")
	}
}
