package connectors

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Limits bounds one connector type's crawl appetite.
type Limits struct {
	MaxItems     int `yaml:"max_items" json:"max_items"`
	LookbackDays int `yaml:"lookback_days" json:"lookback_days"`
}

// LimitsConfig holds per-type fetch limits with a fallback default. The
// per-type MaxItems doubles as the hard cap on per-source overrides.
type LimitsConfig struct {
	Defaults Limits            `yaml:"defaults" json:"defaults"`
	PerType  map[string]Limits `yaml:"per_type" json:"per_type"`
}

// LoadLimits reads a limits file, falling back to the compiled-in defaults
// when no path is given.
func LoadLimits(path string) (*LimitsConfig, error) {
	if path == "" {
		return DefaultLimits(), nil
	}
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultLimits(), err
	}

	var cfg LimitsConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Defaults.MaxItems <= 0 || cfg.Defaults.LookbackDays <= 0 {
		return nil, errors.New("limits file must set defaults.max_items and defaults.lookback_days")
	}
	return &cfg, nil
}

// DefaultLimits returns the compiled-in per-type limits. Chatty platforms get
// tight windows, slow-moving ones get long ones.
func DefaultLimits() *LimitsConfig {
	return &LimitsConfig{
		Defaults: Limits{MaxItems: 25, LookbackDays: 14},
		PerType: map[string]Limits{
			TypeRSS:      {MaxItems: 50, LookbackDays: 14},
			TypeYouTube:  {MaxItems: 25, LookbackDays: 30},
			TypeTwitter:  {MaxItems: 100, LookbackDays: 7},
			TypeGitHub:   {MaxItems: 50, LookbackDays: 30},
			TypeReddit:   {MaxItems: 100, LookbackDays: 7},
			TypeMedium:   {MaxItems: 25, LookbackDays: 30},
			TypeSubstack: {MaxItems: 25, LookbackDays: 30},
			TypeLinkedIn: {MaxItems: 10, LookbackDays: 14},
		},
	}
}

// ApplyDefaultMaxItems overrides the fallback item cap, typically from the
// CRAWL_DEFAULT_MAX_ITEMS environment knob. Non-positive values are ignored.
func (lc *LimitsConfig) ApplyDefaultMaxItems(maxItems int) {
	if maxItems > 0 {
		lc.Defaults.MaxItems = maxItems
	}
}

// For resolves the effective limits for a source: the per-type entry (or
// defaults), with a positive per-source max honored up to the type's cap.
func (lc *LimitsConfig) For(sourceType string, sourceMax int) Limits {
	limits := lc.Defaults
	if typed, ok := lc.PerType[sourceType]; ok {
		if typed.MaxItems > 0 {
			limits.MaxItems = typed.MaxItems
		}
		if typed.LookbackDays > 0 {
			limits.LookbackDays = typed.LookbackDays
		}
	}
	if sourceMax > 0 && sourceMax < limits.MaxItems {
		limits.MaxItems = sourceMax
	}
	return limits
}
