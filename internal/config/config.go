package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// DirName is the name of the SmartQR directory, both under the home directory
// and inside repositories.
const DirName = ".smartqr"

var validate = validator.New()

// Config holds application configuration.
type Config struct {
	// ContentMaxChars caps the length of scanned or generated content.
	// The default is the QR version 40 alphanumeric capacity.
	ContentMaxChars int `json:"content_max_chars" validate:"gte=0"`

	// HistoryMaxItems caps each history list; the oldest entries are trimmed
	// after an insert. 0 means unlimited.
	HistoryMaxItems int `json:"history_max_items,omitempty" validate:"gte=0"`

	// Ads controls interstitial gating reported by scan results.
	Ads AdsConfig `json:"ads"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.smartqr/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" validate:"gte=0"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" validate:"gte=0"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool types to disable entirely.
	// Known types: "content", "history", "settings".
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// Debug switches logging to the human-readable development format.
	Debug bool `json:"debug,omitempty"`
}

// AdsConfig controls ad placeholder gating. Pointers distinguish "unset" from
// an explicit false so that an overlay can turn a default off.
type AdsConfig struct {
	Enabled                 *bool `json:"enabled,omitempty"`
	Interstitial            *bool `json:"interstitial,omitempty"`
	InterstitialEveryNScans int   `json:"interstitial_every_n_scans,omitempty" validate:"gte=0"`
}

// InterstitialDue reports whether an interstitial should be shown after the
// scanCount-th scan.
func (a AdsConfig) InterstitialDue(scanCount int) bool {
	if !deref(a.Enabled) || !deref(a.Interstitial) || a.InterstitialEveryNScans <= 0 {
		return false
	}
	return scanCount > 0 && scanCount%a.InterstitialEveryNScans == 0
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ContentMaxChars: 4296,
		Ads: AdsConfig{
			Enabled:                 lo.ToPtr(true),
			Interstitial:            lo.ToPtr(true),
			InterstitialEveryNScans: 4,
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.smartqr.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.smartqr) and repo (.smartqr) directories.
// Repo config is found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .smartqr/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	merged := Merge(DefaultConfig(), cfg)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ContentMaxChars = firstNonZero(overlay.ContentMaxChars, base.ContentMaxChars)
	result.HistoryMaxItems = firstNonZero(overlay.HistoryMaxItems, base.HistoryMaxItems)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.Ads.Enabled = lo.CoalesceOrEmpty(overlay.Ads.Enabled, base.Ads.Enabled)
	result.Ads.Interstitial = lo.CoalesceOrEmpty(overlay.Ads.Interstitial, base.Ads.Interstitial)
	result.Ads.InterstitialEveryNScans = firstNonZero(overlay.Ads.InterstitialEveryNScans, base.Ads.InterstitialEveryNScans)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.Debug = base.Debug || overlay.Debug

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func deref(b *bool) bool {
	return b != nil && *b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	all := make([]string, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)

	result := lo.Uniq(lo.Compact(lo.Map(all, func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	if len(result) == 0 {
		return nil
	}
	return result
}
