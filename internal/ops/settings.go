package ops

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
)

// Default settings applied when nothing is stored yet.
const (
	DefaultTheme    = "system"
	DefaultLanguage = "en"
)

// Settings is the user-facing preference set.
type Settings struct {
	Theme             string `json:"theme"`
	Language          string `json:"language"`
	HasSeenOnboarding bool   `json:"has_seen_onboarding"`
	ScanCount         int    `json:"scan_count"`
}

// UpdateSettingsInput contains parameters for the UpdateSettings operation.
// Nil fields are left unchanged.
type UpdateSettingsInput struct {
	Theme             *string `validate:"omitempty,oneof=light dark system"`
	Language          *string `validate:"omitempty,bcp47_language_tag"`
	HasSeenOnboarding *bool
}

// GetSettings returns stored settings merged over the defaults.
func GetSettings(ctx context.Context, database *sql.DB) (*Settings, error) {
	return loadSettings(ctx, database)
}

// UpdateSettings validates and stores the provided settings, returning the result.
func UpdateSettings(ctx context.Context, database *sql.DB, input UpdateSettingsInput) (*Settings, error) {
	if input.Theme != nil {
		theme := strings.ToLower(strings.TrimSpace(*input.Theme))
		input.Theme = &theme
	}
	if input.Language != nil {
		lang := strings.TrimSpace(*input.Language)
		input.Language = &lang
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if input.Theme != nil {
		if err := db.SetSetting(ctx, tx, SettingTheme, *input.Theme); err != nil {
			return nil, err
		}
	}
	if input.Language != nil {
		if err := db.SetSetting(ctx, tx, SettingLanguage, *input.Language); err != nil {
			return nil, err
		}
	}
	if input.HasSeenOnboarding != nil {
		if err := db.SetSetting(ctx, tx, SettingHasSeenOnboarding, strconv.FormatBool(*input.HasSeenOnboarding)); err != nil {
			return nil, err
		}
	}

	settings, err := loadSettings(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return settings, nil
}

// ResetScanCount sets the interstitial scan counter back to zero.
func ResetScanCount(ctx context.Context, database *sql.DB) (*Settings, error) {
	if err := db.SetSetting(ctx, database, SettingScanCount, "0"); err != nil {
		return nil, err
	}
	return loadSettings(ctx, database)
}

func loadSettings(ctx context.Context, q db.Querier) (*Settings, error) {
	stored, err := db.GetSettings(ctx, q)
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		Theme:    DefaultTheme,
		Language: DefaultLanguage,
	}
	if v, ok := stored[SettingTheme]; ok && v != "" {
		settings.Theme = v
	}
	if v, ok := stored[SettingLanguage]; ok && v != "" {
		settings.Language = v
	}
	if v, ok := stored[SettingHasSeenOnboarding]; ok {
		settings.HasSeenOnboarding, _ = strconv.ParseBool(v)
	}
	if v, ok := stored[SettingScanCount]; ok {
		settings.ScanCount, _ = strconv.Atoi(v)
	}
	return settings, nil
}
