package ops

import (
	"context"
	"database/sql"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
)

// ScanInput contains parameters for the Scan operation.
type ScanInput struct {
	Raw      string  // required, the decoded payload as reported by the scanner
	CodeType *string // optional symbology tag, e.g. QR_CODE or EAN_13
}

// ScanOutput contains the result of the Scan operation.
type ScanOutput struct {
	Entry            history.Entry `json:"entry"`
	ScanCount        int           `json:"scan_count"`
	ShowInterstitial bool          `json:"show_interstitial"`
}

// Scan classifies a scanned payload, prepends it to the scanned history and
// bumps the scan counter that drives interstitial gating.
func Scan(ctx context.Context, database *sql.DB, cfg *config.Config, input ScanInput) (*ScanOutput, error) {
	if content.IsBlank(input.Raw) {
		return nil, errors.NewInvalidRequest("raw is required")
	}
	if err := checkContentSize(cfg, input.Raw); err != nil {
		return nil, err
	}

	codeType := cleanOptionalString(input.CodeType)
	classified := content.Classify(input.Raw)

	id, createdAt, err := newIdentity()
	if err != nil {
		return nil, err
	}
	entry := history.Entry{
		ID:        id,
		List:      history.ListScanned,
		Kind:      classified.Kind,
		Content:   input.Raw,
		CodeType:  codeType,
		Fields:    classified.Fields,
		CreatedAt: createdAt,
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := db.InsertEntry(ctx, tx, &entry); err != nil {
		return nil, err
	}
	if _, err := db.TrimList(ctx, tx, history.ListScanned, cfg.HistoryMaxItems); err != nil {
		return nil, err
	}
	count, err := db.IncrementCounter(ctx, tx, SettingScanCount)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ScanOutput{
		Entry:            entry,
		ScanCount:        count,
		ShowInterstitial: cfg.Ads.InterstitialDue(count),
	}, nil
}

// checkContentSize enforces config.ContentMaxChars (0 disables the check).
func checkContentSize(cfg *config.Config, s string) error {
	if cfg == nil || cfg.ContentMaxChars <= 0 {
		return nil
	}
	if n := utf8.RuneCountInString(s); n > cfg.ContentMaxChars {
		return errors.NewContentTooLarge(cfg.ContentMaxChars, n)
	}
	return nil
}

// cleanOptionalString trims s and maps empty strings to nil.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
