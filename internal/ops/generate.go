package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
)

// GenerateInput contains parameters for the Generate operation.
type GenerateInput struct {
	Mode     string            `validate:"required"` // one of content.Kinds()
	FormData map[string]string // keys per content.Schema(mode); missing keys count as empty
	Save     bool              // store the result in the generated history
}

// GenerateOutput contains the result of the Generate operation.
type GenerateOutput struct {
	content.Encoded
	Entry *history.Entry `json:"entry,omitempty"` // set when Save is true
}

// Generate encodes form data into a canonical payload. Blank payloads are
// rejected with EMPTY_CONTENT and never stored.
func Generate(ctx context.Context, database *sql.DB, cfg *config.Config, input GenerateInput) (*GenerateOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	mode, err := parseKind(input.Mode)
	if err != nil {
		return nil, err
	}

	encoded := content.Encode(mode, input.FormData)
	if content.IsBlank(encoded.Content) {
		return nil, errors.NewEmptyContent(string(mode))
	}
	if err := checkContentSize(cfg, encoded.Content); err != nil {
		return nil, err
	}

	output := &GenerateOutput{Encoded: encoded}
	if !input.Save {
		return output, nil
	}

	id, createdAt, err := newIdentity()
	if err != nil {
		return nil, err
	}
	entry := &history.Entry{
		ID:        id,
		List:      history.ListGenerated,
		Kind:      mode,
		Content:   encoded.Content,
		Fields:    encoded.FormData,
		CreatedAt: createdAt,
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := db.InsertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if _, err := db.TrimList(ctx, tx, history.ListGenerated, cfg.HistoryMaxItems); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	output.Entry = entry
	return output, nil
}
