package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on any collision or bad line (atomic)
	ImportModeSkip    ImportMode = "skip"    // keep existing entries
	ImportModeReplace ImportMode = "replace" // overwrite existing entries
)

// maxImportLine bounds a single JSONL record.
const maxImportLine = 1 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     `validate:"required"`
	Mode ImportMode `validate:"omitempty,oneof=error skip replace"` // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Trimmed  int           `json:"trimmed"` // older entries dropped to honor history_max_items
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// importRecord is a parsed entry with the line it came from.
type importRecord struct {
	line  int
	entry *history.Entry
}

// Import loads history entries from a JSONL export file.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	input.Path = strings.TrimSpace(input.Path)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}

	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := err.(*errors.QRError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file, cfg)

	// mode:error is all-or-nothing, bad lines included
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	output := &ImportOutput{
		Skipped: len(parseErrors),
		Errors:  parseErrors,
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("import")
		}

		exists, err := db.EntryExists(ctx, tx, rec.entry.ID)
		if err != nil {
			return nil, err
		}

		switch {
		case exists && input.Mode == ImportModeError:
			// Nothing is committed
			return &ImportOutput{Errors: []ImportError{{
				Line:    rec.line,
				ID:      rec.entry.ID,
				Code:    "ID_COLLISION",
				Message: fmt.Sprintf("history entry with id %q already exists", rec.entry.ID),
			}}}, nil
		case exists && input.Mode == ImportModeSkip:
			output.Skipped++
			continue
		case exists:
			if err := db.ReplaceEntry(ctx, tx, rec.entry); err != nil {
				return nil, err
			}
			// Drop marks left on the old (list, id) before applying the imported one
			for _, l := range history.Lists() {
				if err := db.SetFavorite(ctx, tx, l, rec.entry.ID, false); err != nil {
					return nil, err
				}
			}
		default:
			if err := db.InsertEntry(ctx, tx, rec.entry); err != nil {
				return nil, err
			}
		}

		if rec.entry.Favorite {
			if err := db.SetFavorite(ctx, tx, rec.entry.List, rec.entry.ID, true); err != nil {
				return nil, err
			}
		}
		output.Imported++
	}

	// Imported entries count against history_max_items like any other
	if cfg != nil {
		for _, l := range history.Lists() {
			n, err := db.TrimList(ctx, tx, l, cfg.HistoryMaxItems)
			if err != nil {
				return nil, err
			}
			output.Trimmed += n
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if output.Errors == nil {
		output.Errors = []ImportError{}
	}
	return output, nil
}

// parseExportFile parses a JSONL export into entries. The header line and
// blank lines are skipped; malformed lines are reported, not fatal.
func parseExportFile(r io.Reader, cfg *config.Config) ([]importRecord, []ImportError) {
	var (
		records     []importRecord
		parseErrors []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var record history.ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if record.SmartQRExport {
			continue
		}

		if msg := checkRecord(&record, cfg); msg != "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      record.ID,
				Code:    "INVALID_RECORD",
				Message: msg,
			})
			continue
		}

		records = append(records, importRecord{line: lineNum, entry: record.ToEntry()})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// checkRecord returns a non-empty message when a record cannot be imported.
// It normalizes the list name in place.
func checkRecord(r *history.ExportRecord, cfg *config.Config) string {
	if strings.TrimSpace(r.ID) == "" {
		return "missing id field"
	}
	list, err := history.ParseList(string(r.List))
	if err != nil {
		return err.Error()
	}
	r.List = list
	if !r.Kind.Valid() {
		return fmt.Sprintf("unknown kind %q", r.Kind)
	}
	if r.CreatedAt <= 0 {
		return "missing created_at field"
	}
	if err := checkContentSize(cfg, r.Content); err != nil {
		if qrErr, ok := err.(*errors.QRError); ok {
			return qrErr.Message
		}
		return err.Error()
	}
	return ""
}
