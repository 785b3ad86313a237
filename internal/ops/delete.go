package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	List string
	ID   string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	List    string `json:"list"`
	ID      string `json:"id"`
}

// Delete permanently removes a history entry together with its favorite mark.
func Delete(ctx context.Context, database *sql.DB, input DeleteInput) (*DeleteOutput, error) {
	list, err := parseList(input.List)
	if err != nil {
		return nil, err
	}
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := db.DeleteEntry(ctx, tx, list, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &DeleteOutput{
		Deleted: true,
		List:    string(list),
		ID:      id,
	}, nil
}

// ClearInput contains parameters for the Clear operation.
type ClearInput struct {
	List string // required; clearing never spans both lists
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	List    string `json:"list"`
	Cleared int    `json:"cleared"`
}

// Clear removes every entry of one history list and its favorite marks.
func Clear(ctx context.Context, database *sql.DB, input ClearInput) (*ClearOutput, error) {
	list, err := parseList(input.List)
	if err != nil {
		return nil, err
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := db.ClearList(ctx, tx, list)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ClearOutput{List: string(list), Cleared: n}, nil
}
