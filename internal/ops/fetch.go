package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/history"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	List string // scanned or generated
	ID   string
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	history.Entry                 // embedded (copy, not pointer)
	FavoriteKey   string          `json:"favorite_key"`
	Action        *content.Action `json:"action,omitempty"`
}

// Fetch retrieves one history entry with its favorite flag and the action its
// kind dispatches to.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	list, err := parseList(input.List)
	if err != nil {
		return nil, err
	}
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	e, err := db.GetEntry(ctx, database, list, id)
	if err != nil {
		return nil, err
	}

	output := &FetchOutput{
		Entry:       *e,
		FavoriteKey: history.FavoriteKey(e.List, e.ID),
	}
	if action, ok := content.ActionFor(e.Classified()); ok {
		output.Action = &action
	}
	return output, nil
}
