package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
)

// ActionInput contains parameters for the Action operation.
type ActionInput struct {
	List string
	ID   string
}

// Action maps a stored entry to the platform action its kind dispatches to.
// Kinds without an action (wifi, vcard, crypto, text) return INVALID_REQUEST.
func Action(ctx context.Context, database *sql.DB, input ActionInput) (*content.Action, error) {
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

	action, ok := content.ActionFor(e.Classified())
	if !ok {
		return nil, errors.NewInvalidRequest("no action for kind " + string(e.Kind))
	}
	return &action, nil
}
