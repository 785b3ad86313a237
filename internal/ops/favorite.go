package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
)

// ToggleFavoriteInput contains parameters for the ToggleFavorite operation.
type ToggleFavoriteInput struct {
	List string
	ID   string
}

// ToggleFavoriteOutput contains the result of the ToggleFavorite operation.
type ToggleFavoriteOutput struct {
	FavoriteKey string `json:"favorite_key"`
	Favorite    bool   `json:"favorite"`
}

// ToggleFavorite flips the favorite mark of an existing entry and returns the new state.
func ToggleFavorite(ctx context.Context, database *sql.DB, input ToggleFavoriteInput) (*ToggleFavoriteOutput, error) {
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

	e, err := db.GetEntry(ctx, tx, list, id)
	if err != nil {
		return nil, err
	}
	next := !e.Favorite
	if err := db.SetFavorite(ctx, tx, list, id, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ToggleFavoriteOutput{
		FavoriteKey: history.FavoriteKey(list, id),
		Favorite:    next,
	}, nil
}
