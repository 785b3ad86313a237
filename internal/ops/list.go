package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/history"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	List          string // optional: scanned or generated; empty lists both
	Kind          string // optional kind filter
	FavoritesOnly bool
	Limit         int // default: 20, max: 100
	Offset        int // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []history.Entry `json:"items"`
	Pagination Pagination      `json:"pagination"`
	Sort       string          `json:"sort"`
}

// List retrieves history entries most-recent-first with pagination.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	list, err := parseOptionalList(input.List)
	if err != nil {
		return nil, err
	}

	filter := db.ListFilter{List: list, FavoritesOnly: input.FavoritesOnly}
	if strings.TrimSpace(input.Kind) != "" {
		kind, err := parseKind(input.Kind)
		if err != nil {
			return nil, err
		}
		filter.Kind = &kind
	}

	limit, offset := clampPage(input.Limit, input.Offset)

	total, err := db.CountEntries(ctx, database, filter)
	if err != nil {
		return nil, err
	}
	items, err := db.ListEntries(ctx, database, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// FavoritesInput contains parameters for the Favorites operation.
type FavoritesInput struct {
	List   string // optional: scanned or generated
	Limit  int
	Offset int
}

// Favorites lists favorited entries across lists, most-recent-first.
func Favorites(ctx context.Context, database *sql.DB, input FavoritesInput) (*ListOutput, error) {
	return List(ctx, database, ListInput{
		List:          input.List,
		FavoritesOnly: true,
		Limit:         input.Limit,
		Offset:        input.Offset,
	})
}
