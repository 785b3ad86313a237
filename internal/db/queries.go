package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.QRError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// entryColumns selects an entry together with its computed favorite flag.
// Queries using it must alias history_items as h and LEFT JOIN favorites as f.
const entryColumns = `
	h.id, h.list, h.kind, h.content, h.code_type, h.fields_json, h.created_at,
	f.item_id IS NOT NULL
`

const entryJoin = `
	FROM history_items h
	LEFT JOIN favorites f ON f.list = h.list AND f.item_id = h.id
`

// ListFilter narrows ListEntries and CountEntries.
type ListFilter struct {
	List          *history.List // nil = both lists
	Kind          *content.Kind
	FavoritesOnly bool
}

// InsertEntry stores a new history entry. The favorite flag is not persisted
// here; use SetFavorite.
func InsertEntry(ctx context.Context, q Querier, e *history.Entry) error {
	fieldsJSON, err := marshalFields(e.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO history_items (id, list, kind, content, code_type, fields_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		e.ID, string(e.List), string(e.Kind), e.Content, toNullString(e.CodeType), fieldsJSON, e.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// ReplaceEntry inserts an entry or overwrites the row with the same id.
func ReplaceEntry(ctx context.Context, q Querier, e *history.Entry) error {
	fieldsJSON, err := marshalFields(e.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO history_items (id, list, kind, content, code_type, fields_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			list = excluded.list,
			kind = excluded.kind,
			content = excluded.content,
			code_type = excluded.code_type,
			fields_json = excluded.fields_json,
			created_at = excluded.created_at
	`
	_, err = q.ExecContext(ctx, query,
		e.ID, string(e.List), string(e.Kind), e.Content, toNullString(e.CodeType), fieldsJSON, e.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports both "UNIQUE constraint failed" and "PRIMARY KEY" violations this way
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetEntry retrieves an entry from a list by its ULID.
func GetEntry(ctx context.Context, q Querier, list history.List, id string) (*history.Entry, error) {
	query := `SELECT ` + entryColumns + entryJoin + ` WHERE h.list = ? AND h.id = ?`

	e, err := scanEntry(q.QueryRowContext(ctx, query, string(list), id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(history.FavoriteKey(list, id))
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// EntryExists reports whether any list holds an entry with the given id.
func EntryExists(ctx context.Context, q Querier, id string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM history_items WHERE id = ? LIMIT 1`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// ListEntries returns entries most-recent-first. Ties on created_at are broken
// by id, which is monotonic within a process.
func ListEntries(ctx context.Context, q Querier, filter ListFilter, limit, offset int) ([]history.Entry, error) {
	where, args := filter.where()
	query := `SELECT ` + entryColumns + entryJoin + where + `
		ORDER BY h.created_at DESC, h.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return queryEntries(ctx, q, query, args...)
}

// CountEntries counts entries matching the filter.
func CountEntries(ctx context.Context, q Querier, filter ListFilter) (int, error) {
	where, args := filter.where()
	query := `SELECT COUNT(*)` + entryJoin + where

	var total int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, errors.NewInternal(err)
	}
	return total, nil
}

func (f ListFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.List != nil {
		conds = append(conds, "h.list = ?")
		args = append(args, string(*f.List))
	}
	if f.Kind != nil {
		conds = append(conds, "h.kind = ?")
		args = append(args, string(*f.Kind))
	}
	if f.FavoritesOnly {
		conds = append(conds, "f.item_id IS NOT NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SearchEntries performs a case-insensitive substring match over entry content.
// Returns the page of matches and the total match count.
func SearchEntries(ctx context.Context, q Querier, term string, list *history.List, limit, offset int) ([]history.Entry, int, error) {
	where := ` WHERE h.content LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(term) + "%"}
	if list != nil {
		where += " AND h.list = ?"
		args = append(args, string(*list))
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*)`+entryJoin+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + entryColumns + entryJoin + where + `
		ORDER BY h.created_at DESC, h.id DESC
		LIMIT ? OFFSET ?`
	entries, err := queryEntries(ctx, q, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// DeleteEntry removes an entry and its favorite mark.
func DeleteEntry(ctx context.Context, q Querier, list history.List, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM favorites WHERE list = ? AND item_id = ?`, string(list), id); err != nil {
		return errors.NewInternal(err)
	}

	result, err := q.ExecContext(ctx, `DELETE FROM history_items WHERE list = ? AND id = ?`, string(list), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(history.FavoriteKey(list, id))
	}
	return nil
}

// ClearList removes every entry of a list and its favorite marks.
// Returns the number of entries removed.
func ClearList(ctx context.Context, q Querier, list history.List) (int, error) {
	if _, err := q.ExecContext(ctx, `DELETE FROM favorites WHERE list = ?`, string(list)); err != nil {
		return 0, errors.NewInternal(err)
	}
	result, err := q.ExecContext(ctx, `DELETE FROM history_items WHERE list = ?`, string(list))
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// TrimList keeps only the newest max entries of a list. Favorite marks of
// trimmed entries are removed too. Returns the number of entries removed.
func TrimList(ctx context.Context, q Querier, list history.List, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	query := `
		DELETE FROM history_items
		WHERE list = ? AND id NOT IN (
			SELECT id FROM history_items
			WHERE list = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`
	result, err := q.ExecContext(ctx, query, string(list), string(list), max)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if n > 0 {
		orphans := `
			DELETE FROM favorites
			WHERE list = ? AND item_id NOT IN (SELECT id FROM history_items WHERE list = ?)
		`
		if _, err := q.ExecContext(ctx, orphans, string(list), string(list)); err != nil {
			return 0, errors.NewInternal(err)
		}
	}
	return int(n), nil
}

// SetFavorite adds or removes the favorite mark for (list, id).
func SetFavorite(ctx context.Context, q Querier, list history.List, id string, favorite bool) error {
	var err error
	if favorite {
		_, err = q.ExecContext(ctx,
			`INSERT OR IGNORE INTO favorites (list, item_id, created_at) VALUES (?, ?, ?)`,
			string(list), id, time.Now().UnixMilli(),
		)
	} else {
		_, err = q.ExecContext(ctx, `DELETE FROM favorites WHERE list = ? AND item_id = ?`, string(list), id)
	}
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// IsFavorite reports whether (list, id) carries a favorite mark.
func IsFavorite(ctx context.Context, q Querier, list history.List, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM favorites WHERE list = ? AND item_id = ?`, string(list), id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// GetSetting returns the stored value for key and whether it was present.
func GetSetting(ctx context.Context, q Querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// GetSettings returns every stored setting.
func GetSettings(ctx context.Context, q Querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.NewInternal(err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return result, nil
}

// SetSetting stores a value for key, overwriting any previous value.
func SetSetting(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// IncrementCounter atomically adds one to an integer setting and returns the new value.
// A missing or non-numeric value counts as zero.
func IncrementCounter(ctx context.Context, q Querier, key string) (int, error) {
	var value string
	err := q.QueryRowContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, '1')
		 ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)
		 RETURNING value`,
		key,
	).Scan(&value)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// StreamForExport returns rows for every entry, oldest first, optionally
// restricted to one list. Callers must close the rows and decode them with
// ScanEntryFromRows.
func StreamForExport(ctx context.Context, q Querier, list *history.List) (*sql.Rows, error) {
	filter := ListFilter{List: list}
	where, args := filter.where()
	query := `SELECT ` + entryColumns + entryJoin + where + ` ORDER BY h.created_at ASC, h.id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanEntryFromRows decodes the current row of a StreamForExport result.
func ScanEntryFromRows(rows *sql.Rows) (*history.Entry, error) {
	return scanEntry(rows)
}

func queryEntries(ctx context.Context, q Querier, query string, args ...any) ([]history.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := []history.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a single row selected with entryColumns.
func scanEntry(row scanner) (*history.Entry, error) {
	var (
		e          history.Entry
		list       string
		kind       string
		codeType   sql.NullString
		fieldsJSON string
	)

	err := row.Scan(&e.ID, &list, &kind, &e.Content, &codeType, &fieldsJSON, &e.CreatedAt, &e.Favorite)
	if err != nil {
		return nil, err
	}

	e.List = history.List(list)
	e.Kind = content.Kind(kind)
	e.CodeType = fromNullString(codeType)

	var fields content.Fields
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, err
		}
	}
	e.Fields = content.Normalize(e.Kind, fields)

	return &e, nil
}

func marshalFields(f content.Fields) (string, error) {
	if f == nil {
		f = content.Fields{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
