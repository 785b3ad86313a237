package ops

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
)

// SnippetContext is the number of runes kept on each side of a match.
const SnippetContext = 60

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query  string // required, max 500 chars
	List   string // optional: scanned or generated
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// SearchResultItem wraps an entry with a match snippet.
type SearchResultItem struct {
	history.Entry
	// Snippet is HTML-safe: entry content is escaped; only <b>...</b>
	// highlight tags are present.
	Snippet string `json:"snippet"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchResultItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"`
}

// Search performs a case-insensitive substring search over entry content.
func Search(ctx context.Context, database *sql.DB, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}

	list, err := parseOptionalList(input.List)
	if err != nil {
		return nil, err
	}
	limit, offset := clampPage(input.Limit, input.Offset)

	entries, total, err := db.SearchEntries(ctx, database, query, list, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]SearchResultItem, len(entries))
	for i, e := range entries {
		items[i] = SearchResultItem{
			Entry:   e,
			Snippet: buildSnippet(e.Content, query, SnippetContext),
		}
	}

	return &SearchOutput{
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

// buildSnippet returns the escaped text around the first case-insensitive
// match of query, with the match wrapped in <b> tags. Cut ends get "...".
func buildSnippet(text, query string, width int) string {
	runes := []rune(text)
	needle := []rune(query)

	at := indexFold(runes, needle)
	if at < 0 {
		if len(runes) > 2*width {
			return html.EscapeString(string(runes[:2*width])) + "..."
		}
		return html.EscapeString(text)
	}

	start := max(at-width, 0)
	end := min(at+len(needle)+width, len(runes))

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(html.EscapeString(string(runes[start:at])))
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(string(runes[at : at+len(needle)])))
	b.WriteString("</b>")
	b.WriteString(html.EscapeString(string(runes[at+len(needle) : end])))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

// indexFold finds needle in haystack comparing runes case-insensitively.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if unicode.ToLower(haystack[i+j]) != unicode.ToLower(r) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
