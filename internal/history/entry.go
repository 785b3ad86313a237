// Package history defines the persisted scan and generation history records.
package history

import (
	"fmt"
	"strings"

	"github.com/hpungsan/smartqr/internal/content"
)

// List names one of the two history lists.
type List string

const (
	ListScanned   List = "scanned"
	ListGenerated List = "generated"
)

// Lists returns both history lists.
func Lists() []List {
	return []List{ListScanned, ListGenerated}
}

// ParseList validates a list name (case-insensitive).
func ParseList(s string) (List, error) {
	switch l := List(strings.ToLower(strings.TrimSpace(s))); l {
	case ListScanned, ListGenerated:
		return l, nil
	default:
		return "", fmt.Errorf("unknown history list %q (want scanned or generated)", s)
	}
}

// Entry is one scanned or generated payload.
type Entry struct {
	// ID is a ULID assigned when the entry is stored
	ID string `json:"id"`

	// List is the history list the entry belongs to
	List List `json:"list"`

	// Kind is the classified kind (scanned) or the generation mode (generated)
	Kind content.Kind `json:"kind"`

	// Content is the raw scanned text or the canonical generated payload
	Content string `json:"content"`

	// CodeType is the symbology reported by the scanner, e.g. QR_CODE (nullable)
	CodeType *string `json:"code_type,omitempty"`

	// Fields are the classified fields or the echoed generation form data
	Fields content.Fields `json:"fields"`

	// CreatedAt is the Unix timestamp in milliseconds
	CreatedAt int64 `json:"created_at"`

	// Favorite is computed on read from the favorites table
	Favorite bool `json:"favorite"`
}

// FavoriteKey returns the "<list>:<id>" key used to address a favorite.
func FavoriteKey(list List, id string) string {
	return string(list) + ":" + id
}

// ParseFavoriteKey splits a "<list>:<id>" key.
func ParseFavoriteKey(key string) (List, string, error) {
	l, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("invalid favorite key %q", key)
	}
	list, err := ParseList(l)
	if err != nil {
		return "", "", err
	}
	return list, id, nil
}

// Classified reconstructs the classified view of an entry for action dispatch.
// The stored kind is authoritative for both lists. Generated url entries take
// the canonical payload, since the form value may lack its scheme.
func (e *Entry) Classified() content.Classified {
	fields := content.Normalize(e.Kind, e.Fields)
	if e.List == ListGenerated && e.Kind == content.KindURL {
		fields[content.FieldURL] = e.Content
	}
	return content.Classified{Kind: e.Kind, Raw: e.Content, Fields: fields}
}
