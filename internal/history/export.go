package history

import "github.com/hpungsan/smartqr/internal/content"

// ExportRecord represents one line of a JSONL history export.
// It is also used for parsing export files during import.
type ExportRecord struct {
	// Header detection field - true only for header line
	SmartQRExport bool `json:"_smartqr_export,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	// Entry fields
	ID        string         `json:"id"`
	List      List           `json:"list"`
	Kind      content.Kind   `json:"kind"`
	Content   string         `json:"content"`
	CodeType  *string        `json:"code_type"`
	Fields    content.Fields `json:"fields"`
	CreatedAt int64          `json:"created_at"`
	Favorite  bool           `json:"favorite"`
}

// ToEntry converts an ExportRecord to an Entry. Fields are normalized to the
// kind's schema so hand-edited files cannot introduce stray keys.
func (r *ExportRecord) ToEntry() *Entry {
	return &Entry{
		ID:        r.ID,
		List:      r.List,
		Kind:      r.Kind,
		Content:   r.Content,
		CodeType:  r.CodeType,
		Fields:    content.Normalize(r.Kind, r.Fields),
		CreatedAt: r.CreatedAt,
		Favorite:  r.Favorite,
	}
}

// EntryToExportRecord converts an Entry to its export form.
func EntryToExportRecord(e *Entry) ExportRecord {
	return ExportRecord{
		ID:        e.ID,
		List:      e.List,
		Kind:      e.Kind,
		Content:   e.Content,
		CodeType:  e.CodeType,
		Fields:    e.Fields,
		CreatedAt: e.CreatedAt,
		Favorite:  e.Favorite,
	}
}
