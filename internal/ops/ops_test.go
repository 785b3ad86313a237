package ops

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func stringPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}

func scanRaw(t *testing.T, database *sql.DB, cfg *config.Config, raw string) *ScanOutput {
	t.Helper()
	out, err := Scan(context.Background(), database, cfg, ScanInput{Raw: raw})
	if err != nil {
		t.Fatalf("Scan(%q) failed: %v", raw, err)
	}
	return out
}

func TestGenerateULID_Monotonic(t *testing.T) {
	now := time.Now()
	prev := ""
	for i := 0; i < 100; i++ {
		id, err := generateULID(now)
		if err != nil {
			t.Fatalf("generateULID: %v", err)
		}
		if id <= prev {
			t.Fatalf("ids not increasing: %s after %s", id, prev)
		}
		prev = id
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultListLimit, 0},
		{-5, -1, DefaultListLimit, 0},
		{500, 10, MaxListLimit, 10},
		{7, 3, 7, 3},
	}
	for _, tt := range tests {
		l, o := clampPage(tt.limit, tt.offset)
		if l != tt.wantLimit || o != tt.wantOffset {
			t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)", tt.limit, tt.offset, l, o, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestParseList(t *testing.T) {
	if _, err := parseList(""); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("parseList(\"\") = %v, want INVALID_REQUEST", err)
	}
	if _, err := parseList("favorites"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("parseList(favorites) = %v, want INVALID_REQUEST", err)
	}
	if l, err := parseOptionalList("  "); err != nil || l != nil {
		t.Errorf("parseOptionalList(blank) = %v, %v", l, err)
	}
}

func TestValidateInput_Messages(t *testing.T) {
	err := validateInput(UpdateSettingsInput{Theme: stringPtr("neon")})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("validateInput = %v, want INVALID_REQUEST", err)
	}
	if got := err.Error(); got != "INVALID_REQUEST: theme must be one of: light, dark, system" {
		t.Errorf("message = %q", got)
	}

	err = validateInput(ImportInput{})
	if err == nil || err.Error() != "INVALID_REQUEST: path is required" {
		t.Errorf("validateInput(ImportInput{}) = %v", err)
	}
}
