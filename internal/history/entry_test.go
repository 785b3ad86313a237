package history

import (
	"testing"

	"github.com/hpungsan/smartqr/internal/content"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		input   string
		want    List
		wantErr bool
	}{
		{"scanned", ListScanned, false},
		{" Generated ", ListGenerated, false},
		{"favorites", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseList(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseList(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFavoriteKey(t *testing.T) {
	key := FavoriteKey(ListScanned, "01ABC")
	if key != "scanned:01ABC" {
		t.Fatalf("FavoriteKey = %q", key)
	}

	list, id, err := ParseFavoriteKey(key)
	if err != nil {
		t.Fatalf("ParseFavoriteKey: %v", err)
	}
	if list != ListScanned || id != "01ABC" {
		t.Errorf("got (%q, %q), want (scanned, 01ABC)", list, id)
	}

	for _, bad := range []string{"scanned", "scanned:", "other:1"} {
		if _, _, err := ParseFavoriteKey(bad); err == nil {
			t.Errorf("ParseFavoriteKey(%q) expected error", bad)
		}
	}
}

func TestEntry_Classified(t *testing.T) {
	scanned := &Entry{
		List:    ListScanned,
		Kind:    content.KindPhone,
		Content: "+15551234567",
		Fields:  content.Fields{"phone": "+15551234567"},
	}
	c := scanned.Classified()
	if c.Kind != content.KindPhone || c.Fields["phone"] != "+15551234567" {
		t.Errorf("scanned Classified = %+v", c)
	}

	generated := &Entry{
		List:    ListGenerated,
		Kind:    content.KindSMS,
		Content: "smsto:123:hi",
		Fields:  content.Fields{"phone": "123", "body": "hi"},
	}
	c = generated.Classified()
	if c.Kind != content.KindSMS || c.Fields["body"] != "hi" {
		t.Errorf("generated Classified = %+v", c)
	}

	// Canonical payloads like tel: and mailto: must not change the stored kind
	generatedEmail := &Entry{
		List:    ListGenerated,
		Kind:    content.KindEmail,
		Content: "mailto:jane@x.com",
		Fields:  content.Fields{"email": "jane@x.com"},
	}
	c = generatedEmail.Classified()
	if c.Kind != content.KindEmail || c.Fields["email"] != "jane@x.com" {
		t.Errorf("generated email Classified = %+v", c)
	}

	generatedURL := &Entry{
		List:    ListGenerated,
		Kind:    content.KindURL,
		Content: "https://example.com",
		Fields:  content.Fields{"url": "example.com"},
	}
	c = generatedURL.Classified()
	if c.Fields["url"] != "https://example.com" {
		t.Errorf("generated url = %q, want the canonical payload", c.Fields["url"])
	}
}

func TestExportRecord_ToEntry(t *testing.T) {
	qr := "QR_CODE"
	rec := ExportRecord{
		ID:        "01ABC",
		List:      ListScanned,
		Kind:      content.KindWiFi,
		Content:   "WIFI:S:x;;",
		CodeType:  &qr,
		Fields:    content.Fields{"ssid": "x", "stray": "dropped"},
		CreatedAt: 1700000000000,
		Favorite:  true,
	}

	e := rec.ToEntry()
	if e.ID != "01ABC" || e.List != ListScanned || !e.Favorite {
		t.Errorf("unexpected entry %+v", e)
	}
	if _, ok := e.Fields["stray"]; ok {
		t.Error("stray field should be dropped")
	}
	if e.Fields["password"] != "" || e.Fields["ssid"] != "x" {
		t.Errorf("Fields = %v", e.Fields)
	}

	back := EntryToExportRecord(e)
	if back.ID != rec.ID || back.Content != rec.Content || *back.CodeType != qr {
		t.Errorf("EntryToExportRecord = %+v", back)
	}
}
