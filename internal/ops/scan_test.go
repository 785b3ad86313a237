package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
)

func TestScan_ClassifiesAndStores(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	out, err := Scan(ctx, database, cfg, ScanInput{
		Raw:      "WIFI:T:WPA;S:Cafe;P:latte;;",
		CodeType: stringPtr(" QR_CODE "),
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if out.Entry.Kind != content.KindWiFi {
		t.Errorf("Kind = %q, want wifi", out.Entry.Kind)
	}
	if out.Entry.List != history.ListScanned {
		t.Errorf("List = %q, want scanned", out.Entry.List)
	}
	if out.Entry.CodeType == nil || *out.Entry.CodeType != "QR_CODE" {
		t.Errorf("CodeType = %v, want trimmed QR_CODE", out.Entry.CodeType)
	}
	if out.ScanCount != 1 {
		t.Errorf("ScanCount = %d, want 1", out.ScanCount)
	}

	fetched, err := Fetch(ctx, database, FetchInput{List: "scanned", ID: out.Entry.ID})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.Fields["ssid"] != "Cafe" || fetched.Fields["password"] != "latte" {
		t.Errorf("Fields = %v", fetched.Fields)
	}
}

func TestScan_Validation(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	cfg.ContentMaxChars = 10
	ctx := context.Background()

	if _, err := Scan(ctx, database, cfg, ScanInput{Raw: " \ufeff\u00a0"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("blank raw = %v, want INVALID_REQUEST", err)
	}
	if _, err := Scan(ctx, database, cfg, ScanInput{Raw: strings.Repeat("x", 11)}); !errors.Is(err, errors.ErrContentTooLarge) {
		t.Errorf("oversized raw = %v, want CONTENT_TOO_LARGE", err)
	}
	// Runes, not bytes
	if _, err := Scan(ctx, database, cfg, ScanInput{Raw: strings.Repeat("é", 10)}); err != nil {
		t.Errorf("10-rune raw = %v, want success", err)
	}
}

func TestScan_InterstitialEveryNScans(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()

	var shown []int
	for i := 1; i <= 8; i++ {
		out := scanRaw(t, database, cfg, "scan")
		if out.ScanCount != i {
			t.Fatalf("ScanCount = %d, want %d", out.ScanCount, i)
		}
		if out.ShowInterstitial {
			shown = append(shown, i)
		}
	}
	if len(shown) != 2 || shown[0] != 4 || shown[1] != 8 {
		t.Errorf("interstitials shown at %v, want [4 8]", shown)
	}
}

func TestScan_InterstitialDisabled(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	cfg.Ads.Enabled = boolPtr(false)

	for i := 0; i < 4; i++ {
		if out := scanRaw(t, database, cfg, "scan"); out.ShowInterstitial {
			t.Fatalf("interstitial shown at scan %d with ads disabled", out.ScanCount)
		}
	}
}

func TestScan_HistoryMaxItems(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	cfg.HistoryMaxItems = 2
	ctx := context.Background()

	first := scanRaw(t, database, cfg, "one")
	scanRaw(t, database, cfg, "two")
	scanRaw(t, database, cfg, "three")

	out, err := List(ctx, database, ListInput{List: "scanned"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Total != 2 {
		t.Fatalf("Total = %d, want 2", out.Pagination.Total)
	}
	if out.Items[0].Content != "three" || out.Items[1].Content != "two" {
		t.Errorf("kept %q, %q", out.Items[0].Content, out.Items[1].Content)
	}
	if _, err := Fetch(ctx, database, FetchInput{List: "scanned", ID: first.Entry.ID}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("oldest entry should be trimmed, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	out, err := Generate(ctx, database, cfg, GenerateInput{
		Mode:     "sms",
		FormData: map[string]string{"phone": "+15551234567", "body": "Hello there"},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Content != "smsto:+15551234567:Hello there" {
		t.Errorf("Content = %q", out.Content)
	}
	if out.Entry != nil {
		t.Error("Entry should be nil when Save is false")
	}

	total, _ := List(ctx, database, ListInput{List: "generated"})
	if total.Pagination.Total != 0 {
		t.Errorf("unsaved generation stored %d entries", total.Pagination.Total)
	}
}

func TestGenerate_Save(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	out, err := Generate(ctx, database, cfg, GenerateInput{
		Mode:     "URL",
		FormData: map[string]string{"url": "example.com"},
		Save:     true,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Mode != content.KindURL || out.Content != "https://example.com" {
		t.Errorf("Encoded = %+v", out.Encoded)
	}
	if out.Entry == nil {
		t.Fatal("Entry should be set when Save is true")
	}

	fetched, err := Fetch(ctx, database, FetchInput{List: "generated", ID: out.Entry.ID})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.Content != "https://example.com" || fetched.Fields["url"] != "example.com" {
		t.Errorf("stored entry = %+v", fetched.Entry)
	}
	if fetched.Action == nil || fetched.Action.Target != "https://example.com" {
		t.Errorf("Action = %+v", fetched.Action)
	}
}

func TestGenerate_Errors(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	tests := []struct {
		name  string
		input GenerateInput
		code  errors.ErrorCode
	}{
		{"missing mode", GenerateInput{}, errors.ErrInvalidRequest},
		{"unknown mode", GenerateInput{Mode: "barcode"}, errors.ErrInvalidRequest},
		{"blank text", GenerateInput{Mode: "text", FormData: map[string]string{"text": "  "}, Save: true}, errors.ErrEmptyContent},
		{"empty url", GenerateInput{Mode: "url", Save: true}, errors.ErrEmptyContent},
		{"whitespace url", GenerateInput{Mode: "url", FormData: map[string]string{"url": "   "}, Save: true}, errors.ErrEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Generate(ctx, database, cfg, tt.input); !errors.Is(err, tt.code) {
				t.Errorf("Generate = %v, want %s", err, tt.code)
			}
		})
	}

	out, _ := List(ctx, database, ListInput{})
	if out.Pagination.Total != 0 {
		t.Errorf("failed generations stored %d entries", out.Pagination.Total)
	}
}

func TestClassifyAndEncode(t *testing.T) {
	c := Classify(ClassifyInput{Raw: "+15551234567"})
	if c.Kind != content.KindPhone {
		t.Fatalf("Kind = %q, want phone", c.Kind)
	}
	if c.Action == nil || c.Action.Target != "tel:+15551234567" {
		t.Errorf("Action = %+v", c.Action)
	}

	if c := Classify(ClassifyInput{Raw: "just words"}); c.Action != nil {
		t.Errorf("text should have no action, got %+v", c.Action)
	}

	enc, err := Encode(EncodeInput{Mode: "wifi", FormData: map[string]string{"ssid": "Home", "password": "pw", "security": "WPA"}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if enc.Content != "WIFI:T:WPA;S:Home;P:pw;;" {
		t.Errorf("Content = %q", enc.Content)
	}

	// Encode does not reject blank payloads
	if _, err := Encode(EncodeInput{Mode: "text"}); err != nil {
		t.Errorf("Encode blank = %v, want nil", err)
	}
	if _, err := Encode(EncodeInput{Mode: "nope"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Encode unknown mode = %v", err)
	}
}
