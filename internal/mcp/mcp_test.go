package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	return database, cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

type handlerFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// call invokes a handler and fails on a transport-level error.
func call(t *testing.T, fn handlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

// scanEntry stores raw through history_scan and returns the entry id.
func scanEntry(t *testing.T, h *Handlers, raw string) string {
	t.Helper()
	out := parseOutput(t, call(t, h.HandleScan, map[string]any{"raw": raw}))
	return out["entry"].(map[string]any)["id"].(string)
}

func TestHandleClassify(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)

	tests := []struct {
		raw        string
		wantKind   string
		wantAction string
	}{
		{"https://example.com", "url", "open_url"},
		{"+15551234567", "phone", "call"},
		{"sms:+15551234567?body=Hi%20there", "sms", "send_sms"},
		{"WIFI:T:WPA;S:Home;P:pw;;", "wifi", ""},
		{"just words", "text", ""},
	}

	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			out := parseOutput(t, call(t, h.HandleClassify, map[string]any{"raw": tt.raw}))
			if out["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %s", out["kind"], tt.wantKind)
			}
			action, _ := out["action"].(map[string]any)
			if tt.wantAction == "" {
				if action != nil {
					t.Errorf("unexpected action %v", action)
				}
				return
			}
			if action == nil || action["type"] != tt.wantAction {
				t.Errorf("action = %v, want %s", action, tt.wantAction)
			}
		})
	}
}

func TestHandleEncode(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)

	out := parseOutput(t, call(t, h.HandleEncode, map[string]any{
		"mode":      "sms",
		"form_data": map[string]any{"phone": "+1555", "body": "hello"},
	}))
	if out["content"] != "smsto:+1555:hello" {
		t.Errorf("content = %v", out["content"])
	}

	assertErrorCode(t, call(t, h.HandleEncode, map[string]any{"mode": "barcode"}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleEncode, map[string]any{"mode": 12}), "INVALID_REQUEST")
}

func TestHandleScan(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)

	var last map[string]any
	for i := 0; i < 4; i++ {
		last = parseOutput(t, call(t, h.HandleScan, map[string]any{
			"raw":       fmt.Sprintf("item %d", i),
			"code_type": "QR_CODE",
		}))
	}
	if last["scan_count"] != float64(4) {
		t.Errorf("scan_count = %v, want 4", last["scan_count"])
	}
	if last["show_interstitial"] != true {
		t.Error("show_interstitial should be true on the 4th scan")
	}
	entry := last["entry"].(map[string]any)
	if entry["list"] != "scanned" || entry["code_type"] != "QR_CODE" {
		t.Errorf("entry = %v", entry)
	}

	assertErrorCode(t, call(t, h.HandleScan, map[string]any{"raw": "   "}), "INVALID_REQUEST")
}

func TestHandleGenerate(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)

	tests := []struct {
		name      string
		args      map[string]any
		errorCode string
		saved     bool
	}{
		{
			name:  "save url",
			args:  map[string]any{"mode": "url", "form_data": map[string]any{"url": "example.com"}, "save": true},
			saved: true,
		},
		{
			name: "preview only",
			args: map[string]any{"mode": "text", "form_data": map[string]any{"text": "hi"}},
		},
		{
			name:      "blank payload",
			args:      map[string]any{"mode": "text", "form_data": map[string]any{"text": "  "}, "save": true},
			errorCode: "EMPTY_CONTENT",
		},
		{
			name:      "missing mode",
			args:      map[string]any{"form_data": map[string]any{"text": "x"}},
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, h.HandleGenerate, tt.args)
			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			out := parseOutput(t, result)
			_, hasEntry := out["entry"]
			if hasEntry != tt.saved {
				t.Errorf("entry present = %v, want %v", hasEntry, tt.saved)
			}
		})
	}

	list := parseOutput(t, call(t, h.HandleList, map[string]any{"list": "generated"}))
	if list["pagination"].(map[string]any)["total"] != float64(1) {
		t.Errorf("generated total = %v, want 1", list["pagination"])
	}
}

func TestHandleFetch(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	id := scanEntry(t, h, "mailto-me@example.com")

	out := parseOutput(t, call(t, h.HandleFetch, map[string]any{"list": "scanned", "id": id}))
	if out["favorite_key"] != "scanned:"+id {
		t.Errorf("favorite_key = %v", out["favorite_key"])
	}
	if out["kind"] != "email" {
		t.Errorf("kind = %v, want email", out["kind"])
	}

	assertErrorCode(t, call(t, h.HandleFetch, map[string]any{"list": "generated", "id": id}), "NOT_FOUND")
	assertErrorCode(t, call(t, h.HandleFetch, map[string]any{"list": "starred", "id": id}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleFetch, map[string]any{"list": "scanned"}), "INVALID_REQUEST")
}

func TestHandleListAndSearch(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	for _, raw := range []string{"https://a.example", "apple pie", "https://b.example"} {
		scanEntry(t, h, raw)
	}

	out := parseOutput(t, call(t, h.HandleList, map[string]any{"kind": "url", "limit": 1}))
	pagination := out["pagination"].(map[string]any)
	if pagination["total"] != float64(2) || pagination["has_more"] != true {
		t.Errorf("pagination = %v", pagination)
	}
	items := out["items"].([]any)
	if items[0].(map[string]any)["content"] != "https://b.example" {
		t.Errorf("first item = %v", items[0])
	}

	found := parseOutput(t, call(t, h.HandleSearch, map[string]any{"query": "APPLE"}))
	hits := found["items"].([]any)
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if snippet := hits[0].(map[string]any)["snippet"]; snippet != "<b>apple</b> pie" {
		t.Errorf("snippet = %v", snippet)
	}

	assertErrorCode(t, call(t, h.HandleSearch, map[string]any{}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleList, map[string]any{"kind": "barcode"}), "INVALID_REQUEST")
}

func TestHandleFavoriteActionDelete(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	id := scanEntry(t, h, "+15551234567")
	entry := map[string]any{"list": "scanned", "id": id}

	fav := parseOutput(t, call(t, h.HandleFavorite, entry))
	if fav["favorite"] != true {
		t.Errorf("favorite = %v, want true", fav["favorite"])
	}
	favs := parseOutput(t, call(t, h.HandleFavorites, map[string]any{}))
	if len(favs["items"].([]any)) != 1 {
		t.Errorf("favorites = %v", favs["items"])
	}

	action := parseOutput(t, call(t, h.HandleAction, entry))
	if action["type"] != "call" || action["target"] != "tel:+15551234567" {
		t.Errorf("action = %v", action)
	}

	deleted := parseOutput(t, call(t, h.HandleDelete, entry))
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v", deleted)
	}
	assertErrorCode(t, call(t, h.HandleDelete, entry), "NOT_FOUND")

	favs = parseOutput(t, call(t, h.HandleFavorites, map[string]any{}))
	if len(favs["items"].([]any)) != 0 {
		t.Errorf("favorite survived delete: %v", favs["items"])
	}
}

func TestHandleClear(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	scanEntry(t, h, "one")
	scanEntry(t, h, "two")

	out := parseOutput(t, call(t, h.HandleClear, map[string]any{"list": "scanned"}))
	if out["cleared"] != float64(2) {
		t.Errorf("cleared = %v, want 2", out["cleared"])
	}
	assertErrorCode(t, call(t, h.HandleClear, map[string]any{}), "INVALID_REQUEST")
}

func TestHandleExportImport(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	id := scanEntry(t, h, "export me")
	call(t, h.HandleFavorite, map[string]any{"list": "scanned", "id": id})

	path := filepath.Join(t.TempDir(), "history.jsonl")
	exported := parseOutput(t, call(t, h.HandleExport, map[string]any{"path": path}))
	if exported["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", exported["count"])
	}

	// Collision in the default mode
	collided := parseOutput(t, call(t, h.HandleImport, map[string]any{"path": path}))
	if collided["imported"] != float64(0) || len(collided["errors"].([]any)) != 1 {
		t.Errorf("import = %v", collided)
	}

	fresh, _ := testSetup(t)
	h2 := NewHandlers(fresh, cfg)
	imported := parseOutput(t, call(t, h2.HandleImport, map[string]any{"path": path, "mode": "skip"}))
	if imported["imported"] != float64(1) {
		t.Errorf("imported = %v, want 1", imported["imported"])
	}
	got := parseOutput(t, call(t, h2.HandleFetch, map[string]any{"list": "scanned", "id": id}))
	if got["favorite"] != true {
		t.Error("favorite flag lost on import")
	}

	assertErrorCode(t, call(t, h.HandleImport, map[string]any{"path": filepath.Join(t.TempDir(), "none.jsonl")}), "FILE_NOT_FOUND")
	assertErrorCode(t, call(t, h.HandleImport, map[string]any{"path": path, "mode": "merge"}), "INVALID_REQUEST")
}

func TestHandleSettings(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)

	defaults := parseOutput(t, call(t, h.HandleSettingsGet, nil))
	if defaults["theme"] != "system" || defaults["language"] != "en" {
		t.Errorf("defaults = %v", defaults)
	}

	updated := parseOutput(t, call(t, h.HandleSettingsUpdate, map[string]any{"theme": "dark", "has_seen_onboarding": true}))
	if updated["theme"] != "dark" || updated["has_seen_onboarding"] != true || updated["language"] != "en" {
		t.Errorf("updated = %v", updated)
	}

	assertErrorCode(t, call(t, h.HandleSettingsUpdate, map[string]any{"theme": "neon"}), "INVALID_REQUEST")

	scanEntry(t, h, "counted")
	reset := parseOutput(t, call(t, h.HandleResetCount, nil))
	if reset["scan_count"] != float64(0) {
		t.Errorf("scan_count = %v, want 0", reset["scan_count"])
	}
}

func TestServerRegistration(t *testing.T) {
	database, cfg := testSetup(t)

	s := NewServer(database, cfg, "test", nil)
	tools := s.ListTools()

	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}
	for _, name := range []string{"content_classify", "history_scan", "history_import", "settings_update"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg := testSetup(t)

	cfg.DisabledTools = []string{"history_clear", "history_import", "history_clear"}
	tools := NewServer(database, cfg, "test", nil).ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"history_clear", "history_import"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	database, cfg := testSetup(t)

	cfg.DisabledTypes = []string{"history", "settings"}
	tools := NewServer(database, cfg, "test", nil).ListTools()

	if len(tools) != 2 {
		t.Errorf("registered tool count = %d, want 2", len(tools))
	}
	for name := range tools {
		if GetTypeForTool(name) != "content" {
			t.Errorf("tool %q should be disabled", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	if tools := NewServer(database, cfg, "test", nil).ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabled(t *testing.T) {
	tests := []struct {
		name    string
		fn      func([]string) []string
		input   []string
		wantLen int
	}{
		{"tools all valid", ValidateDisabledTools, []string{"history_clear", "settings_get"}, 0},
		{"tools one unknown", ValidateDisabledTools, []string{"history_clear", "capsule_store"}, 1},
		{"tools empty", ValidateDisabledTools, []string{}, 0},
		{"types valid", ValidateDisabledTypes, []string{"content", "history"}, 0},
		{"types unknown", ValidateDisabledTypes, []string{"capsule", "ads"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := tt.fn(tt.input)
			if unknown == nil {
				t.Fatal("expected non-nil slice")
			}
			if len(unknown) != tt.wantLen {
				t.Errorf("returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestExpandTypesToTools(t *testing.T) {
	tools := ExpandTypesToTools([]string{"settings"})
	if len(tools) != 3 {
		t.Errorf("settings tools = %v, want 3", tools)
	}
	if ExpandTypesToTools(nil) != nil {
		t.Error("no types should expand to nil")
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	errObj := errorObject(t, r)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if strings.Contains(errObj["message"].(string), "secret.db") {
		t.Fatal("INTERNAL message leaked the underlying error")
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	r := errorResult(fmt.Errorf("line 3: %w", errors.NewNotFound("01ABC")))
	errObj := errorObject(t, r)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "line 3") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != "INTERNAL" || errObj["message"] != "an internal error occurred" {
		t.Errorf("error = %v", errObj)
	}
}

// Helper functions

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if !result.IsError {
		t.Fatal("expected IsError=true")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %v, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
