package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/errors"
)

func TestList_FiltersAndPagination(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	scanRaw(t, database, cfg, "https://a.example")
	scanRaw(t, database, cfg, "hello")
	scanRaw(t, database, cfg, "https://b.example")
	if _, err := Generate(ctx, database, cfg, GenerateInput{Mode: "phone", FormData: map[string]string{"phone": "123456"}, Save: true}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	all, err := List(ctx, database, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if all.Pagination.Total != 4 || all.Sort != "created_at_desc" {
		t.Errorf("all = total %d sort %s", all.Pagination.Total, all.Sort)
	}
	if all.Items[0].Kind != content.KindPhone {
		t.Errorf("most recent first: got %q", all.Items[0].Kind)
	}

	urls, err := List(ctx, database, ListInput{List: "scanned", Kind: "url"})
	if err != nil {
		t.Fatalf("List url failed: %v", err)
	}
	if urls.Pagination.Total != 2 || urls.Items[0].Content != "https://b.example" {
		t.Errorf("url filter = %+v", urls)
	}

	page, err := List(ctx, database, ListInput{List: "scanned", Limit: 2})
	if err != nil {
		t.Fatalf("List page failed: %v", err)
	}
	if len(page.Items) != 2 || !page.Pagination.HasMore {
		t.Errorf("first page = %d items, has_more %v", len(page.Items), page.Pagination.HasMore)
	}
	page, _ = List(ctx, database, ListInput{List: "scanned", Limit: 2, Offset: 2})
	if len(page.Items) != 1 || page.Pagination.HasMore {
		t.Errorf("second page = %d items, has_more %v", len(page.Items), page.Pagination.HasMore)
	}

	if _, err := List(ctx, database, ListInput{Kind: "barcode"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad kind = %v", err)
	}
	empty, err := List(ctx, database, ListInput{Kind: "vcard"})
	if err != nil || empty.Items == nil || len(empty.Items) != 0 {
		t.Errorf("empty result should be a non-nil empty slice: %+v, %v", empty, err)
	}
}

func TestSearch(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	scanRaw(t, database, cfg, "https://Example.com/<path>")
	scanRaw(t, database, cfg, "unrelated")

	out, err := Search(ctx, database, SearchInput{Query: "example"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if out.Pagination.Total != 1 {
		t.Fatalf("Total = %d, want 1", out.Pagination.Total)
	}
	if got := out.Items[0].Snippet; got != "https://<b>Example</b>.com/&lt;path&gt;" {
		t.Errorf("Snippet = %q", got)
	}

	if _, err := Search(ctx, database, SearchInput{Query: "  "}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("blank query = %v", err)
	}
	if _, err := Search(ctx, database, SearchInput{Query: strings.Repeat("q", MaxQueryLength+1)}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("long query = %v", err)
	}
}

func TestBuildSnippet(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		width int
		want  string
	}{
		{"whole text", "hello world", "WORLD", 20, "hello <b>world</b>"},
		{"cut both ends", "aaaaa-match-bbbbb", "match", 2, "...a-<b>match</b>-b..."},
		{"escapes", "<a>&b", "&", 5, "&lt;a&gt;<b>&amp;</b>b"},
		{"no match short", "abc", "zzz", 5, "abc"},
		{"no match long", "abcdefghijkl", "zzz", 2, "abcd..."},
		{"unicode", "Grüße aus Köln", "köln", 3, "...us <b>Köln</b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSnippet(tt.text, tt.query, tt.width); got != tt.want {
				t.Errorf("buildSnippet = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFavorites_ToggleAndDelete(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	entry := scanRaw(t, database, cfg, "mailto-less@example.com").Entry
	scanRaw(t, database, cfg, "other")

	tog, err := ToggleFavorite(ctx, database, ToggleFavoriteInput{List: "scanned", ID: entry.ID})
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if !tog.Favorite || tog.FavoriteKey != "scanned:"+entry.ID {
		t.Errorf("toggle on = %+v", tog)
	}

	favs, err := Favorites(ctx, database, FavoritesInput{})
	if err != nil {
		t.Fatalf("Favorites failed: %v", err)
	}
	if favs.Pagination.Total != 1 || favs.Items[0].ID != entry.ID || !favs.Items[0].Favorite {
		t.Errorf("favorites = %+v", favs.Items)
	}

	tog, _ = ToggleFavorite(ctx, database, ToggleFavoriteInput{List: "scanned", ID: entry.ID})
	if tog.Favorite {
		t.Error("second toggle should clear the favorite")
	}
	ToggleFavorite(ctx, database, ToggleFavoriteInput{List: "scanned", ID: entry.ID}) //nolint:errcheck

	del, err := Delete(ctx, database, DeleteInput{List: "scanned", ID: entry.ID})
	if err != nil || !del.Deleted {
		t.Fatalf("Delete = %+v, %v", del, err)
	}
	favs, _ = Favorites(ctx, database, FavoritesInput{})
	if favs.Pagination.Total != 0 {
		t.Errorf("favorite survived delete: %+v", favs.Items)
	}

	if _, err := Delete(ctx, database, DeleteInput{List: "scanned", ID: entry.ID}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete = %v, want NOT_FOUND", err)
	}
	if _, err := ToggleFavorite(ctx, database, ToggleFavoriteInput{List: "scanned", ID: "missing"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("toggle missing = %v, want NOT_FOUND", err)
	}
	if _, err := Delete(ctx, database, DeleteInput{List: "scanned"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("delete without id = %v, want INVALID_REQUEST", err)
	}
}

func TestClear(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	scanRaw(t, database, cfg, "a")
	scanRaw(t, database, cfg, "b")
	if _, err := Generate(ctx, database, cfg, GenerateInput{Mode: "text", FormData: map[string]string{"text": "c"}, Save: true}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out, err := Clear(ctx, database, ClearInput{List: "scanned"})
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if out.Cleared != 2 {
		t.Errorf("Cleared = %d, want 2", out.Cleared)
	}

	rest, _ := List(ctx, database, ListInput{})
	if rest.Pagination.Total != 1 || rest.Items[0].Content != "c" {
		t.Errorf("remaining = %+v", rest.Items)
	}

	if _, err := Clear(ctx, database, ClearInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("clear without list = %v", err)
	}
}

func TestSettings(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	s, err := GetSettings(ctx, database)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if *s != (Settings{Theme: "system", Language: "en"}) {
		t.Errorf("defaults = %+v", s)
	}

	s, err = UpdateSettings(ctx, database, UpdateSettingsInput{
		Theme:             stringPtr(" Dark "),
		Language:          stringPtr("pt-BR"),
		HasSeenOnboarding: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if s.Theme != "dark" || s.Language != "pt-BR" || !s.HasSeenOnboarding {
		t.Errorf("updated = %+v", s)
	}

	// Partial update leaves the rest alone
	s, err = UpdateSettings(ctx, database, UpdateSettingsInput{Theme: stringPtr("light")})
	if err != nil {
		t.Fatalf("partial UpdateSettings failed: %v", err)
	}
	if s.Theme != "light" || s.Language != "pt-BR" {
		t.Errorf("partial = %+v", s)
	}

	if _, err := UpdateSettings(ctx, database, UpdateSettingsInput{Theme: stringPtr("neon")}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad theme = %v", err)
	}
	if _, err := UpdateSettings(ctx, database, UpdateSettingsInput{Language: stringPtr("not a tag!")}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad language = %v", err)
	}

	scanRaw(t, database, cfg, "x")
	scanRaw(t, database, cfg, "y")
	s, _ = GetSettings(ctx, database)
	if s.ScanCount != 2 {
		t.Errorf("ScanCount = %d, want 2", s.ScanCount)
	}
	s, err = ResetScanCount(ctx, database)
	if err != nil || s.ScanCount != 0 {
		t.Errorf("ResetScanCount = %+v, %v", s, err)
	}
	if out := scanRaw(t, database, cfg, "z"); out.ScanCount != 1 {
		t.Errorf("ScanCount after reset = %d, want 1", out.ScanCount)
	}
}

func TestAction(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	tests := []struct {
		raw    string
		typ    content.ActionType
		target string
	}{
		{"https://example.com", content.ActionOpenURL, "https://example.com"},
		{"+15551234567", content.ActionCall, "tel:+15551234567"},
		{"jane@example.com", content.ActionSendEmail, "mailto:jane@example.com"},
		{"SMSTO:+15551234567:Hi there", content.ActionSendSMS, "sms:+15551234567?body=Hi%20there"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			entry := scanRaw(t, database, cfg, tt.raw).Entry
			action, err := Action(ctx, database, ActionInput{List: "scanned", ID: entry.ID})
			if err != nil {
				t.Fatalf("Action failed: %v", err)
			}
			if action.Type != tt.typ || action.Target != tt.target {
				t.Errorf("Action = %+v, want %s %s", action, tt.typ, tt.target)
			}
		})
	}

	wifi := scanRaw(t, database, cfg, "WIFI:S:x;;").Entry
	if _, err := Action(ctx, database, ActionInput{List: "scanned", ID: wifi.ID}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("wifi action = %v, want INVALID_REQUEST", err)
	}
}

func TestAction_GeneratedEntries(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	tests := []struct {
		mode   string
		form   map[string]string
		typ    content.ActionType
		target string
	}{
		{"url", map[string]string{"url": "example.com"}, content.ActionOpenURL, "https://example.com"},
		{"phone", map[string]string{"phone": "+15551234567"}, content.ActionCall, "tel:+15551234567"},
		{"email", map[string]string{"email": "jane@x.com"}, content.ActionSendEmail, "mailto:jane@x.com"},
		{"sms", map[string]string{"phone": "+1555", "body": "Hi there"}, content.ActionSendSMS, "sms:+1555?body=Hi%20there"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			gen, err := Generate(ctx, database, cfg, GenerateInput{Mode: tt.mode, FormData: tt.form, Save: true})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}

			action, err := Action(ctx, database, ActionInput{List: "generated", ID: gen.Entry.ID})
			if err != nil {
				t.Fatalf("Action failed: %v", err)
			}
			if action.Type != tt.typ || action.Target != tt.target {
				t.Errorf("Action = %+v, want %s %s", action, tt.typ, tt.target)
			}

			fetched, err := Fetch(ctx, database, FetchInput{List: "generated", ID: gen.Entry.ID})
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if fetched.Kind != content.Kind(tt.mode) || fetched.Action == nil || *fetched.Action != *action {
				t.Errorf("Fetch = kind %s action %+v, want %+v", fetched.Kind, fetched.Action, action)
			}
		})
	}
}
