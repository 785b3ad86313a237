package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"

	"github.com/hpungsan/smartqr/internal/content"
)

var (
	kindNames = lo.Map(content.Kinds(), func(k content.Kind, _ int) string { return string(k) })
	listNames = []string{"scanned", "generated"}
)

const formDataDescription = "Form fields for the mode. url: url. phone: phone. email: email. " +
	"sms: phone, body. wifi: ssid, password, security (WPA, WEP or nopass). " +
	"vcard: name, phone, email, organization. crypto: symbol (BTC or ETH), address. text: text. " +
	"Missing keys count as empty."

func listParam(required bool, desc string) mcp.ToolOption {
	opts := []mcp.PropertyOption{mcp.Description(desc), mcp.Enum(listNames...)}
	if required {
		opts = append(opts, mcp.Required())
	}
	return mcp.WithString("list", opts...)
}

func idParam() mcp.ToolOption {
	return mcp.WithString("id", mcp.Required(), mcp.Description("Entry ULID"))
}

func pageParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)"), mcp.Min(0), mcp.Max(100)),
		mcp.WithNumber("offset", mcp.Description("Entries to skip (default 0)"), mcp.Min(0)),
	}
}

var classifyToolDef = mcp.NewTool("content_classify",
	mcp.WithDescription("Classify scanned text into a typed payload (url, phone, email, sms, wifi, vcard, crypto or text) without storing it."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("raw", mcp.Required(), mcp.Description("Decoded text from the code")),
)

var encodeToolDef = mcp.NewTool("content_encode",
	mcp.WithDescription("Build the canonical QR payload for form data without storing it."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("mode", mcp.Required(), mcp.Enum(kindNames...)),
	mcp.WithObject("form_data", mcp.Description(formDataDescription), mcp.AdditionalProperties(map[string]any{"type": "string"})),
)

var scanToolDef = mcp.NewTool("history_scan",
	mcp.WithDescription("Record a scan: classify the text, store it in the scanned history and bump the scan counter."),
	mcp.WithString("raw", mcp.Required(), mcp.Description("Decoded text from the code")),
	mcp.WithString("code_type", mcp.Description("Symbology reported by the scanner, e.g. QR_CODE or EAN_13")),
)

var generateToolDef = mcp.NewTool("history_generate",
	mcp.WithDescription("Encode form data into a QR payload and optionally store it in the generated history. Blank payloads fail with EMPTY_CONTENT."),
	mcp.WithString("mode", mcp.Required(), mcp.Enum(kindNames...)),
	mcp.WithObject("form_data", mcp.Description(formDataDescription), mcp.AdditionalProperties(map[string]any{"type": "string"})),
	mcp.WithBoolean("save", mcp.Description("Store the result (default false)")),
)

var fetchToolDef = mcp.NewTool("history_fetch",
	mcp.WithDescription("Fetch one history entry with its favorite key and available action."),
	mcp.WithReadOnlyHintAnnotation(true),
	listParam(true, "History list"),
	idParam(),
)

var listToolDef = mcp.NewTool("history_list",
	append([]mcp.ToolOption{
		mcp.WithDescription("List history entries, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		listParam(false, "History list (omit for both)"),
		mcp.WithString("kind", mcp.Description("Only entries of this kind"), mcp.Enum(kindNames...)),
		mcp.WithBoolean("favorites_only", mcp.Description("Only favorited entries")),
	}, pageParams()...)...,
)

var searchToolDef = mcp.NewTool("history_search",
	append([]mcp.ToolOption{
		mcp.WithDescription("Case-insensitive substring search over stored content. Results carry an HTML snippet with <b> highlights."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to find (max 500 chars)")),
		listParam(false, "History list (omit for both)"),
	}, pageParams()...)...,
)

var deleteToolDef = mcp.NewTool("history_delete",
	mcp.WithDescription("Permanently delete one history entry and its favorite mark."),
	mcp.WithDestructiveHintAnnotation(true),
	listParam(true, "History list"),
	idParam(),
)

var clearToolDef = mcp.NewTool("history_clear",
	mcp.WithDescription("Permanently delete every entry of one history list."),
	mcp.WithDestructiveHintAnnotation(true),
	listParam(true, "History list to clear"),
)

var favoriteToolDef = mcp.NewTool("history_favorite",
	mcp.WithDescription("Toggle the favorite mark of a history entry."),
	listParam(true, "History list"),
	idParam(),
)

var favoritesToolDef = mcp.NewTool("history_favorites",
	append([]mcp.ToolOption{
		mcp.WithDescription("List favorited entries, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		listParam(false, "History list (omit for both)"),
	}, pageParams()...)...,
)

var actionToolDef = mcp.NewTool("history_action",
	mcp.WithDescription("Resolve the platform action for an entry: open_url, call, send_email or send_sms with its target URI."),
	mcp.WithReadOnlyHintAnnotation(true),
	listParam(true, "History list"),
	idParam(),
)

var exportToolDef = mcp.NewTool("history_export",
	mcp.WithDescription("Export history (favorites included) to a JSONL file. Default path: ~/.smartqr/exports/<list>-<timestamp>.jsonl."),
	mcp.WithString("path", mcp.Description("Destination .jsonl path")),
	listParam(false, "History list (omit for both)"),
)

var importToolDef = mcp.NewTool("history_import",
	mcp.WithDescription("Import history from a JSONL export file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .jsonl path")),
	mcp.WithString("mode", mcp.Description("Collision handling: error (atomic, default), skip or replace"), mcp.Enum("error", "skip", "replace")),
)

var settingsGetToolDef = mcp.NewTool("settings_get",
	mcp.WithDescription("Read user settings and the scan counter."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var settingsUpdateToolDef = mcp.NewTool("settings_update",
	mcp.WithDescription("Update user settings. Omitted fields are unchanged."),
	mcp.WithIdempotentHintAnnotation(true),
	mcp.WithString("theme", mcp.Enum("light", "dark", "system")),
	mcp.WithString("language", mcp.Description("BCP 47 language tag, e.g. en or pt-BR")),
	mcp.WithBoolean("has_seen_onboarding"),
)

var resetCountToolDef = mcp.NewTool("settings_reset_count",
	mcp.WithDescription("Reset the scan counter used for interstitial pacing."),
	mcp.WithIdempotentHintAnnotation(true),
)
