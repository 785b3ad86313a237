package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for each tool

// ClassifyRequest represents the arguments for content_classify and history_scan.
type ClassifyRequest struct {
	Raw      string  `json:"raw"`
	CodeType *string `json:"code_type,omitempty"`
}

// EncodeRequest represents the arguments for content_encode and history_generate.
type EncodeRequest struct {
	Mode     string            `json:"mode"`
	FormData map[string]string `json:"form_data,omitempty"`
	Save     bool              `json:"save,omitempty"`
}

// EntryRequest addresses one history entry.
type EntryRequest struct {
	List string `json:"list"`
	ID   string `json:"id"`
}

// ListRequest represents the arguments for history_list and history_favorites.
type ListRequest struct {
	List          string `json:"list,omitempty"`
	Kind          string `json:"kind,omitempty"`
	FavoritesOnly bool   `json:"favorites_only,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// SearchRequest represents the arguments for history_search.
type SearchRequest struct {
	Query  string `json:"query"`
	List   string `json:"list,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ExportRequest represents the arguments for history_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
	List string `json:"list,omitempty"`
}

// ImportRequest represents the arguments for history_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// SettingsRequest represents the arguments for settings_update.
type SettingsRequest struct {
	Theme             *string `json:"theme,omitempty"`
	Language          *string `json:"language,omitempty"`
	HasSeenOnboarding *bool   `json:"has_seen_onboarding,omitempty"`
}

// handle binds the request arguments into R and passes it to fn, converting
// errors into tool error results. Binding goes through JSON so numbers that
// arrive as float64 land in int fields.
func handle[R any](req mcp.CallToolRequest, fn func(R) (any, error)) (*mcp.CallToolResult, error) {
	var input R
	if err := req.BindArguments(&input); err != nil {
		return errorResult(errors.NewInvalidRequest(fmt.Sprintf("invalid arguments: %v", err))), nil
	}
	result, err := fn(input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Handler implementations

// HandleClassify handles the content_classify tool call.
func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in ClassifyRequest) (any, error) {
		return ops.Classify(ops.ClassifyInput{Raw: in.Raw}), nil
	})
}

// HandleEncode handles the content_encode tool call.
func (h *Handlers) HandleEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in EncodeRequest) (any, error) {
		return ops.Encode(ops.EncodeInput{Mode: in.Mode, FormData: in.FormData})
	})
}

// HandleScan handles the history_scan tool call.
func (h *Handlers) HandleScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in ClassifyRequest) (any, error) {
		return ops.Scan(ctx, h.db, h.cfg, ops.ScanInput{Raw: in.Raw, CodeType: in.CodeType})
	})
}

// HandleGenerate handles the history_generate tool call.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in EncodeRequest) (any, error) {
		return ops.Generate(ctx, h.db, h.cfg, ops.GenerateInput{Mode: in.Mode, FormData: in.FormData, Save: in.Save})
	})
}

// HandleFetch handles the history_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in EntryRequest) (any, error) {
		return ops.Fetch(ctx, h.db, ops.FetchInput{List: in.List, ID: in.ID})
	})
}

// HandleList handles the history_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in ListRequest) (any, error) {
		return ops.List(ctx, h.db, ops.ListInput{
			List:          in.List,
			Kind:          in.Kind,
			FavoritesOnly: in.FavoritesOnly,
			Limit:         in.Limit,
			Offset:        in.Offset,
		})
	})
}

// HandleSearch handles the history_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in SearchRequest) (any, error) {
		return ops.Search(ctx, h.db, ops.SearchInput{
			Query:  in.Query,
			List:   in.List,
			Limit:  in.Limit,
			Offset: in.Offset,
		})
	})
}

// HandleDelete handles the history_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in EntryRequest) (any, error) {
		return ops.Delete(ctx, h.db, ops.DeleteInput{List: in.List, ID: in.ID})
	})
}

// HandleClear handles the history_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in EntryRequest) (any, error) {
		return ops.Clear(ctx, h.db, ops.ClearInput{List: in.List})
	})
}

// HandleFavorite handles the history_favorite tool call.
func (h *Handlers) HandleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in EntryRequest) (any, error) {
		return ops.ToggleFavorite(ctx, h.db, ops.ToggleFavoriteInput{List: in.List, ID: in.ID})
	})
}

// HandleFavorites handles the history_favorites tool call.
func (h *Handlers) HandleFavorites(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in ListRequest) (any, error) {
		return ops.Favorites(ctx, h.db, ops.FavoritesInput{List: in.List, Limit: in.Limit, Offset: in.Offset})
	})
}

// HandleAction handles the history_action tool call.
func (h *Handlers) HandleAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in EntryRequest) (any, error) {
		return ops.Action(ctx, h.db, ops.ActionInput{List: in.List, ID: in.ID})
	})
}

// HandleExport handles the history_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in ExportRequest) (any, error) {
		return ops.Export(ctx, h.db, h.cfg, ops.ExportInput{Path: in.Path, List: in.List})
	})
}

// HandleImport handles the history_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in ImportRequest) (any, error) {
		return ops.Import(ctx, h.db, h.cfg, ops.ImportInput{Path: in.Path, Mode: ops.ImportMode(in.Mode)})
	})
}

// HandleSettingsGet handles the settings_get tool call.
func (h *Handlers) HandleSettingsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.GetSettings(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSettingsUpdate handles the settings_update tool call.
func (h *Handlers) HandleSettingsUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handle(req, func(in SettingsRequest) (any, error) {
		return ops.UpdateSettings(ctx, h.db, ops.UpdateSettingsInput{
			Theme:             in.Theme,
			Language:          in.Language,
			HasSeenOnboarding: in.HasSeenOnboarding,
		})
	})
}

// HandleResetCount handles the settings_reset_count tool call.
func (h *Handlers) HandleResetCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ResetScanCount(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Details of INTERNAL errors are never exposed (file paths, SQL text).
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var qErr *errors.QRError
	if stderrors.As(err, &qErr) {
		// Keep wrapper context when the error was wrapped
		msg := qErr.Message
		if err != error(qErr) {
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    qErr.Code,
			"message": msg,
			"status":  qErr.Status,
		}
		if qErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if qErr.Details != nil {
			errorObj["details"] = qErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
