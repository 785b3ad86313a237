package mcp

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/hpungsan/smartqr/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"content", "history", "settings"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"content_classify": {
		def:     classifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassify },
	},
	"content_encode": {
		def:     encodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEncode },
	},
	"history_scan": {
		def:     scanToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScan },
	},
	"history_generate": {
		def:     generateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGenerate },
	},
	"history_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"history_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"history_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"history_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"history_clear": {
		def:     clearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClear },
	},
	"history_favorite": {
		def:     favoriteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFavorite },
	},
	"history_favorites": {
		def:     favoritesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFavorites },
	},
	"history_action": {
		def:     actionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAction },
	},
	"history_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"history_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"settings_get": {
		def:     settingsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsGet },
	},
	"settings_update": {
		def:     settingsUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsUpdate },
	},
	"settings_reset_count": {
		def:     resetCountToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResetCount },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	return lo.Keys(toolRegistry)
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := lo.Filter(names, func(name string, _ int) bool {
		_, ok := toolRegistry[name]
		return !ok
	})
	return lo.Ternary(unknown == nil, []string{}, unknown)
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	unknown := lo.Without(names, KnownTypes...)
	return lo.Ternary(unknown == nil, []string{}, unknown)
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "history_scan" → "history").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	return lo.Filter(AllToolNames(), func(name string, _ int) bool {
		return lo.Contains(types, GetTypeForTool(name))
	})
}

// NewServer creates a new MCP server with SmartQR tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, version string, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"smartqr",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(logToolCalls(logger)),
	)

	h := NewHandlers(db, cfg)

	disabled := lo.SliceToMap(append(ExpandTypesToTools(cfg.DisabledTypes), cfg.DisabledTools...),
		func(name string) (string, bool) { return name, true })

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// logToolCalls logs each tool invocation with its outcome and latency.
func logToolCalls(logger *zap.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			result, err := next(ctx, req)

			fields := []zap.Field{
				zap.String("tool", req.Params.Name),
				zap.Duration("elapsed", time.Since(start)),
			}
			switch {
			case err != nil:
				logger.Error("tool call failed", append(fields, zap.Error(err))...)
			case result != nil && result.IsError:
				logger.Info("tool call returned error", fields...)
			default:
				logger.Debug("tool call", fields...)
			}
			return result, err
		}
	}
}

// Run starts the MCP server using stdio transport. Logs go to the
// logger, never to stdout, which carries the protocol.
func Run(db *sql.DB, cfg *config.Config, version string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := NewServer(db, cfg, version, logger)
	logger.Info("mcp server starting", zap.String("version", version), zap.Int("tools", len(s.ListTools())))
	return server.ServeStdio(s, server.WithErrorLogger(zap.NewStdLog(logger)))
}
