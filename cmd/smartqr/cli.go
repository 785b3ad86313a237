package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/ops"
	"github.com/hpungsan/smartqr/internal/web"
)

// maxStdinBytes bounds piped input for scan and classify.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "smartqr",
		Usage:   "QR scan and generate history",
		Version: Version,
		// Wi-Fi passwords and vCard addresses may contain commas.
		DisableSliceFlagSeparator: true,
		Commands: []*cli.Command{
			classifyCmd(),
			encodeCmd(),
			scanCmd(db, cfg),
			generateCmd(db, cfg),
			fetchCmd(db),
			listCmd(db),
			favoritesCmd(db),
			searchCmd(db),
			deleteCmd(db),
			clearCmd(db),
			favoriteCmd(db),
			actionCmd(db),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			settingsCmd(db),
			resetCountCmd(db),
			serveCmd(db, cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func entryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "list", Aliases: []string{"l"}, Required: true, Usage: "History list: scanned|generated"},
	}
}

func formFlag() cli.Flag {
	return &cli.StringSliceFlag{Name: "field", Aliases: []string{"f"}, Usage: "Form field as key=value (repeatable)"}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Max results"},
		&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
	}
}

// rawInput returns the payload from the first argument or piped stdin.
func rawInput(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return c.Args().First(), nil
	}
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("raw content must be passed as an argument or piped via stdin")
	}
	raw, err := readStdin(maxStdinBytes)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	return raw, nil
}

// classifyCmd creates the classify command.
func classifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify raw content without saving it",
		ArgsUsage: "[raw]",
		Action: func(c *cli.Context) error {
			raw, err := rawInput(c)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(ops.Classify(ops.ClassifyInput{Raw: raw}))
		},
	}
}

// encodeCmd creates the encode command.
func encodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Build the payload for a mode without saving it",
		ArgsUsage: "<mode>",
		Flags:     []cli.Flag{formFlag()},
		Action: func(c *cli.Context) error {
			form, err := parseFields(c.StringSlice("field"))
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Encode(ops.EncodeInput{Mode: c.Args().First(), FormData: form})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// scanCmd creates the scan command.
func scanCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Record a scanned payload (argument or stdin)",
		ArgsUsage: "[raw]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "code-type", Aliases: []string{"t"}, Usage: "Symbology tag, e.g. QR_CODE"},
		},
		Action: func(c *cli.Context) error {
			raw, err := rawInput(c)
			if err != nil {
				return outputError(err)
			}

			input := ops.ScanInput{Raw: raw}
			if codeType := c.String("code-type"); codeType != "" {
				input.CodeType = &codeType
			}

			output, err := ops.Scan(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// generateCmd creates the generate command.
func generateCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate a payload from form fields",
		ArgsUsage: "<mode>",
		Flags: []cli.Flag{
			formFlag(),
			&cli.BoolFlag{Name: "no-save", Usage: "Do not record the result in the generated history"},
		},
		Action: func(c *cli.Context) error {
			form, err := parseFields(c.StringSlice("field"))
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Generate(c.Context, db, cfg, ops.GenerateInput{
				Mode:     c.Args().First(),
				FormData: form,
				Save:     !c.Bool("no-save"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a history entry",
		ArgsUsage: "<id>",
		Flags:     entryFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(c.Context, db, ops.FetchInput{
				List: c.String("list"),
				ID:   c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List history entries, newest first",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "list", Aliases: []string{"l"}, Usage: "History list: scanned|generated (default: both)"},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by content kind"},
			&cli.BoolFlag{Name: "favorites", Usage: "Only favorites"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, db, ops.ListInput{
				List:          c.String("list"),
				Kind:          c.String("kind"),
				FavoritesOnly: c.Bool("favorites"),
				Limit:         c.Int("limit"),
				Offset:        c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// favoritesCmd creates the favorites command.
func favoritesCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "favorites",
		Usage: "List favorite entries",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "list", Aliases: []string{"l"}, Usage: "History list: scanned|generated (default: both)"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			output, err := ops.Favorites(c.Context, db, ops.FavoritesInput{
				List:   c.String("list"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search history content",
		ArgsUsage: "<query>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "list", Aliases: []string{"l"}, Usage: "History list: scanned|generated (default: both)"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, db, ops.SearchInput{
				Query:  strings.Join(c.Args().Slice(), " "),
				List:   c.String("list"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a history entry",
		ArgsUsage: "<id>",
		Flags:     entryFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, db, ops.DeleteInput{
				List: c.String("list"),
				ID:   c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every entry in one history list",
		Flags: entryFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Clear(c.Context, db, ops.ClearInput{List: c.String("list")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// favoriteCmd creates the favorite command.
func favoriteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "Toggle the favorite flag of an entry",
		ArgsUsage: "<id>",
		Flags:     entryFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.ToggleFavorite(c.Context, db, ops.ToggleFavoriteInput{
				List: c.String("list"),
				ID:   c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// actionCmd creates the action command.
func actionCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "action",
		Usage:     "Show the platform action for an entry",
		ArgsUsage: "<id>",
		Flags:     entryFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Action(c.Context, db, ops.ActionInput{
				List: c.String("list"),
				ID:   c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export history to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.smartqr/exports/<list>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "list", Aliases: []string{"l"}, Usage: "History list: scanned|generated (default: both)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{
				Path: c.String("path"),
				List: c.String("list"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import history from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|skip|replace"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// settingsCmd shows settings, or updates them when any flag is given.
func settingsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or update settings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "theme", Usage: "light|dark|system"},
			&cli.StringFlag{Name: "language", Usage: "BCP 47 language tag"},
			&cli.BoolFlag{Name: "onboarded", Usage: "Mark onboarding as seen"},
		},
		Action: func(c *cli.Context) error {
			var input ops.UpdateSettingsInput
			if c.IsSet("theme") {
				theme := c.String("theme")
				input.Theme = &theme
			}
			if c.IsSet("language") {
				language := c.String("language")
				input.Language = &language
			}
			if c.IsSet("onboarded") {
				seen := c.Bool("onboarded")
				input.HasSeenOnboarding = &seen
			}

			var (
				output *ops.Settings
				err    error
			)
			if input.Theme == nil && input.Language == nil && input.HasSeenOnboarding == nil {
				output, err = ops.GetSettings(c.Context, db)
			} else {
				output, err = ops.UpdateSettings(c.Context, db, input)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// resetCountCmd creates the reset-count command.
func resetCountCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "reset-count",
		Usage: "Reset the scan counter",
		Action: func(c *cli.Context) error {
			output, err := ops.ResetScanCount(c.Context, db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd starts the history web UI.
func serveCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the history web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"), logger)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			fmt.Fprintf(os.Stderr, "smartqr: serving on http://%s\n", srv.Addr)
			return web.Run(srv, logger)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var qErr *errors.QRError
	if stderrors.As(err, &qErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", qErr.Code, qErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin. A single trailing newline
// is dropped; other whitespace is part of the payload.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

// parseFields converts key=value pairs into form data.
func parseFields(pairs []string) (map[string]string, error) {
	form := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("field %q must be key=value", p))
		}
		form[key] = value
	}
	return form, nil
}
