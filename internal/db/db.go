package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/smartqr/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the database file created under the base directory.
const FileName = "smartqr.db"

// ExportsDirName is the exports subdirectory created next to the database.
const ExportsDirName = "exports"

// Querier is satisfied by both *sql.DB and *sql.Tx, so every query can run
// standalone or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// migrations[i] upgrades the schema from user_version i to i+1.
var migrations = []string{
	// 1: history, favorites, settings
	`
	CREATE TABLE IF NOT EXISTS history_items (
	  id          TEXT PRIMARY KEY,
	  list        TEXT NOT NULL,
	  kind        TEXT NOT NULL,
	  content     TEXT NOT NULL,
	  code_type   TEXT,
	  fields_json TEXT NOT NULL,
	  created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_list_created
	ON history_items(list, created_at DESC, id DESC);

	CREATE INDEX IF NOT EXISTS idx_history_kind
	ON history_items(list, kind);

	CREATE TABLE IF NOT EXISTS favorites (
	  list       TEXT NOT NULL,
	  item_id    TEXT NOT NULL,
	  created_at INTEGER NOT NULL,
	  PRIMARY KEY (list, item_id)
	);

	CREATE TABLE IF NOT EXISTS settings (
	  key   TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	);
	`,
}

// CurrentSchemaVersion is the user_version after all migrations have run.
var CurrentSchemaVersion = len(migrations)

// Init opens (creating if needed) the SQLite database at baseDir/smartqr.db,
// together with baseDir/exports, and brings the schema up to date.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.smartqr.
func Init(baseDir string) (*sql.DB, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, ExportsDirName)} {
		if err := ensurePrivateDir(dir); err != nil {
			return nil, err
		}
	}

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, step := range []func(*sql.DB) error{verifyWALMode, migrate} {
		if err := step(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	_ = os.Chmod(dbPath, 0600)
	return db, nil
}

// ensurePrivateDir creates dir with 0700. The chmod is best-effort for
// directories that already existed with looser permissions.
func ensurePrivateDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	_ = os.Chmod(dir, 0700)
	return nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate runs every migration above the stored user_version, bumping the
// version after each one.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if err := SetUserVersion(db, v+1); err != nil {
			return err
		}
	}
	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
