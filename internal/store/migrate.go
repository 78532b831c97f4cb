package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/taskorch/tm/internal/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrateDB runs all pending migrations, backing up the database file first.
// A file lock prevents concurrent migration races. For in-memory databases
// (tests), both the lock and the backup are skipped.
func MigrateDB(db *sql.DB, dbPath, backupsDir string) error {
	if strings.Contains(dbPath, ":memory:") {
		return RunMigrations(db)
	}

	lockF, err := migrationLock(dbPath)
	if err != nil {
		return fmt.Errorf("migration lock: %w", err)
	}
	defer migrationUnlock(lockF)

	current, latest, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= latest {
		return nil // already current: apply is a no-op
	}

	if backupsDir != "" {
		if _, err := BackupDatabase(dbPath, backupsDir, current); err != nil {
			return fmt.Errorf("pre-migration backup: %w", err)
		}
	}

	return RunMigrations(db)
}

// SchemaVersion returns the current and latest migration versions.
// current comes from goose_db_version; latest is the highest version
// in the embedded migration files. Returns (0, latest, nil) for a fresh DB.
func SchemaVersion(db *sql.DB) (current int64, latest int64, err error) {
	goose.SetBaseFS(embedMigrations)
	goose.SetVerbose(false)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, 0, fmt.Errorf("set dialect: %w", err)
	}

	current, err = goose.GetDBVersion(db)
	if err != nil {
		// Fresh DB with no goose_db_version table: treat as version 0
		current = 0
	}

	latest, err = latestMigrationVersion()
	if err != nil {
		return current, 0, fmt.Errorf("determine latest version: %w", err)
	}
	return current, latest, nil
}

// EnsureCompatible refuses to operate on a database written by a newer
// release: its schema version exceeds the highest migration this build knows.
func EnsureCompatible(db *sql.DB) error {
	current, latest, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current > latest {
		return models.E(models.KindSchemaMismatch,
			"database schema version %d is newer than this build understands (%d)", current, latest)
	}
	return nil
}

// latestMigrationVersion reads the embedded migrations directory and returns
// the highest version number found.
func latestMigrationVersion() (int64, error) {
	entries, err := embedMigrations.ReadDir("migrations")
	if err != nil {
		return 0, fmt.Errorf("read migrations dir: %w", err)
	}
	var max int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		// Parse version from filename prefix "00003_name.sql" -> 3
		idx := strings.IndexByte(name, '_')
		if idx <= 0 {
			continue
		}
		v, err := strconv.ParseInt(name[:idx], 10, 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max, nil
}

// RunMigrations runs all pending migrations using goose. Applying each
// numbered migration is a single transaction; partial failure leaves the
// database unchanged.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetVerbose(false) // Suppress migration logs for clean JSON output
	goose.SetLogger(goose.NopLogger())

	// goose uses "sqlite3" as its dialect name regardless of the underlying driver.
	// We use modernc.org/sqlite (registered as "sqlite"), but goose's dialect
	// controls SQL generation, not the driver name.
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.Up(db, "migrations")
}

// BackupDatabase copies the database file into backupsDir as
// tasks-<version>-<ts>.db and returns the backup path.
func BackupDatabase(dbPath, backupsDir string, version int64) (string, error) {
	if err := os.MkdirAll(backupsDir, 0o755); err != nil {
		return "", fmt.Errorf("create backups dir: %w", err)
	}

	name := fmt.Sprintf("tasks-%d-%s.db", version, time.Now().UTC().Format("20060102T150405"))
	dst := filepath.Join(backupsDir, name)
	if err := copyFileSync(dbPath, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// RollbackDatabase restores the most recent backup over the database file,
// rewinding the schema version along with the data. The caller must have
// closed all connections to dbPath first.
func RollbackDatabase(dbPath, backupsDir string) (string, error) {
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		return "", fmt.Errorf("read backups dir: %w", err)
	}

	var backups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "tasks-") && strings.HasSuffix(e.Name(), ".db") {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) == 0 {
		return "", fmt.Errorf("no migration backups found in %s", backupsDir)
	}

	// Backup names embed a UTC timestamp, so lexicographic order is
	// chronological within a version; sort and take the newest.
	sort.Strings(backups)
	newest := filepath.Join(backupsDir, backups[len(backups)-1])

	// Remove WAL/SHM siblings so the restored file is opened cleanly.
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")

	if err := copyFileSync(newest, dbPath); err != nil {
		return "", fmt.Errorf("restore backup: %w", err)
	}
	return newest, nil
}

func copyFileSync(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: paths derived from trusted state dir
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // G304: see above
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}
