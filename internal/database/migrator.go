// Package database applies the schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.up.sql
var embedded embed.FS

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrator applies .up.sql migrations in lexical order, each in its own transaction.
// Applied names are recorded in schema_migrations and skipped on later runs.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger instance.
func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{
		db:  db,
		log: log,
	}
}

// Apply runs the migrations compiled into the binary.
func (m *Migrator) Apply(ctx context.Context) (int, error) {
	return m.ApplyFS(ctx, embedded, "migrations")
}

// ApplyDir runs the migrations found in a directory on disk.
func (m *Migrator) ApplyDir(ctx context.Context, dir string) (int, error) {
	return m.ApplyFS(ctx, os.DirFS(dir), ".")
}

// ApplyFS runs the pending migrations under root and returns how many were applied.
func (m *Migrator) ApplyFS(ctx context.Context, fsys fs.FS, root string) (int, error) {
	names, err := ListMigrations(fsys, root)
	if err != nil {
		return 0, fmt.Errorf("list migrations in %q: %w", root, err)
	}

	if len(names) == 0 {
		m.log.Info("no .up.sql migrations found", slog.String("root", root))
		return 0, nil
	}

	if _, err := m.db.ExecContext(ctx, createVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, name := range names {
		done, err := m.isApplied(ctx, name)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return applied, fmt.Errorf("read migration %q: %w", name, err)
		}

		if err := m.applyOne(ctx, name, string(data)); err != nil {
			return applied, err
		}
		applied++
	}

	m.log.Info("migrations applied", slog.Int("applied", applied), slog.Int("total", len(names)))
	return applied, nil
}

func (m *Migrator) isApplied(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %q: %w", name, err)
	}
	return exists, nil
}

func (m *Migrator) applyOne(ctx context.Context, name, body string) error {
	log := m.log.With(slog.String("file", name))

	statement := strings.TrimSpace(body)
	if statement == "" {
		log.Warn("migration is empty, skipping")
		return nil
	}

	log.Info("applying migration")

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", name, err)
	}

	rollback := func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("rollback error", slog.Any("error", rbErr))
		}
	}

	if _, err := tx.ExecContext(ctx, statement); err != nil {
		rollback()
		return fmt.Errorf("execute migration %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		rollback()
		return fmt.Errorf("record migration %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", name, err)
	}

	return nil
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files under root in lexical order.
func ListMigrations(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isUpMigration(e.Name()) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}
