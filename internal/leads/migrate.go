package leads

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

var migrationsTable = map[dialect]string{
	dialectSQLite: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	dialectPostgres: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// migrate applies the embedded migrations for d that are not yet recorded
// in schema_migrations, in filename order, each in its own transaction.
func migrate(ctx context.Context, db *sql.DB, d dialect, log *slog.Logger) error {
	dir := path.Join("migrations", d.migrationsDir())
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, migrationsTable[d]); err != nil {
		return errors.Wrap(err, "ensure schema_migrations")
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, name := range files {
		version, err := parseVersion(name)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return errors.Wrapf(err, "read %s", name)
		}
		log.Info("applying migration", "name", name)
		if err := applyOne(ctx, db, d, version, name, string(b)); err != nil {
			return errors.Wrapf(err, "apply %s", name)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, errors.Wrap(err, "select schema_migrations")
	}
	defer func() { _ = rows.Close() }()
	applied := map[int64]bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		applied[v] = true
	}
	return applied, errors.Wrap(rows.Err(), "iterate schema_migrations")
}

func applyOne(ctx context.Context, db *sql.DB, d dialect, version int64, name, sqlText string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(sqlText) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`), version, name); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements splits a migration file on semicolons. Migration files
// must not contain semicolons inside literals.
func splitStatements(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseVersion(name string) (int64, error) {
	prefix, _, _ := strings.Cut(path.Base(name), "_")
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse version from %s", name)
	}
	return v, nil
}
