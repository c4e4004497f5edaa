package database

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration represents a single schema migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// dialectTokens fills the placeholders that differ between engines.
var dialectTokens = map[Dialect]*strings.Replacer{
	DialectPostgres: strings.NewReplacer(
		"{{AUTO_ID}}", "BIGSERIAL PRIMARY KEY",
		"{{TIMESTAMP}}", "TIMESTAMPTZ",
	),
	DialectSQLite: strings.NewReplacer(
		"{{AUTO_ID}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{TIMESTAMP}}", "TIMESTAMP",
	),
}

// LoadMigrations returns the embedded migrations rendered for dialect, in
// version order.
func LoadMigrations(dialect Dialect) ([]Migration, error) {
	replacer, ok := dialectTokens[dialect]
	if !ok {
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}

	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(filename, ".up.sql") {
			continue
		}

		// 000001_name.up.sql
		prefix, rest, found := strings.Cut(filename, "_")
		if !found {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(prefix, "%d", &version); err != nil {
			nuts.L.Warnf("[Migrations] Skipping invalid migration file: %s", filename)
			continue
		}

		content, err := migrationFiles.ReadFile("sql/" + filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(rest, ".up.sql"),
			SQL:     replacer.Replace(string(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies every migration that has not been recorded in
// schema_migrations yet. Each migration runs in its own transaction.
func Migrate(ctx context.Context, db DB) error {
	migrations, err := LoadMigrations(db.Dialect())
	if err != nil {
		return err
	}

	conn := db.GetDB()
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at `+timestampType(db.Dialect())+` NOT NULL
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var applied []int
	if err := conn.SelectContext(ctx, &applied, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		nuts.L.Infof("[Migrations] Applied %06d_%s", m.Version, m.Name)
	}
	return nil
}

func applyMigration(ctx context.Context, db DB, m Migration) error {
	tx, err := db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
	}

	insert := tx.Rebind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)")
	if _, err := tx.ExecContext(ctx, insert, m.Version, m.Name, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}

// splitStatements breaks a migration file on semicolons. Migrations must not
// contain semicolons inside literals.
func splitStatements(sql string) []string {
	var out []string
	for _, part := range strings.Split(sql, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func timestampType(d Dialect) string {
	if d == DialectSQLite {
		return "TIMESTAMP"
	}
	return "TIMESTAMPTZ"
}
