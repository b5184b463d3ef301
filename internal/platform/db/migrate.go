package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

const migrationSuffix = ".up.sql"

// Migrate applies every *.up.sql file in files whose version is not yet
// recorded in schema_migrations. Files run in lexical order, each in its own
// transaction. It returns the versions applied by this call.
func Migrate(ctx context.Context, runner Runner, conn DBTX, files fs.FS) ([]string, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}

	var done []string
	if err := conn.QueryRow(ctx, `SELECT COALESCE(array_agg(version), '{}') FROM schema_migrations`).Scan(&done); err != nil {
		return nil, fmt.Errorf("platform/db: read schema_migrations: %w", err)
	}
	applied := make(map[string]struct{}, len(done))
	for _, v := range done {
		applied[v] = struct{}{}
	}

	names, err := fs.Glob(files, "*"+migrationSuffix)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var ran []string
	for _, name := range names {
		version := strings.TrimSuffix(path.Base(name), migrationSuffix)
		if _, ok := applied[version]; ok {
			continue
		}
		body, err := fs.ReadFile(files, name)
		if err != nil {
			return ran, err
		}
		err = runner.InTx(ctx, func(ctx context.Context) error {
			q := Conn(ctx, conn)
			if _, err := q.Exec(ctx, string(body)); err != nil {
				return err
			}
			_, err := q.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("platform/db: migration %s: %w", version, err)
		}
		ran = append(ran, version)
	}
	return ran, nil
}
