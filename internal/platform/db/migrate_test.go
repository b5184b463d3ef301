package db_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/platform/db"
)

type versionsRow struct {
	versions []string
	err      error
}

func (r versionsRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]string)) = r.versions
	return nil
}

type recordingConn struct {
	applied []string
	execs   []string
	failOn  string
}

func (c *recordingConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.failOn != "" && strings.Contains(sql, c.failOn) {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	c.execs = append(c.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (c *recordingConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (c *recordingConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return versionsRow{versions: c.applied}
}

func migrationFiles() fstest.MapFS {
	return fstest.MapFS{
		"0002_products.up.sql": {Data: []byte("CREATE TABLE products ();")},
		"0001_init.up.sql":     {Data: []byte("CREATE TABLE operators ();")},
		"0003_seed.up.sql":     {Data: []byte("INSERT INTO billing_methods;")},
		"README.md":            {Data: []byte("ignored")},
	}
}

func TestMigrateAppliesPendingInOrder(t *testing.T) {
	conn := &recordingConn{applied: []string{"0001_init"}}
	ran, err := db.Migrate(context.Background(), db.NoTx{}, conn, migrationFiles())
	require.NoError(t, err)
	require.Equal(t, []string{"0002_products", "0003_seed"}, ran)

	require.Contains(t, conn.execs[0], "CREATE TABLE IF NOT EXISTS schema_migrations")
	require.Equal(t, "CREATE TABLE products ();", conn.execs[1])
	require.Contains(t, conn.execs[2], "INSERT INTO schema_migrations")
	require.Equal(t, "INSERT INTO billing_methods;", conn.execs[3])
	require.Len(t, conn.execs, 5)
}

func TestMigrateStopsAtFailure(t *testing.T) {
	conn := &recordingConn{failOn: "billing_methods"}
	ran, err := db.Migrate(context.Background(), db.NoTx{}, conn, migrationFiles())
	require.Error(t, err)
	require.Contains(t, err.Error(), "0003_seed")
	require.Equal(t, []string{"0001_init", "0002_products"}, ran)
}
