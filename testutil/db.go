// Package testutil provides shared helpers for integration tests.
// Helpers in this package skip automatically when TEST_DATABASE_URL is not
// set, so unit tests run without a database.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql

	"github.com/pkordes/easy-carpool/migrations"
)

// NewPool opens a *pgxpool.Pool connected to TEST_DATABASE_URL.
// The test is skipped if the variable is not set. The pool is closed when
// the test and its subtests finish.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := requireDSN(t)

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("testutil.NewPool: open pool: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("testutil.NewPool: ping: %v", err)
	}

	t.Cleanup(pool.Close)
	return pool
}

// NewTx begins a transaction on a fresh pool and rolls it back when the test
// finishes, so repos built on it leave no rows behind.
func NewTx(t *testing.T) pgx.Tx {
	t.Helper()

	pool := NewPool(t)
	tx, err := pool.Begin(context.Background())
	if err != nil {
		t.Fatalf("testutil.NewTx: begin: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})
	return tx
}

// NewSQLDB opens a *sql.DB connected to TEST_DATABASE_URL using the pgx
// database/sql driver, for goose. Closed when the test finishes.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := requireDSN(t)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("testutil.NewSQLDB: open: %v", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		t.Fatalf("testutil.NewSQLDB: ping: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// MigrateForMain applies all migrations to TEST_DATABASE_URL from a TestMain.
// It is a no-op when the variable is unset and panics on failure, since
// TestMain has no *testing.T to report through.
func MigrateForMain() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		return
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		panic("testutil.MigrateForMain: open: " + err.Error())
	}
	defer db.Close()

	if _, err := migrations.Up(context.Background(), db); err != nil {
		panic("testutil.MigrateForMain: " + err.Error())
	}
}

// requireDSN returns TEST_DATABASE_URL, skipping the test if it is not set.
func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	return dsn
}
