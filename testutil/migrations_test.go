package testutil_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/easy-carpool/migrations"
	"github.com/pkordes/easy-carpool/testutil"
)

// carpoolTables are the tables that hang off a carpool row.
var carpoolTables = []string{"rides", "ride_passengers", "waitlist_entries", "registration_pointers"}

var changeTriggers = []string{"rides_notify", "ride_passengers_notify", "waitlist_entries_notify"}

// TestMigrations applies the schema from scratch, checks the constraints
// and triggers the services rely on, then rolls everything back.
// Skipped when TEST_DATABASE_URL is not set.
func TestMigrations(t *testing.T) {
	db := testutil.NewSQLDB(t)
	ctx := context.Background()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	require.NoError(t, err, "create goose provider")

	// Other packages migrate the shared test database in TestMain; start
	// from zero and leave it migrated for them.
	_, err = provider.DownTo(ctx, 0)
	require.NoError(t, err, "initial reset")
	t.Cleanup(func() { _, _ = provider.Up(context.Background()) })

	results, err := provider.Up(ctx)
	require.NoError(t, err, "goose up")
	assert.NotEmpty(t, results)

	for _, table := range append([]string{"carpools"}, carpoolTables...) {
		assert.True(t, tableExists(t, db, table), "table %q after up", table)
	}
	for _, trigger := range changeTriggers {
		assert.True(t, triggerExists(t, db, trigger), "trigger %q after up", trigger)
	}

	t.Run("seats_total must be positive", func(t *testing.T) {
		carpoolID := insertCarpool(t, db)
		_, err := db.ExecContext(ctx,
			`INSERT INTO rides (carpool_id, driver_name, seats_total) VALUES ($1, 'Dana', 0)`, carpoolID)

		var pgErr *pgconn.PgError
		require.True(t, errors.As(err, &pgErr), "expected a postgres error, got %v", err)
		assert.Equal(t, "23514", pgErr.Code, "check_violation")
	})

	t.Run("ride changes are announced", func(t *testing.T) {
		pool := testutil.NewPool(t)
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Release()
		_, err = conn.Exec(ctx, "LISTEN carpool_changes")
		require.NoError(t, err)

		carpoolID := insertCarpool(t, db)
		insertRide(t, db, carpoolID)

		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		n, err := conn.Conn().WaitForNotification(waitCtx)
		require.NoError(t, err)
		assert.Equal(t, "carpool_changes", n.Channel)
		assert.Equal(t, carpoolID.String()+":rides", n.Payload)
	})

	t.Run("deleting a carpool cascades", func(t *testing.T) {
		carpoolID := insertCarpool(t, db)
		rideID := insertRide(t, db, carpoolID)
		_, err := db.ExecContext(ctx,
			`INSERT INTO ride_passengers (ride_id, name) VALUES ($1, 'Pat')`, rideID)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx,
			`INSERT INTO waitlist_entries (carpool_id, name) VALUES ($1, 'Robin')`, carpoolID)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx,
			`INSERT INTO registration_pointers (participant_id, carpool_id, kind, registration_id)
			 VALUES ('device-1', $1, 'ride', $2)`, carpoolID, rideID)
		require.NoError(t, err)

		_, err = db.ExecContext(ctx, `DELETE FROM carpools WHERE id = $1`, carpoolID)
		require.NoError(t, err)

		assert.Zero(t, countRows(t, db, `SELECT count(*) FROM rides WHERE carpool_id = $1`, carpoolID))
		assert.Zero(t, countRows(t, db, `SELECT count(*) FROM ride_passengers WHERE ride_id = $1`, rideID))
		assert.Zero(t, countRows(t, db, `SELECT count(*) FROM waitlist_entries WHERE carpool_id = $1`, carpoolID))
		assert.Zero(t, countRows(t, db, `SELECT count(*) FROM registration_pointers WHERE carpool_id = $1`, carpoolID))
	})

	_, err = provider.DownTo(ctx, 0)
	require.NoError(t, err, "goose down-to 0")

	for _, trigger := range changeTriggers {
		assert.False(t, triggerExists(t, db, trigger), "trigger %q after down", trigger)
	}
	for _, table := range append([]string{"carpools"}, carpoolTables...) {
		assert.False(t, tableExists(t, db, table), "table %q after down", table)
	}
}

func insertCarpool(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO carpools (name, owner_contact, time_zone)
		 VALUES ('Lake Weekend', 'owner@example.com', 'America/Chicago') RETURNING id`,
	).Scan(&id)
	require.NoError(t, err, "insert carpool")
	return id
}

func insertRide(t *testing.T, db *sql.DB, carpoolID uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO rides (carpool_id, driver_name, seats_total) VALUES ($1, 'Dana', 2) RETURNING id`,
		carpoolID,
	).Scan(&id)
	require.NoError(t, err, "insert ride")
	return id
}

func countRows(t *testing.T, db *sql.DB, q string, arg any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), q, arg).Scan(&n))
	return n
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`
	var exists bool
	require.NoError(t, db.QueryRowContext(context.Background(), q, table).Scan(&exists), "table %q", table)
	return exists
}

func triggerExists(t *testing.T, db *sql.DB, trigger string) bool {
	t.Helper()
	const q = `SELECT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = $1 AND NOT tgisinternal)`
	var exists bool
	require.NoError(t, db.QueryRowContext(context.Background(), q, trigger).Scan(&exists), "trigger %q", trigger)
	return exists
}
