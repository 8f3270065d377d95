package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/easy-carpool/internal/domain"
)

// RideRepo defines the persistence operations for ride offers and their
// passengers. Reads are scoped by carpoolID to enforce ownership.
type RideRepo interface {
	// Create inserts a new ride offer without passengers and returns the
	// persisted record. A non-nil ride.ID is used as the row id, and
	// repeating a Create whose insert already landed returns that row.
	Create(ctx context.Context, ride domain.RideOffer) (domain.RideOffer, error)

	// GetByID retrieves a ride and its passengers.
	// Returns domain.ErrNotFound if no ride with that ID exists under the carpool.
	GetByID(ctx context.Context, carpoolID, rideID uuid.UUID) (domain.RideOffer, error)

	// ListByCarpool returns every ride in the carpool, oldest first, with passengers.
	ListByCarpool(ctx context.Context, carpoolID uuid.UUID) ([]domain.RideOffer, error)

	// Delete removes a ride and its passengers.
	// Returns domain.ErrNotFound if no ride with that ID exists under the carpool.
	Delete(ctx context.Context, carpoolID, rideID uuid.UUID) error

	// DeleteExpired removes every ride whose expires_at is before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// BookSeat appends passenger to the ride inside one transaction. The ride
	// row is locked, admit is called with its current state, and the insert
	// only happens if admit returns nil; otherwise admit's error is returned
	// and nothing is written. Returns the ride as committed.
	BookSeat(ctx context.Context, carpoolID, rideID uuid.UUID, passenger domain.Passenger, admit func(domain.RideOffer) error) (domain.RideOffer, error)
}

type pgRideRepo struct {
	db db
}

// NewRideRepo constructs a RideRepo backed by the provided db connection.
func NewRideRepo(db db) RideRepo {
	return &pgRideRepo{db: db}
}

const rideColumns = `
	id, carpool_id, driver_name, email, phone,
	departure_date, is_flexible, fixed_time, range_start, range_end,
	seats_total, luggage_space, prefer_to_drive, can_drive, notes,
	expires_at, created_at`

func (r *pgRideRepo) Create(ctx context.Context, ride domain.RideOffer) (domain.RideOffer, error) {
	const q = `
		INSERT INTO rides (
			id, carpool_id, driver_name, email, phone,
			departure_date, is_flexible, fixed_time, range_start, range_end,
			seats_total, luggage_space, prefer_to_drive, can_drive, notes, expires_at)
		VALUES (
			@id, @carpool_id, @driver_name, @email, @phone,
			@departure_date, @is_flexible, @fixed_time, @range_start, @range_end,
			@seats_total, @luggage_space, @prefer_to_drive, @can_drive, @notes, @expires_at)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + rideColumns

	luggage := ride.LuggageSpace
	if luggage == "" {
		luggage = domain.LuggageMedium
	}

	if ride.ID == uuid.Nil {
		ride.ID = uuid.New()
	}

	args := pgx.NamedArgs{
		"id":              ride.ID,
		"carpool_id":      ride.CarpoolID,
		"driver_name":     ride.DriverName,
		"email":           ride.Contact.Email,
		"phone":           ride.Contact.Phone,
		"departure_date":  ride.Departure.Date,
		"is_flexible":     ride.Departure.IsFlexible,
		"fixed_time":      ride.Departure.FixedTime,
		"range_start":     ride.Departure.RangeStart,
		"range_end":       ride.Departure.RangeEnd,
		"seats_total":     ride.SeatsTotal,
		"luggage_space":   string(luggage),
		"prefer_to_drive": ride.PreferToDrive,
		"can_drive":       ride.CanDrive,
		"notes":           ride.Notes,
		"expires_at":      ride.ExpiresAt, // nil becomes NULL
	}

	result, err := scanRide(r.db.QueryRow(ctx, q, args))
	if errors.Is(err, domain.ErrNotFound) {
		// ON CONFLICT skipped the insert: the row is there from an earlier attempt.
		result, err = getRide(ctx, r.db, ride.CarpoolID, ride.ID, false)
	}
	if err != nil {
		return domain.RideOffer{}, fmt.Errorf("repo.RideRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgRideRepo) GetByID(ctx context.Context, carpoolID, rideID uuid.UUID) (domain.RideOffer, error) {
	ride, err := getRide(ctx, r.db, carpoolID, rideID, false)
	if err != nil {
		return domain.RideOffer{}, fmt.Errorf("repo.RideRepo.GetByID: %w", err)
	}
	return ride, nil
}

func (r *pgRideRepo) ListByCarpool(ctx context.Context, carpoolID uuid.UUID) ([]domain.RideOffer, error) {
	const q = `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE carpool_id = @carpool_id
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"carpool_id": carpoolID})
	if err != nil {
		return nil, fmt.Errorf("repo.RideRepo.ListByCarpool: %w", err)
	}

	var rides []domain.RideOffer
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("repo.RideRepo.ListByCarpool: scan: %w", err)
		}
		rides = append(rides, ride)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.RideRepo.ListByCarpool: rows: %w", err)
	}

	if len(rides) == 0 {
		return rides, nil
	}

	ids := make([]uuid.UUID, len(rides))
	for i, ride := range rides {
		ids[i] = ride.ID
	}
	byRide, err := loadPassengers(ctx, r.db, ids)
	if err != nil {
		return nil, fmt.Errorf("repo.RideRepo.ListByCarpool: %w", err)
	}
	for i := range rides {
		rides[i].Passengers = byRide[rides[i].ID]
	}
	return rides, nil
}

func (r *pgRideRepo) Delete(ctx context.Context, carpoolID, rideID uuid.UUID) error {
	const q = `DELETE FROM rides WHERE id = @id AND carpool_id = @carpool_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": rideID, "carpool_id": carpoolID})
	if err != nil {
		return fmt.Errorf("repo.RideRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.RideRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgRideRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM rides WHERE expires_at IS NOT NULL AND expires_at < @now`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"now": now})
	if err != nil {
		return 0, fmt.Errorf("repo.RideRepo.DeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgRideRepo) BookSeat(
	ctx context.Context,
	carpoolID, rideID uuid.UUID,
	passenger domain.Passenger,
	admit func(domain.RideOffer) error,
) (domain.RideOffer, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.RideOffer{}, fmt.Errorf("repo.RideRepo.BookSeat: begin: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	ride, err := getRide(ctx, tx, carpoolID, rideID, true)
	if err != nil {
		return domain.RideOffer{}, fmt.Errorf("repo.RideRepo.BookSeat: %w", err)
	}

	// A retried call whose first commit landed finds its passenger already
	// seated; report the committed ride instead of booking twice.
	for _, p := range ride.Passengers {
		if p.ID == passenger.ID {
			return ride, nil
		}
	}

	if err := admit(ride); err != nil {
		return domain.RideOffer{}, fmt.Errorf("repo.RideRepo.BookSeat: %w", err)
	}

	const insert = `
		INSERT INTO ride_passengers (id, ride_id, name, email, phone, joined_at)
		VALUES (@id, @ride_id, @name, @email, @phone, @joined_at)`

	args := pgx.NamedArgs{
		"id":        passenger.ID,
		"ride_id":   rideID,
		"name":      passenger.Name,
		"email":     passenger.Contact.Email,
		"phone":     passenger.Contact.Phone,
		"joined_at": passenger.JoinedAt,
	}
	if _, err := tx.Exec(ctx, insert, args); err != nil {
		return domain.RideOffer{}, fmt.Errorf("repo.RideRepo.BookSeat: insert passenger: %w", err)
	}

	byRide, err := loadPassengers(ctx, tx, []uuid.UUID{rideID})
	if err != nil {
		return domain.RideOffer{}, fmt.Errorf("repo.RideRepo.BookSeat: %w", err)
	}
	ride.Passengers = byRide[rideID]

	if err := tx.Commit(ctx); err != nil {
		return domain.RideOffer{}, fmt.Errorf("repo.RideRepo.BookSeat: commit: %w", err)
	}
	return ride, nil
}

// getRide loads one ride with its passengers. With lock set the ride row is
// held FOR UPDATE until the surrounding transaction ends, which serializes
// concurrent bookings on the same ride.
func getRide(ctx context.Context, q db, carpoolID, rideID uuid.UUID, lock bool) (domain.RideOffer, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = @id AND carpool_id = @carpool_id`
	if lock {
		query += ` FOR UPDATE`
	}

	ride, err := scanRide(q.QueryRow(ctx, query, pgx.NamedArgs{"id": rideID, "carpool_id": carpoolID}))
	if err != nil {
		return domain.RideOffer{}, err
	}

	byRide, err := loadPassengers(ctx, q, []uuid.UUID{ride.ID})
	if err != nil {
		return domain.RideOffer{}, err
	}
	ride.Passengers = byRide[ride.ID]
	return ride, nil
}

// loadPassengers returns the passengers of each ride, in join order.
func loadPassengers(ctx context.Context, q db, rideIDs []uuid.UUID) (map[uuid.UUID][]domain.Passenger, error) {
	const query = `
		SELECT ride_id, id, name, email, phone, joined_at
		FROM ride_passengers
		WHERE ride_id = ANY(@ride_ids::uuid[])
		ORDER BY joined_at, id`

	ids := make([]string, len(rideIDs))
	for i, id := range rideIDs {
		ids[i] = id.String()
	}

	rows, err := q.Query(ctx, query, pgx.NamedArgs{"ride_ids": ids})
	if err != nil {
		return nil, fmt.Errorf("load passengers: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.Passenger, len(rideIDs))
	for rows.Next() {
		var (
			p           domain.Passenger
			rideID, pid pgtype.UUID
		)
		if err := rows.Scan(&rideID, &pid, &p.Name, &p.Contact.Email, &p.Contact.Phone, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("load passengers: scan: %w", err)
		}
		p.ID = uuid.UUID(pid.Bytes)
		key := uuid.UUID(rideID.Bytes)
		out[key] = append(out[key], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load passengers: rows: %w", err)
	}
	return out, nil
}

// scanRide maps a rides row into a domain.RideOffer without passengers.
func scanRide(s scanner) (domain.RideOffer, error) {
	var (
		r         domain.RideOffer
		id        pgtype.UUID
		carpoolID pgtype.UUID
		luggage   string
		expiresAt pgtype.Timestamptz
	)

	err := s.Scan(
		&id, &carpoolID, &r.DriverName, &r.Contact.Email, &r.Contact.Phone,
		&r.Departure.Date, &r.Departure.IsFlexible, &r.Departure.FixedTime,
		&r.Departure.RangeStart, &r.Departure.RangeEnd,
		&r.SeatsTotal, &luggage, &r.PreferToDrive, &r.CanDrive, &r.Notes,
		&expiresAt, &r.CreatedAt,
	)
	if err != nil {
		return domain.RideOffer{}, notFound(err)
	}

	r.ID = uuid.UUID(id.Bytes)
	r.CarpoolID = uuid.UUID(carpoolID.Bytes)
	r.LuggageSpace = domain.LuggageSpace(luggage)
	r.ExpiresAt = timePtr(expiresAt)
	return r, nil
}
