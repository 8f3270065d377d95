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

// WaitlistRepo defines the persistence operations for waitlist entries.
type WaitlistRepo interface {
	// Create inserts a new entry and returns the persisted record. A non-nil
	// entry.ID is used as the row id, and repeating a Create whose insert
	// already landed returns that row.
	Create(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error)

	// GetByID retrieves one entry.
	// Returns domain.ErrNotFound if no entry with that ID exists under the carpool.
	GetByID(ctx context.Context, carpoolID, entryID uuid.UUID) (domain.WaitlistEntry, error)

	// ListByCarpool returns every entry in the carpool, oldest first.
	ListByCarpool(ctx context.Context, carpoolID uuid.UUID) ([]domain.WaitlistEntry, error)

	// Delete removes an entry.
	// Returns domain.ErrNotFound if no entry with that ID exists under the carpool.
	Delete(ctx context.Context, carpoolID, entryID uuid.UUID) error

	// DeleteExpired removes every entry whose expires_at is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pgWaitlistRepo struct {
	db db
}

// NewWaitlistRepo constructs a WaitlistRepo backed by the provided db connection.
func NewWaitlistRepo(db db) WaitlistRepo {
	return &pgWaitlistRepo{db: db}
}

const waitlistColumns = `
	id, carpool_id, name, email, phone,
	departure_date, is_flexible, fixed_time, range_start, range_end,
	can_drive, notes, expires_at, created_at`

func (r *pgWaitlistRepo) Create(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error) {
	const q = `
		INSERT INTO waitlist_entries (
			id, carpool_id, name, email, phone,
			departure_date, is_flexible, fixed_time, range_start, range_end,
			can_drive, notes, expires_at)
		VALUES (
			@id, @carpool_id, @name, @email, @phone,
			@departure_date, @is_flexible, @fixed_time, @range_start, @range_end,
			@can_drive, @notes, @expires_at)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + waitlistColumns

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	args := pgx.NamedArgs{
		"id":             entry.ID,
		"carpool_id":     entry.CarpoolID,
		"name":           entry.Name,
		"email":          entry.Contact.Email,
		"phone":          entry.Contact.Phone,
		"departure_date": entry.Departure.Date,
		"is_flexible":    entry.Departure.IsFlexible,
		"fixed_time":     entry.Departure.FixedTime,
		"range_start":    entry.Departure.RangeStart,
		"range_end":      entry.Departure.RangeEnd,
		"can_drive":      entry.CanDrive,
		"notes":          entry.Notes,
		"expires_at":     entry.ExpiresAt,
	}

	result, err := scanWaitlistEntry(r.db.QueryRow(ctx, q, args))
	if errors.Is(err, domain.ErrNotFound) {
		// ON CONFLICT skipped the insert: the row is there from an earlier attempt.
		return r.GetByID(ctx, entry.CarpoolID, entry.ID)
	}
	if err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("repo.WaitlistRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgWaitlistRepo) GetByID(ctx context.Context, carpoolID, entryID uuid.UUID) (domain.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = @id AND carpool_id = @carpool_id`

	result, err := scanWaitlistEntry(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": entryID, "carpool_id": carpoolID}))
	if err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("repo.WaitlistRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgWaitlistRepo) ListByCarpool(ctx context.Context, carpoolID uuid.UUID) ([]domain.WaitlistEntry, error) {
	const q = `
		SELECT ` + waitlistColumns + `
		FROM waitlist_entries
		WHERE carpool_id = @carpool_id
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"carpool_id": carpoolID})
	if err != nil {
		return nil, fmt.Errorf("repo.WaitlistRepo.ListByCarpool: %w", err)
	}
	defer rows.Close()

	var entries []domain.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.WaitlistRepo.ListByCarpool: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.WaitlistRepo.ListByCarpool: rows: %w", err)
	}
	return entries, nil
}

func (r *pgWaitlistRepo) Delete(ctx context.Context, carpoolID, entryID uuid.UUID) error {
	const q = `DELETE FROM waitlist_entries WHERE id = @id AND carpool_id = @carpool_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": entryID, "carpool_id": carpoolID})
	if err != nil {
		return fmt.Errorf("repo.WaitlistRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.WaitlistRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgWaitlistRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM waitlist_entries WHERE expires_at IS NOT NULL AND expires_at < @now`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"now": now})
	if err != nil {
		return 0, fmt.Errorf("repo.WaitlistRepo.DeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanWaitlistEntry(s scanner) (domain.WaitlistEntry, error) {
	var (
		w         domain.WaitlistEntry
		id        pgtype.UUID
		carpoolID pgtype.UUID
		expiresAt pgtype.Timestamptz
	)

	err := s.Scan(
		&id, &carpoolID, &w.Name, &w.Contact.Email, &w.Contact.Phone,
		&w.Departure.Date, &w.Departure.IsFlexible, &w.Departure.FixedTime,
		&w.Departure.RangeStart, &w.Departure.RangeEnd,
		&w.CanDrive, &w.Notes, &expiresAt, &w.CreatedAt,
	)
	if err != nil {
		return domain.WaitlistEntry{}, notFound(err)
	}

	w.ID = uuid.UUID(id.Bytes)
	w.CarpoolID = uuid.UUID(carpoolID.Bytes)
	w.ExpiresAt = timePtr(expiresAt)
	return w, nil
}
