package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/easy-carpool/internal/domain"
)

// CarpoolRepo defines the persistence operations for Carpools.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock.
type CarpoolRepo interface {
	// Create inserts a new carpool and returns the persisted record (with
	// DB-generated id and created_at populated).
	Create(ctx context.Context, c domain.Carpool) (domain.Carpool, error)

	// GetByID retrieves a single carpool by its UUID primary key.
	// Returns domain.ErrNotFound if no carpool with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Carpool, error)

	// Update overwrites name, owner contact and time zone.
	// Returns domain.ErrNotFound if no carpool with that ID exists.
	Update(ctx context.Context, c domain.Carpool) (domain.Carpool, error)

	// Delete removes a carpool and, by cascade, everything registered in it.
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgCarpoolRepo struct {
	db db
}

// NewCarpoolRepo constructs a CarpoolRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewCarpoolRepo(db db) CarpoolRepo {
	return &pgCarpoolRepo{db: db}
}

const carpoolColumns = `id, name, owner_contact, time_zone, created_at`

func (r *pgCarpoolRepo) Create(ctx context.Context, c domain.Carpool) (domain.Carpool, error) {
	const q = `
		INSERT INTO carpools (name, owner_contact, time_zone)
		VALUES (@name, @owner_contact, @time_zone)
		RETURNING ` + carpoolColumns

	args := pgx.NamedArgs{
		"name":          c.Name,
		"owner_contact": c.OwnerContact,
		"time_zone":     c.TimeZone,
	}

	result, err := scanCarpool(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Carpool{}, fmt.Errorf("repo.CarpoolRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgCarpoolRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Carpool, error) {
	const q = `SELECT ` + carpoolColumns + ` FROM carpools WHERE id = @id`

	result, err := scanCarpool(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Carpool{}, fmt.Errorf("repo.CarpoolRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgCarpoolRepo) Update(ctx context.Context, c domain.Carpool) (domain.Carpool, error) {
	const q = `
		UPDATE carpools
		SET name          = @name,
		    owner_contact = @owner_contact,
		    time_zone     = @time_zone
		WHERE id = @id
		RETURNING ` + carpoolColumns

	args := pgx.NamedArgs{
		"id":            c.ID,
		"name":          c.Name,
		"owner_contact": c.OwnerContact,
		"time_zone":     c.TimeZone,
	}

	result, err := scanCarpool(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Carpool{}, fmt.Errorf("repo.CarpoolRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgCarpoolRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM carpools WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.CarpoolRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.CarpoolRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanCarpool(s scanner) (domain.Carpool, error) {
	var (
		c  domain.Carpool
		id pgtype.UUID
	)
	if err := s.Scan(&id, &c.Name, &c.OwnerContact, &c.TimeZone, &c.CreatedAt); err != nil {
		return domain.Carpool{}, notFound(err)
	}
	c.ID = uuid.UUID(id.Bytes)
	return c, nil
}
