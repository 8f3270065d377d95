package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/easy-carpool/internal/domain"
)

// PointerRepo stores the server-side registration pointers of anonymous
// participants, one row per (participant, carpool).
type PointerRepo interface {
	// Load returns the participant's pointer for the carpool. ok is false
	// when none is stored.
	Load(ctx context.Context, participantID string, carpoolID uuid.UUID) (ptr domain.RegistrationPointer, ok bool, err error)

	// Save inserts or replaces the participant's pointer for ptr.CarpoolID.
	Save(ctx context.Context, participantID string, ptr domain.RegistrationPointer) error

	// Claim inserts the pointer only if the participant has none for
	// ptr.CarpoolID. claimed reports whether this call inserted it.
	Claim(ctx context.Context, participantID string, ptr domain.RegistrationPointer) (claimed bool, err error)

	// Clear removes the participant's pointer for the carpool. Clearing a
	// pointer that does not exist is not an error.
	Clear(ctx context.Context, participantID string, carpoolID uuid.UUID) error
}

type pgPointerRepo struct {
	db db
}

// NewPointerRepo constructs a PointerRepo backed by the provided db connection.
func NewPointerRepo(db db) PointerRepo {
	return &pgPointerRepo{db: db}
}

func (r *pgPointerRepo) Load(ctx context.Context, participantID string, carpoolID uuid.UUID) (domain.RegistrationPointer, bool, error) {
	const q = `
		SELECT carpool_id, kind, registration_id, saved_at
		FROM registration_pointers
		WHERE participant_id = @participant_id AND carpool_id = @carpool_id`

	var (
		ptr      domain.RegistrationPointer
		cid, rid pgtype.UUID
		kind     string
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"participant_id": participantID,
		"carpool_id":     carpoolID,
	}).Scan(&cid, &kind, &rid, &ptr.SavedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RegistrationPointer{}, false, nil
		}
		return domain.RegistrationPointer{}, false, fmt.Errorf("repo.PointerRepo.Load: %w", err)
	}

	ptr.CarpoolID = uuid.UUID(cid.Bytes)
	ptr.RegistrationID = uuid.UUID(rid.Bytes)
	ptr.Kind = domain.RegistrationKind(kind)
	return ptr, true, nil
}

func (r *pgPointerRepo) Save(ctx context.Context, participantID string, ptr domain.RegistrationPointer) error {
	const q = `
		INSERT INTO registration_pointers (participant_id, carpool_id, kind, registration_id, saved_at)
		VALUES (@participant_id, @carpool_id, @kind, @registration_id, @saved_at)
		ON CONFLICT (participant_id, carpool_id) DO UPDATE
		SET kind            = EXCLUDED.kind,
		    registration_id = EXCLUDED.registration_id,
		    saved_at        = EXCLUDED.saved_at`

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"participant_id":  participantID,
		"carpool_id":      ptr.CarpoolID,
		"kind":            string(ptr.Kind),
		"registration_id": ptr.RegistrationID,
		"saved_at":        ptr.SavedAt,
	})
	if err != nil {
		return fmt.Errorf("repo.PointerRepo.Save: %w", err)
	}
	return nil
}

func (r *pgPointerRepo) Claim(ctx context.Context, participantID string, ptr domain.RegistrationPointer) (bool, error) {
	const q = `
		INSERT INTO registration_pointers (participant_id, carpool_id, kind, registration_id, saved_at)
		VALUES (@participant_id, @carpool_id, @kind, @registration_id, @saved_at)
		ON CONFLICT (participant_id, carpool_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"participant_id":  participantID,
		"carpool_id":      ptr.CarpoolID,
		"kind":            string(ptr.Kind),
		"registration_id": ptr.RegistrationID,
		"saved_at":        ptr.SavedAt,
	})
	if err != nil {
		return false, fmt.Errorf("repo.PointerRepo.Claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgPointerRepo) Clear(ctx context.Context, participantID string, carpoolID uuid.UUID) error {
	const q = `DELETE FROM registration_pointers WHERE participant_id = @participant_id AND carpool_id = @carpool_id`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"participant_id": participantID,
		"carpool_id":     carpoolID,
	}); err != nil {
		return fmt.Errorf("repo.PointerRepo.Clear: %w", err)
	}
	return nil
}

// ForParticipant binds r to one participant, giving the carpool-keyed cache
// the registration coordinator works against.
func ForParticipant(r PointerRepo, participantID string) *ParticipantPointers {
	return &ParticipantPointers{repo: r, participantID: participantID}
}

// ParticipantPointers is a PointerRepo scoped to one participant.
type ParticipantPointers struct {
	repo          PointerRepo
	participantID string
}

// Load returns the pointer for carpoolID, if one is stored.
func (p *ParticipantPointers) Load(ctx context.Context, carpoolID uuid.UUID) (domain.RegistrationPointer, bool, error) {
	return p.repo.Load(ctx, p.participantID, carpoolID)
}

// Save stores ptr under ptr.CarpoolID. Server-side pointers keep no
// snapshot; the record itself is one query away.
func (p *ParticipantPointers) Save(ctx context.Context, ptr domain.RegistrationPointer, _ domain.Registration) error {
	return p.repo.Save(ctx, p.participantID, ptr)
}

// Claim stores ptr unless a pointer for ptr.CarpoolID already exists.
func (p *ParticipantPointers) Claim(ctx context.Context, ptr domain.RegistrationPointer, _ domain.Registration) (bool, error) {
	return p.repo.Claim(ctx, p.participantID, ptr)
}

// Clear removes the pointer for carpoolID.
func (p *ParticipantPointers) Clear(ctx context.Context, carpoolID uuid.UUID) error {
	return p.repo.Clear(ctx, p.participantID, carpoolID)
}
