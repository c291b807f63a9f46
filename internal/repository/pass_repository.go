package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/parkops/daypass/internal/model"
)

// PassRepo provides access to passes and their append-only audit
// trail. Pass rows are independent of the facility lock; all racing
// writers are serialized by the conditional status update inside
// Transition. Audit entries are written in the same transaction as the
// status change so the trail is always consistent with the final
// state.
type PassRepo struct {
	db *sql.DB
}

// NewPassRepo returns a new PassRepo bound to the given database.
func NewPassRepo(db *sql.DB) *PassRepo { return &PassRepo{db: db} }

// Create inserts a new pass together with its initial audit entry.
// The pass must carry its registration number, status and, for holds,
// the expiry timestamp. Timestamps are populated from the database
// after insertion.
func (r *PassRepo) Create(ctx context.Context, p *model.Pass, actor string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `INSERT INTO passes (park_id, registration_number, facility_name, booking_date, slot_code, guest_count, status, hold_expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var expires interface{}
	if p.HoldExpiresAt != nil {
		expires = p.HoldExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	if _, err := tx.ExecContext(ctx, q,
		p.ParkID, p.RegistrationNumber, p.FacilityName, p.Date,
		p.SlotCode, p.GuestCount, p.Status, expires,
	); err != nil {
		return err
	}
	const auditQ = `INSERT INTO pass_audit (park_id, registration_number, status, actor) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, auditQ, p.ParkID, p.RegistrationNumber, p.Status, actor); err != nil {
		return err
	}
	const sel = `SELECT created_at, updated_at FROM passes WHERE park_id = ? AND registration_number = ?`
	if err := tx.QueryRowContext(ctx, sel, p.ParkID, p.RegistrationNumber).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	p.Audit = append(p.Audit, model.AuditEntry{Status: p.Status, Actor: actor, At: p.CreatedAt})
	return nil
}

// Get loads a pass and its audit trail. It returns ErrPassNotFound
// when no pass exists for the (park, registration number) pair.
func (r *PassRepo) Get(ctx context.Context, parkID, registration string) (*model.Pass, error) {
	const q = `SELECT park_id, registration_number, facility_name, booking_date, slot_code,
	                  guest_count, status, hold_expires_at, created_at, updated_at
	           FROM passes WHERE park_id = ? AND registration_number = ?`
	var p model.Pass
	var day time.Time
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx, q, parkID, registration).Scan(
		&p.ParkID, &p.RegistrationNumber, &p.FacilityName, &day, &p.SlotCode,
		&p.GuestCount, &p.Status, &expires, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPassNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Date = day.Format(model.DateLayout)
	if expires.Valid {
		t := expires.Time
		p.HoldExpiresAt = &t
	}
	const auditQ = `SELECT status, actor, created_at FROM pass_audit
	                WHERE park_id = ? AND registration_number = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, auditQ, parkID, registration)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.Status, &e.Actor, &e.At); err != nil {
			return nil, err
		}
		p.Audit = append(p.Audit, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Transition advances a pass from one status to another with a
// conditional update guarded on the expected source status, and
// appends the matching audit entry in the same transaction. When the
// pass is not currently in the source status, ErrInvalidTransition is
// returned and nothing changes; this is what protects capacity from a
// double release when two cancels race. Leaving the hold state clears
// the expiry timestamp.
func (r *PassRepo) Transition(ctx context.Context, parkID, registration, from, to, actor string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `UPDATE passes
	           SET status = ?, hold_expires_at = NULL, updated_at = UTC_TIMESTAMP()
	           WHERE park_id = ? AND registration_number = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, to, parkID, registration, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var cur string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM passes WHERE park_id = ? AND registration_number = ?`,
			parkID, registration,
		).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPassNotFound
		}
		if err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	const auditQ = `INSERT INTO pass_audit (park_id, registration_number, status, actor) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, auditQ, parkID, registration, to, actor); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ExpiredHolds returns up to limit passes still in hold state whose
// expiry timestamp is at or before the cutoff. The scan restarts from
// the beginning on every call; there is no persisted cursor. Passes
// transitioned between the scan and the expire attempt are handled by
// Transition's precondition, not here.
func (r *PassRepo) ExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]model.Pass, error) {
	const q = `SELECT park_id, registration_number, facility_name, booking_date, slot_code,
	                  guest_count, status, hold_expires_at, created_at, updated_at
	           FROM passes
	           WHERE status = ? AND hold_expires_at <= ?
	           ORDER BY hold_expires_at
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q,
		model.PassStatusHold, cutoff.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var passes []model.Pass
	for rows.Next() {
		var p model.Pass
		var day time.Time
		var expires sql.NullTime
		if err := rows.Scan(
			&p.ParkID, &p.RegistrationNumber, &p.FacilityName, &day, &p.SlotCode,
			&p.GuestCount, &p.Status, &expires, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.Date = day.Format(model.DateLayout)
		if expires.Valid {
			t := expires.Time
			p.HoldExpiresAt = &t
		}
		passes = append(passes, p)
	}
	return passes, rows.Err()
}
