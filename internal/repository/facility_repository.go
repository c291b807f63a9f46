package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/parkops/daypass/internal/model"
)

// FacilityRepo provides access to parks, facilities and the
// per-facility lock flag. Facility rows carry the is_updating column
// used as a coarse mutex for configuration-shape changes; day-to-day
// capacity traffic never touches it.
type FacilityRepo struct {
	db *sql.DB
}

// NewFacilityRepo returns a new FacilityRepo bound to the given database.
func NewFacilityRepo(db *sql.DB) *FacilityRepo { return &FacilityRepo{db: db} }

// GetPark loads a park's operating state by identifier. It returns
// ErrParkNotFound when no such park exists.
func (r *FacilityRepo) GetPark(ctx context.Context, parkID string) (*model.Park, error) {
	const q = `SELECT park_id, name, status FROM parks WHERE park_id = ?`
	var p model.Park
	err := r.db.QueryRowContext(ctx, q, parkID).Scan(&p.ID, &p.Name, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetFacility loads a facility with its slot configuration and
// bookable-holiday list. It returns ErrFacilityNotFound when the
// (park, name) pair does not exist.
func (r *FacilityRepo) GetFacility(ctx context.Context, parkID, name string) (*model.Facility, error) {
	const q = `SELECT park_id, name, status, is_updating, booking_days
	           FROM facilities WHERE park_id = ? AND name = ?`
	var f model.Facility
	var mask int
	err := r.db.QueryRowContext(ctx, q, parkID, name).Scan(
		&f.ParkID, &f.Name, &f.Status, &f.IsUpdating, &mask,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFacilityNotFound
	}
	if err != nil {
		return nil, err
	}
	f.BookingDays = model.BookingDaysFromMask(mask)
	if f.Slots, err = r.slots(ctx, parkID, name); err != nil {
		return nil, err
	}
	if f.Holidays, err = r.holidays(ctx, parkID, name); err != nil {
		return nil, err
	}
	return &f, nil
}

// AcquireLock attempts to take the facility lock by flipping
// is_updating from false to true in a single conditional update. When
// the flag is already set, another writer holds the lock and ErrBusy
// is returned; no queueing or retry happens at this layer. On success
// the facility's current configuration is returned so the caller can
// operate on a consistent snapshot.
func (r *FacilityRepo) AcquireLock(ctx context.Context, parkID, name string) (*model.Facility, error) {
	const q = `UPDATE facilities SET is_updating = 1
	           WHERE park_id = ? AND name = ? AND is_updating = 0`
	res, err := r.db.ExecContext(ctx, q, parkID, name)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Either the facility does not exist or the flag was already
		// set. Distinguish the two with a plain read.
		var held bool
		err := r.db.QueryRowContext(ctx,
			`SELECT is_updating FROM facilities WHERE park_id = ? AND name = ?`,
			parkID, name,
		).Scan(&held)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrBusy
	}
	return r.GetFacility(ctx, parkID, name)
}

// ReleaseLock unconditionally clears the facility lock flag. It must
// be called on every exit path after a successful AcquireLock. A
// failure here leaves the facility stuck until an operator intervenes,
// so callers log it as a fatal operational alert instead of retrying
// indefinitely.
func (r *FacilityRepo) ReleaseLock(ctx context.Context, parkID, name string) error {
	const q = `UPDATE facilities SET is_updating = 0 WHERE park_id = ? AND name = ?`
	_, err := r.db.ExecContext(ctx, q, parkID, name)
	return err
}

// ReplaceSlots swaps a facility's slot configuration for the provided
// set in one transaction. Callers must hold the facility lock for the
// duration; this method does not check the flag itself. Existing
// reservation records keep their frozen shape, only future record
// derivations see the new slots.
func (r *FacilityRepo) ReplaceSlots(ctx context.Context, parkID, name string, slots []model.SlotConfig) error {
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
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM facility_slots WHERE park_id = ? AND facility_name = ?`,
		parkID, name,
	); err != nil {
		return err
	}
	if len(slots) > 0 {
		query := `INSERT INTO facility_slots (park_id, facility_name, slot_code, max_capacity, position) VALUES `
		args := make([]interface{}, 0, len(slots)*5)
		for i, s := range slots {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, parkID, name, s.Code, s.MaxCapacity, i)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetStatus updates a facility's operating status. It returns
// ErrFacilityNotFound when the facility does not exist. Already
// created reservation records are unaffected; the status only feeds
// future record derivations.
func (r *FacilityRepo) SetStatus(ctx context.Context, parkID, name, status string) error {
	const q = `UPDATE facilities SET status = ? WHERE park_id = ? AND name = ?`
	res, err := r.db.ExecContext(ctx, q, status, parkID, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// RowsAffected is also zero when the status already matched,
		// so confirm existence before reporting not-found.
		var cur string
		err := r.db.QueryRowContext(ctx,
			`SELECT status FROM facilities WHERE park_id = ? AND name = ?`,
			parkID, name,
		).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrFacilityNotFound
		}
		return err
	}
	return nil
}

// slots loads the ordered slot configuration for a facility.
func (r *FacilityRepo) slots(ctx context.Context, parkID, name string) ([]model.SlotConfig, error) {
	const q = `SELECT slot_code, max_capacity, position FROM facility_slots
	           WHERE park_id = ? AND facility_name = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, q, parkID, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []model.SlotConfig
	for rows.Next() {
		var s model.SlotConfig
		if err := rows.Scan(&s.Code, &s.MaxCapacity, &s.Position); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// holidays loads the bookable-holiday dates for a facility as
// DateLayout strings ordered chronologically.
func (r *FacilityRepo) holidays(ctx context.Context, parkID, name string) ([]string, error) {
	const q = `SELECT holiday_date FROM facility_holidays
	           WHERE park_id = ? AND facility_name = ? ORDER BY holiday_date`
	rows, err := r.db.QueryContext(ctx, q, parkID, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var days []string
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d.Format(model.DateLayout))
	}
	return days, rows.Err()
}
