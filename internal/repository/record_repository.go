package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/parkops/daypass/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key
// violation, which the create-if-absent path treats as a lost race
// rather than a failure.
const mysqlDuplicateEntry = 1062

// RecordRepo provides access to reservation records and their slot
// capacity rows. All capacity arithmetic happens through guarded
// single-statement updates so concurrent deltas on the same slot are
// linearized by the database; no advisory lock is involved.
type RecordRepo struct {
	db *sql.DB
}

// NewRecordRepo returns a new RecordRepo bound to the given database.
func NewRecordRepo(db *sql.DB) *RecordRepo { return &RecordRepo{db: db} }

// Get loads the reservation record for (park, facility, date) together
// with its slot capacity rows. It returns ErrRecordNotFound when the
// record has not been created yet.
func (r *RecordRepo) Get(ctx context.Context, parkID, facility, date string) (*model.ReservationRecord, error) {
	const q = `SELECT park_id, facility_name, booking_date, passes_required, created_at
	           FROM reservation_records
	           WHERE park_id = ? AND facility_name = ? AND booking_date = ?`
	var rec model.ReservationRecord
	var day time.Time
	err := r.db.QueryRowContext(ctx, q, parkID, facility, date).Scan(
		&rec.ParkID, &rec.FacilityName, &day, &rec.PassesRequired, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Date = day.Format(model.DateLayout)
	const slotQ = `SELECT slot_code, base_capacity, capacity_modifier, available_passes
	               FROM record_slots
	               WHERE park_id = ? AND facility_name = ? AND booking_date = ?
	               ORDER BY position`
	rows, err := r.db.QueryContext(ctx, slotQ, parkID, facility, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.SlotCapacity
		if err := rows.Scan(&s.Code, &s.BaseCapacity, &s.CapacityModifier, &s.AvailablePasses); err != nil {
			return nil, err
		}
		rec.Slots = append(rec.Slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create writes a freshly derived reservation record. The insert is
// create-only: when another writer created the record first, the
// duplicate key error is mapped to ErrRecordExists and nothing is
// overwritten. The record row and its slot rows are written in one
// transaction so a half-created record is never observable.
func (r *RecordRepo) Create(ctx context.Context, rec *model.ReservationRecord) error {
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
	const q = `INSERT INTO reservation_records (park_id, facility_name, booking_date, passes_required)
	           VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, rec.ParkID, rec.FacilityName, rec.Date, rec.PassesRequired); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrRecordExists
		}
		return err
	}
	if len(rec.Slots) > 0 {
		query := `INSERT INTO record_slots (park_id, facility_name, booking_date, slot_code, base_capacity, capacity_modifier, available_passes, position) VALUES `
		args := make([]interface{}, 0, len(rec.Slots)*8)
		for i, s := range rec.Slots {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?, ?)"
			args = append(args, rec.ParkID, rec.FacilityName, rec.Date,
				s.Code, s.BaseCapacity, s.CapacityModifier, s.AvailablePasses, i)
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

// ApplyDelta atomically adjusts a slot's available passes. A positive
// delta consumes capacity and is guarded so available_passes never
// goes negative; a negative delta releases capacity and is guarded
// against exceeding base_capacity + capacity_modifier. The guard lives
// in the UPDATE's WHERE clause, so two concurrent deltas can never
// both act on a stale value. A guard miss returns ErrCapacityExceeded
// with no state change. The updated slot state is returned on success.
func (r *RecordRepo) ApplyDelta(ctx context.Context, parkID, facility, date, slot string, delta int) (*model.SlotCapacity, error) {
	const q = `UPDATE record_slots
	           SET available_passes = available_passes - ?
	           WHERE park_id = ? AND facility_name = ? AND booking_date = ? AND slot_code = ?
	             AND available_passes - ? >= 0
	             AND available_passes - ? <= base_capacity + capacity_modifier`
	res, err := r.db.ExecContext(ctx, q, delta, parkID, facility, date, slot, delta, delta)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := r.slot(ctx, parkID, facility, date, slot); err != nil {
			return nil, err
		}
		return nil, ErrCapacityExceeded
	}
	return r.slot(ctx, parkID, facility, date, slot)
}

// ApplyModifier atomically applies an admin capacity adjustment to a
// slot. The modifier and the available count move together by the same
// amount, preserving the number of passes already consumed. The update
// is guarded so neither the resulting available count nor the
// effective capacity (base + modifier) can go negative; a guard miss
// returns ErrNegativeCapacity with the state unchanged. The updated
// slot state is returned on success.
func (r *RecordRepo) ApplyModifier(ctx context.Context, parkID, facility, date, slot string, change int) (*model.SlotCapacity, error) {
	const q = `UPDATE record_slots
	           SET capacity_modifier = capacity_modifier + ?,
	               available_passes = available_passes + ?
	           WHERE park_id = ? AND facility_name = ? AND booking_date = ? AND slot_code = ?
	             AND available_passes + ? >= 0
	             AND base_capacity + capacity_modifier + ? >= 0`
	res, err := r.db.ExecContext(ctx, q, change, change, parkID, facility, date, slot, change, change)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := r.slot(ctx, parkID, facility, date, slot); err != nil {
			return nil, err
		}
		return nil, ErrNegativeCapacity
	}
	return r.slot(ctx, parkID, facility, date, slot)
}

// slot reads a single record_slots row, returning ErrSlotNotFound when
// the (record, slot) pair does not exist.
func (r *RecordRepo) slot(ctx context.Context, parkID, facility, date, code string) (*model.SlotCapacity, error) {
	const q = `SELECT slot_code, base_capacity, capacity_modifier, available_passes
	           FROM record_slots
	           WHERE park_id = ? AND facility_name = ? AND booking_date = ? AND slot_code = ?`
	var s model.SlotCapacity
	err := r.db.QueryRowContext(ctx, q, parkID, facility, date, code).Scan(
		&s.Code, &s.BaseCapacity, &s.CapacityModifier, &s.AvailablePasses,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
