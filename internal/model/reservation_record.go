package model

import "time"

// SlotCapacity is the live capacity state for one slot of one
// reservation record.  AvailablePasses is the only field mutated by
// day-to-day traffic; BaseCapacity is frozen at record creation and
// CapacityModifier only moves through explicit admin adjustments.
//
// Invariant at every quiescent point:
//  0 <= AvailablePasses <= BaseCapacity + CapacityModifier
type SlotCapacity struct {
	Code             string // record_slots.slot_code
	BaseCapacity     int    // record_slots.base_capacity
	CapacityModifier int    // record_slots.capacity_modifier
	AvailablePasses  int    // record_slots.available_passes
}

// ReservationRecord is the per-facility-per-date capacity ledger row.
// It is created lazily the first time any operation touches the
// (facility, date) pair and never re-derived afterwards, even if the
// facility configuration changes later.
//
// Fields:
//  ParkID         – owning park.
//  FacilityName   – owning facility.
//  Date           – booking date in DateLayout form.
//  PassesRequired – whether a pass is needed on this date, derived once
//                   from park/facility open state and booking-day rules.
//  Slots          – per-slot capacity state.
//  CreatedAt      – when the record was first derived.
type ReservationRecord struct {
	ParkID         string         // reservation_records.park_id
	FacilityName   string         // reservation_records.facility_name
	Date           string         // reservation_records.booking_date
	PassesRequired bool           // reservation_records.passes_required
	Slots          []SlotCapacity // record_slots rows
	CreatedAt      time.Time      // reservation_records.created_at
}

// Slot returns the capacity state for the named slot, or nil when the
// record has no slot with that code.
func (r *ReservationRecord) Slot(code string) *SlotCapacity {
	for i := range r.Slots {
		if r.Slots[i].Code == code {
			return &r.Slots[i]
		}
	}
	return nil
}

// DeriveRecord computes the initial reservation record for a facility
// and date.  When the park or facility is closed, or the date is not
// bookable under the weekly mask and holiday list, passes are not
// required and every slot freezes at zero capacity.  Otherwise each
// slot starts with its configured maximum fully available.  The result
// is what gets written once by the create-if-absent path; it is never
// recomputed for an existing record.
func DeriveRecord(park *Park, facility *Facility, date time.Time) *ReservationRecord {
	required := park.Status == StatusOpen &&
		facility.Status == StatusOpen &&
		facility.BookableOn(date)
	slots := make([]SlotCapacity, 0, len(facility.Slots))
	for _, sc := range facility.Slots {
		base := 0
		if required {
			base = sc.MaxCapacity
		}
		slots = append(slots, SlotCapacity{
			Code:            sc.Code,
			BaseCapacity:    base,
			AvailablePasses: base,
		})
	}
	return &ReservationRecord{
		ParkID:         park.ID,
		FacilityName:   facility.Name,
		Date:           date.Format(DateLayout),
		PassesRequired: required,
		Slots:          slots,
	}
}
