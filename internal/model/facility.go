package model

import "time"

// DateLayout is the wire and storage format for booking dates.  All
// date arithmetic in the service goes through this single layout so a
// (park, facility, date) key compares byte-for-byte everywhere.
const DateLayout = "2006-01-02"

// SlotConfig describes one bookable time window of a facility, e.g.
// AM, PM or DAY, together with the maximum number of passes that may
// be issued for it on any single date.  The configured maximum is the
// value frozen into a reservation record's base capacity at creation
// time; changing it later does not touch existing records.
type SlotConfig struct {
	Code        string // facility_slots.slot_code, e.g. "AM"
	MaxCapacity int    // facility_slots.max_capacity
	Position    int    // facility_slots.position, display ordering
}

// Facility is a bookable location inside a park.  Facilities carry the
// per-facility mutual-exclusion flag (IsUpdating) used to serialize
// configuration-shape changes.  Descriptive metadata beyond what the
// reservation core needs lives with the external metadata service.
//
// Fields:
//  ParkID      – owning park (facilities.park_id).
//  Name        – facility name, unique within the park (facilities.name).
//  Status      – operating status, "open" or "closed".
//  IsUpdating  – lock flag; true while a writer holds the facility lock.
//  BookingDays – weekly mask; index is time.Weekday (Sunday = 0).
//  Holidays    – dates bookable regardless of the weekly mask.
//  Slots       – ordered slot configuration.
type Facility struct {
	ParkID      string       // facilities.park_id
	Name        string       // facilities.name
	Status      string       // facilities.status
	IsUpdating  bool         // facilities.is_updating
	BookingDays [7]bool      // facilities.booking_days bitmask, bit i = weekday i
	Holidays    []string     // facility_holidays.holiday_date, DateLayout strings
	Slots       []SlotConfig // facility_slots rows ordered by position
}

// BookableOn reports whether the facility accepts bookings on the given
// date: either the date is a listed bookable holiday, or the weekly
// mask allows that weekday.  Open/closed status is checked separately
// by the caller since it involves the park as well.
func (f *Facility) BookableOn(date time.Time) bool {
	day := date.Format(DateLayout)
	for _, h := range f.Holidays {
		if h == day {
			return true
		}
	}
	return f.BookingDays[int(date.Weekday())]
}

// Slot returns the configuration for the named slot, or nil when the
// facility has no slot with that code.
func (f *Facility) Slot(code string) *SlotConfig {
	for i := range f.Slots {
		if f.Slots[i].Code == code {
			return &f.Slots[i]
		}
	}
	return nil
}

// BookingDaysMask packs the weekly mask into a 7-bit integer for
// storage.  Bit i corresponds to time.Weekday i.
func (f *Facility) BookingDaysMask() int {
	mask := 0
	for i, on := range f.BookingDays {
		if on {
			mask |= 1 << i
		}
	}
	return mask
}

// BookingDaysFromMask unpacks a stored 7-bit mask into the weekly
// bool array.
func BookingDaysFromMask(mask int) [7]bool {
	var days [7]bool
	for i := range days {
		days[i] = mask&(1<<i) != 0
	}
	return days
}
