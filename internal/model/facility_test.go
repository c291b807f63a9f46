package model

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return d
}

func TestBookableOn(t *testing.T) {
	f := Facility{
		BookingDays: [7]bool{false, true, true, true, true, true, false}, // weekdays only
		Holidays:    []string{"2026-09-06"},
	}
	if !f.BookableOn(mustDate(t, "2026-09-07")) { // Monday
		t.Error("expected Monday to be bookable")
	}
	if f.BookableOn(mustDate(t, "2026-09-05")) { // Saturday
		t.Error("expected Saturday to be unbookable")
	}
	// Sunday is off the mask but listed as a bookable holiday.
	if !f.BookableOn(mustDate(t, "2026-09-06")) {
		t.Error("expected listed holiday to override the weekly mask")
	}
	if f.BookableOn(mustDate(t, "2026-09-13")) { // following Sunday, not listed
		t.Error("expected unlisted Sunday to be unbookable")
	}
}

func TestBookingDaysMaskRoundTrip(t *testing.T) {
	cases := [][7]bool{
		{},
		{true, true, true, true, true, true, true},
		{false, true, false, true, false, true, false},
		{true}, // Sunday only
	}
	for _, days := range cases {
		f := Facility{BookingDays: days}
		if got := BookingDaysFromMask(f.BookingDaysMask()); got != days {
			t.Errorf("mask round trip changed %v to %v", days, got)
		}
	}
}

func TestFacilitySlotLookup(t *testing.T) {
	f := Facility{Slots: []SlotConfig{{Code: "AM", MaxCapacity: 5}, {Code: "PM", MaxCapacity: 8}}}
	if s := f.Slot("PM"); s == nil || s.MaxCapacity != 8 {
		t.Errorf("unexpected PM slot: %+v", s)
	}
	if s := f.Slot("DAY"); s != nil {
		t.Errorf("expected nil for unknown slot, got %+v", s)
	}
}

func TestDeriveRecordOpenAndBookable(t *testing.T) {
	park := &Park{ID: "0042", Status: StatusOpen}
	fac := &Facility{
		ParkID:      "0042",
		Name:        "Falls Trail",
		Status:      StatusOpen,
		BookingDays: [7]bool{true, true, true, true, true, true, true},
		Slots:       []SlotConfig{{Code: "AM", MaxCapacity: 4}, {Code: "PM", MaxCapacity: 6}},
	}
	rec := DeriveRecord(park, fac, mustDate(t, "2026-09-07"))
	if !rec.PassesRequired {
		t.Fatal("expected passes required")
	}
	if rec.Date != "2026-09-07" {
		t.Fatalf("unexpected date: %s", rec.Date)
	}
	am := rec.Slot("AM")
	if am == nil || am.BaseCapacity != 4 || am.AvailablePasses != 4 || am.CapacityModifier != 0 {
		t.Fatalf("unexpected AM state: %+v", am)
	}
}

func TestDeriveRecordZeroCapacityCases(t *testing.T) {
	openDays := [7]bool{true, true, true, true, true, true, true}
	slots := []SlotConfig{{Code: "AM", MaxCapacity: 4}}
	cases := []struct {
		name string
		park Park
		fac  Facility
	}{
		{"closed park", Park{ID: "p", Status: StatusClosed}, Facility{Status: StatusOpen, BookingDays: openDays, Slots: slots}},
		{"closed facility", Park{ID: "p", Status: StatusOpen}, Facility{Status: StatusClosed, BookingDays: openDays, Slots: slots}},
		{"unbookable date", Park{ID: "p", Status: StatusOpen}, Facility{Status: StatusOpen, Slots: slots}},
	}
	for _, tc := range cases {
		rec := DeriveRecord(&tc.park, &tc.fac, mustDate(t, "2026-09-07"))
		if rec.PassesRequired {
			t.Errorf("%s: expected passes not required", tc.name)
		}
		// Slots are still listed so availability responses keep their shape.
		am := rec.Slot("AM")
		if am == nil || am.BaseCapacity != 0 || am.AvailablePasses != 0 {
			t.Errorf("%s: expected zeroed AM slot, got %+v", tc.name, am)
		}
	}
}

func TestPassTerminal(t *testing.T) {
	cases := map[string]bool{
		PassStatusHold:      false,
		PassStatusReserved:  false,
		PassStatusCancelled: true,
		PassStatusExpired:   true,
	}
	for status, want := range cases {
		p := Pass{Status: status}
		if p.Terminal() != want {
			t.Errorf("Terminal() for %s: got %v want %v", status, !want, want)
		}
	}
}
