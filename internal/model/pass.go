package model

import "time"

// Pass statuses.  Hold and Reserved are the only non-terminal states.
// A pass moves through exactly one of the transitions below and no
// transition is ever reversed:
//
//  hold     -> reserved (commit) | expired (sweeper) | cancelled
//  reserved -> cancelled
const (
	PassStatusHold      = "hold"
	PassStatusReserved  = "reserved"
	PassStatusCancelled = "cancelled"
	PassStatusExpired   = "expired"
)

// Audit actors recorded alongside each status change so reporting can
// distinguish user actions from sweeper reclamation.
const (
	ActorUser    = "user"
	ActorAdmin   = "admin"
	ActorSweeper = "sweeper"
)

// AuditEntry is one element of a pass's append-only audit trail.
// Entries are never mutated after insertion; downstream consumers read
// the trail as an ordered sequence of immutable events.
type AuditEntry struct {
	Status string    // pass_audit.status
	Actor  string    // pass_audit.actor
	At     time.Time // pass_audit.created_at
}

// Pass is a single timed-entry reservation, identified by
// (ParkID, RegistrationNumber).  A pass in hold state additionally has
// a signed token circulating on the client side; the token encodes the
// pass key, so no separate index is needed to find the pass at commit
// time.
//
// Fields:
//  ParkID             – park the pass belongs to.
//  RegistrationNumber – random identifier unique within the park.
//  FacilityName       – facility being visited.
//  Date               – booking date in DateLayout form.
//  SlotCode           – time window booked (e.g. "AM").
//  GuestCount         – number of guests; capacity consumed equals this.
//  Status             – current lifecycle status.
//  HoldExpiresAt      – when a hold lapses; nil once out of hold state.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last status change timestamp.
//  Audit              – append-only status history, oldest first.
type Pass struct {
	ParkID             string       // passes.park_id
	RegistrationNumber string       // passes.registration_number
	FacilityName       string       // passes.facility_name
	Date               string       // passes.booking_date
	SlotCode           string       // passes.slot_code
	GuestCount         int          // passes.guest_count
	Status             string       // passes.status
	HoldExpiresAt      *time.Time   // passes.hold_expires_at (nullable)
	CreatedAt          time.Time    // passes.created_at
	UpdatedAt          time.Time    // passes.updated_at
	Audit              []AuditEntry // pass_audit rows ordered by id
}

// Terminal reports whether the pass has reached a terminal status.
// Cancelled and expired passes accept no further transitions.
func (p *Pass) Terminal() bool {
	return p.Status == PassStatusCancelled || p.Status == PassStatusExpired
}
