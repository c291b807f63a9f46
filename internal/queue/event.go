// Package queue defines message payloads exchanged over the message
// broker and the background consumer that drains them.
package queue

// Event types published on the pass.events queue.
const (
	EventPassReserved  = "pass.reserved"
	EventPassCancelled = "pass.cancelled"
	EventPassExpired   = "pass.expired"
)

// PassEvent is published whenever a pass reaches reserved, cancelled
// or expired. It carries enough information for downstream consumers
// to log, notify or feed reporting without querying the primary
// database.
type PassEvent struct {
	Type               string `json:"type"`
	ParkID             string `json:"park_id"`
	RegistrationNumber string `json:"registration_number"`
	FacilityName       string `json:"facility_name"`
	Date               string `json:"date"`
	SlotCode           string `json:"slot_code"`
	GuestCount         int    `json:"guest_count"`
	Actor              string `json:"actor"`
	OccurredAt         string `json:"occurred_at"`
}
