package model

// Operating statuses shared by parks and facilities.  A closed park or
// facility still exists in the database; new reservation records derived
// while it is closed simply carry zero capacity.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Park is the top-level grouping for facilities.  Parks are managed by
// an external metadata service; the reservation core only reads the
// operating status when deriving new reservation records.
//
// Fields:
//  ID     – short identifier, e.g. "0015" (parks.park_id).
//  Name   – display name (parks.name).
//  Status – operating status, "open" or "closed" (parks.status).
type Park struct {
	ID     string // parks.park_id
	Name   string // parks.name
	Status string // parks.status
}
