// Package repository defines error values shared across the data access
// layer. These sentinel values allow higher layers such as the booking
// engine and HTTP handlers to distinguish between failure scenarios
// without inspecting driver errors. A failed conditional write is a
// decisive answer (another writer won the race, or an invariant would
// be violated), never a transient condition to retry internally; only
// genuine store outages propagate as raw driver errors.
package repository

import "errors"

// ErrBusy is returned when the facility lock is already held by
// another writer. Callers should surface a "retry later" response;
// the lock layer provides no queueing or backoff.
var ErrBusy = errors.New("facility is busy")

// ErrCapacityExceeded is returned when consuming capacity would drive
// a slot's available passes negative. The slot is sold out for the
// requested guest count; the request is terminal and nothing was
// committed.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrNegativeCapacity is returned when an admin capacity adjustment
// would shrink a slot below what has already been consumed. The state
// is left unchanged so the operator error is surfaced rather than
// silently clamped.
var ErrNegativeCapacity = errors.New("capacity adjustment would go negative")

// ErrInvalidTransition is returned when a pass status change is
// attempted from a state other than the expected source state. It
// usually means a racing actor already resolved the transition.
var ErrInvalidTransition = errors.New("invalid pass transition")

// ErrRecordExists is returned by the create-if-absent path when a
// concurrent creator won the race. Callers should re-read the winning
// record rather than overwrite it.
var ErrRecordExists = errors.New("reservation record already exists")

// Not-found sentinels for the persisted entity kinds.
var (
	ErrParkNotFound     = errors.New("park not found")
	ErrFacilityNotFound = errors.New("facility not found")
	ErrRecordNotFound   = errors.New("reservation record not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrPassNotFound     = errors.New("pass not found")
)
