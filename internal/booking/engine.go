// Package booking implements the capacity reservation engine: the
// per-facility lock scope, the lazy reservation-record lifecycle, the
// guarded slot-capacity arithmetic and the hold/commit/cancel/expire
// state machine for passes. All coordination is delegated to the
// store's conditional writes; the engine itself keeps no state between
// calls and never retries a failed conditional write.
package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/parkops/daypass/internal/captcha"
	"github.com/parkops/daypass/internal/model"
	"github.com/parkops/daypass/internal/queue"
	"github.com/parkops/daypass/internal/repository"
	"github.com/parkops/daypass/internal/utils"
)

// Validation errors raised before any store round-trip.
var (
	ErrInvalidDate       = errors.New("invalid booking date")
	ErrInvalidGuestCount = errors.New("guest count must be at least 1")
	ErrInvalidModifier   = errors.New("capacity modifier change must be non-zero")
	ErrInvalidStatus     = errors.New("status must be open or closed")
	ErrInvalidSlots      = errors.New("slot configuration is invalid")
)

// FacilityStore is the engine's view of park and facility state,
// including the per-facility lock flag.
type FacilityStore interface {
	GetPark(ctx context.Context, parkID string) (*model.Park, error)
	GetFacility(ctx context.Context, parkID, name string) (*model.Facility, error)
	AcquireLock(ctx context.Context, parkID, name string) (*model.Facility, error)
	ReleaseLock(ctx context.Context, parkID, name string) error
	ReplaceSlots(ctx context.Context, parkID, name string, slots []model.SlotConfig) error
	SetStatus(ctx context.Context, parkID, name, status string) error
}

// RecordStore is the engine's view of reservation records and the
// capacity ledger. Create must be create-only (ErrRecordExists on a
// lost race) and the two apply methods must be atomic conditional
// updates.
type RecordStore interface {
	Get(ctx context.Context, parkID, facility, date string) (*model.ReservationRecord, error)
	Create(ctx context.Context, rec *model.ReservationRecord) error
	ApplyDelta(ctx context.Context, parkID, facility, date, slot string, delta int) (*model.SlotCapacity, error)
	ApplyModifier(ctx context.Context, parkID, facility, date, slot string, change int) (*model.SlotCapacity, error)
}

// PassStore is the engine's view of pass rows and their audit trail.
// Transition must be conditional on the expected source status.
type PassStore interface {
	Create(ctx context.Context, p *model.Pass, actor string) error
	Get(ctx context.Context, parkID, registration string) (*model.Pass, error)
	Transition(ctx context.Context, parkID, registration, from, to, actor string) error
	ExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]model.Pass, error)
}

// EventPublisher receives pass lifecycle events for downstream
// notification and reporting consumers. Publish failures never fail
// the originating operation.
type EventPublisher interface {
	PublishPassEvent(ctx context.Context, ev queue.PassEvent) error
}

// Engine wires the stores, the challenge verifier and the event
// publisher into the reservation operations exposed to handlers and
// the sweeper. All dependencies are injected at construction; the
// engine holds no connection state of its own.
type Engine struct {
	facilities FacilityStore
	records    RecordStore
	passes     PassStore
	verifier   captcha.Verifier
	publisher  EventPublisher
	secret     string
	holdTTL    time.Duration
	now        func() time.Time
}

// NewEngine constructs an Engine. facilities, records, passes and
// verifier must be non-nil; publisher may be nil to disable event
// publication. secret signs hold tokens and holdTTL bounds how long a
// hold survives before the sweeper may reclaim it.
func NewEngine(facilities FacilityStore, records RecordStore, passes PassStore, verifier captcha.Verifier, publisher EventPublisher, secret string, holdTTL time.Duration) *Engine {
	if facilities == nil || records == nil || passes == nil || verifier == nil {
		panic("nil dependency passed to NewEngine")
	}
	if holdTTL <= 0 {
		holdTTL = 15 * time.Minute
	}
	return &Engine{
		facilities: facilities,
		records:    records,
		passes:     passes,
		verifier:   verifier,
		publisher:  publisher,
		secret:     secret,
		holdTTL:    holdTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureRecord returns the reservation record for (park, facility,
// date), creating it on first touch. An existing record is returned
// unchanged — derivation is frozen at creation and never recomputed,
// even if the facility configuration changed since. When two callers
// race on creation, the loser re-reads the winner's record so both
// observe the same derived values.
func (e *Engine) EnsureRecord(ctx context.Context, parkID, facility, date string) (*model.ReservationRecord, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	rec, err := e.records.Get(ctx, parkID, facility, date)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, err
	}
	park, err := e.facilities.GetPark(ctx, parkID)
	if err != nil {
		return nil, err
	}
	fac, err := e.facilities.GetFacility(ctx, parkID, facility)
	if err != nil {
		return nil, err
	}
	derived := model.DeriveRecord(park, fac, day)
	if err := e.records.Create(ctx, derived); err != nil {
		if errors.Is(err, repository.ErrRecordExists) {
			return e.records.Get(ctx, parkID, facility, date)
		}
		return nil, err
	}
	return e.records.Get(ctx, parkID, facility, date)
}

// Availability returns the capacity state a client would see for
// (park, facility, date) without creating anything. When no record
// exists yet the answer is derived in memory from the current
// configuration, so browsing a date does not allocate its record.
func (e *Engine) Availability(ctx context.Context, parkID, facility, date string) (*model.ReservationRecord, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	rec, err := e.records.Get(ctx, parkID, facility, date)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, err
	}
	park, err := e.facilities.GetPark(ctx, parkID)
	if err != nil {
		return nil, err
	}
	fac, err := e.facilities.GetFacility(ctx, parkID, facility)
	if err != nil {
		return nil, err
	}
	return model.DeriveRecord(park, fac, day), nil
}

// HoldRequest carries everything needed to place a hold.
type HoldRequest struct {
	ParkID       string
	FacilityName string
	Date         string
	SlotCode     string
	GuestCount   int
	Proof        string // challenge-response proof gating the hold
}

// HoldResult is returned from a successful CreateHold: the pass in
// hold state and the signed token the client must present at commit.
type HoldResult struct {
	Pass  *model.Pass
	Token utils.HoldToken
}

// CreateHold places a temporary hold: it verifies the challenge proof,
// ensures the reservation record exists, consumes capacity for the
// guest count and only then writes the pass in hold state. Capacity is
// reserved before the pass is durably recorded; if the pass write
// fails the consumed capacity is handed back. On ErrCapacityExceeded
// nothing has been committed.
func (e *Engine) CreateHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	if req.GuestCount < 1 {
		return nil, ErrInvalidGuestCount
	}
	if err := e.verifier.Verify(ctx, req.Proof); err != nil {
		return nil, err
	}
	rec, err := e.EnsureRecord(ctx, req.ParkID, req.FacilityName, req.Date)
	if err != nil {
		return nil, err
	}
	if rec.Slot(req.SlotCode) == nil {
		return nil, repository.ErrSlotNotFound
	}
	registration, err := utils.NewRegistrationNumber()
	if err != nil {
		return nil, err
	}
	expires := e.now().Add(e.holdTTL)
	token, err := utils.NewHoldToken(e.secret, req.ParkID, registration, expires)
	if err != nil {
		return nil, err
	}
	if _, err := e.records.ApplyDelta(ctx, req.ParkID, req.FacilityName, req.Date, req.SlotCode, req.GuestCount); err != nil {
		return nil, err
	}
	pass := &model.Pass{
		ParkID:             req.ParkID,
		RegistrationNumber: registration,
		FacilityName:       req.FacilityName,
		Date:               req.Date,
		SlotCode:           req.SlotCode,
		GuestCount:         req.GuestCount,
		Status:             model.PassStatusHold,
		HoldExpiresAt:      &expires,
	}
	if err := e.passes.Create(ctx, pass, model.ActorUser); err != nil {
		// The pass never existed, so hand the capacity back. If even
		// that fails the slot leaks until an operator reconciles it.
		if _, relErr := e.records.ApplyDelta(ctx, req.ParkID, req.FacilityName, req.Date, req.SlotCode, -req.GuestCount); relErr != nil {
			log.Printf("ALERT: failed to restore capacity for %s/%s %s %s after pass write failure: %v",
				req.ParkID, req.FacilityName, req.Date, req.SlotCode, relErr)
		}
		return nil, err
	}
	return &HoldResult{Pass: pass, Token: token}, nil
}

// CommitHold finalises a hold into a reservation. The token is the
// sole link to the held pass; an expired token is refused here even
// before the sweeper has run. The ledger is not touched — capacity was
// already consumed when the hold was placed.
func (e *Engine) CommitHold(ctx context.Context, token string) (*model.Pass, error) {
	parkID, registration, err := utils.ParseHoldToken(e.secret, token)
	if err != nil {
		return nil, err
	}
	if err := e.passes.Transition(ctx, parkID, registration,
		model.PassStatusHold, model.PassStatusReserved, model.ActorUser); err != nil {
		return nil, err
	}
	pass, err := e.passes.Get(ctx, parkID, registration)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, queue.EventPassReserved, pass, model.ActorUser)
	return pass, nil
}

// CancelPass cancels a pass in hold or reserved state and releases its
// capacity back to the slot. The conditional transition guarantees the
// release happens exactly once even when two cancels race: the loser
// gets ErrInvalidTransition and never reaches the ledger.
func (e *Engine) CancelPass(ctx context.Context, parkID, registration, actor string) (*model.Pass, error) {
	pass, err := e.passes.Get(ctx, parkID, registration)
	if err != nil {
		return nil, err
	}
	if pass.Terminal() {
		return nil, repository.ErrInvalidTransition
	}
	if err := e.passes.Transition(ctx, parkID, registration,
		pass.Status, model.PassStatusCancelled, actor); err != nil {
		return nil, err
	}
	if _, err := e.records.ApplyDelta(ctx, pass.ParkID, pass.FacilityName, pass.Date, pass.SlotCode, -pass.GuestCount); err != nil {
		log.Printf("ALERT: pass %s/%s cancelled but capacity release failed: %v",
			parkID, registration, err)
		return nil, err
	}
	pass, err = e.passes.Get(ctx, parkID, registration)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, queue.EventPassCancelled, pass, actor)
	return pass, nil
}

// GetPass returns a pass with its audit trail.
func (e *Engine) GetPass(ctx context.Context, parkID, registration string) (*model.Pass, error) {
	return e.passes.Get(ctx, parkID, registration)
}

// ApplyCapacityModifier applies a signed admin adjustment to one
// slot's capacity modifier, creating the day's record first if nobody
// has touched it yet. The ledger re-validates the resulting state and
// fails with ErrNegativeCapacity when the adjustment would shrink the
// slot below what is already consumed. Capacity-value changes are
// deliberately lock-free; only shape changes take the facility lock.
// Every successful application is logged for the audit trail.
func (e *Engine) ApplyCapacityModifier(ctx context.Context, parkID, facility, date, slot string, change int) (*model.SlotCapacity, error) {
	if change == 0 {
		return nil, ErrInvalidModifier
	}
	if _, err := e.EnsureRecord(ctx, parkID, facility, date); err != nil {
		return nil, err
	}
	state, err := e.records.ApplyModifier(ctx, parkID, facility, date, slot, change)
	if err != nil {
		return nil, err
	}
	log.Printf("capacity modifier %+d applied to %s/%s %s %s (available=%d modifier=%d)",
		change, parkID, facility, date, slot, state.AvailablePasses, state.CapacityModifier)
	return state, nil
}

// UpdateFacilitySlots replaces a facility's slot configuration under
// the facility lock. A caller receiving ErrBusy should retry later;
// the lock is a coarse per-facility mutex with no queueing. Existing
// reservation records keep their frozen shape.
func (e *Engine) UpdateFacilitySlots(ctx context.Context, parkID, facility string, slots []model.SlotConfig) (*model.Facility, error) {
	if len(slots) == 0 {
		return nil, ErrInvalidSlots
	}
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if s.Code == "" || s.MaxCapacity < 0 || seen[s.Code] {
			return nil, ErrInvalidSlots
		}
		seen[s.Code] = true
	}
	if _, err := e.facilities.AcquireLock(ctx, parkID, facility); err != nil {
		return nil, err
	}
	defer e.releaseLock(ctx, parkID, facility)
	if err := e.facilities.ReplaceSlots(ctx, parkID, facility, slots); err != nil {
		return nil, err
	}
	return e.facilities.GetFacility(ctx, parkID, facility)
}

// SetFacilityStatus flips a facility between open and closed under the
// facility lock. Records already derived keep their frozen
// passes_required value.
func (e *Engine) SetFacilityStatus(ctx context.Context, parkID, facility, status string) error {
	if status != model.StatusOpen && status != model.StatusClosed {
		return ErrInvalidStatus
	}
	if _, err := e.facilities.AcquireLock(ctx, parkID, facility); err != nil {
		return err
	}
	defer e.releaseLock(ctx, parkID, facility)
	return e.facilities.SetStatus(ctx, parkID, facility, status)
}

// releaseLock clears the facility lock on every exit path after a
// successful acquire. A release failure leaves the facility stuck, so
// it is logged as a fatal operational alert for monitoring to pick up
// rather than retried forever.
func (e *Engine) releaseLock(ctx context.Context, parkID, facility string) {
	if err := e.facilities.ReleaseLock(ctx, parkID, facility); err != nil {
		log.Printf("ALERT: failed to release facility lock %s/%s: %v", parkID, facility, err)
	}
}

// publish hands a lifecycle event to the publisher, if one is
// configured. Failures are logged and swallowed; event delivery never
// gates a booking operation.
func (e *Engine) publish(ctx context.Context, eventType string, pass *model.Pass, actor string) {
	if e.publisher == nil {
		return
	}
	ev := queue.PassEvent{
		Type:               eventType,
		ParkID:             pass.ParkID,
		RegistrationNumber: pass.RegistrationNumber,
		FacilityName:       pass.FacilityName,
		Date:               pass.Date,
		SlotCode:           pass.SlotCode,
		GuestCount:         pass.GuestCount,
		Actor:              actor,
		OccurredAt:         e.now().Format(time.RFC3339),
	}
	if err := e.publisher.PublishPassEvent(ctx, ev); err != nil {
		log.Printf("failed to publish %s event for %s/%s: %v",
			eventType, pass.ParkID, pass.RegistrationNumber, err)
	}
}
