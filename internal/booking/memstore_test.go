package booking

// In-memory store implementations with the same conditional-write
// semantics as the MySQL repositories. A mutex stands in for the
// database's row-level atomicity so the concurrency properties of the
// engine can be exercised without a server.

import (
	"context"
	"sync"
	"time"

	"github.com/parkops/daypass/internal/model"
	"github.com/parkops/daypass/internal/queue"
	"github.com/parkops/daypass/internal/repository"
)

func facilityKey(parkID, name string) string { return parkID + "/" + name }

func recordKey(parkID, facility, date string) string { return parkID + "/" + facility + "/" + date }

type memFacilityStore struct {
	mu         sync.Mutex
	parks      map[string]*model.Park
	facilities map[string]*model.Facility
}

func newMemFacilityStore() *memFacilityStore {
	return &memFacilityStore{
		parks:      make(map[string]*model.Park),
		facilities: make(map[string]*model.Facility),
	}
}

func (s *memFacilityStore) putPark(p model.Park) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parks[p.ID] = &p
}

func (s *memFacilityStore) putFacility(f model.Facility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facilities[facilityKey(f.ParkID, f.Name)] = &f
}

func (s *memFacilityStore) GetPark(_ context.Context, parkID string) (*model.Park, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parks[parkID]
	if !ok {
		return nil, repository.ErrParkNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memFacilityStore) GetFacility(_ context.Context, parkID, name string) (*model.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facilities[facilityKey(parkID, name)]
	if !ok {
		return nil, repository.ErrFacilityNotFound
	}
	cp := *f
	cp.Slots = append([]model.SlotConfig(nil), f.Slots...)
	cp.Holidays = append([]string(nil), f.Holidays...)
	return &cp, nil
}

func (s *memFacilityStore) AcquireLock(ctx context.Context, parkID, name string) (*model.Facility, error) {
	s.mu.Lock()
	f, ok := s.facilities[facilityKey(parkID, name)]
	if !ok {
		s.mu.Unlock()
		return nil, repository.ErrFacilityNotFound
	}
	if f.IsUpdating {
		s.mu.Unlock()
		return nil, repository.ErrBusy
	}
	f.IsUpdating = true
	s.mu.Unlock()
	return s.GetFacility(ctx, parkID, name)
}

func (s *memFacilityStore) ReleaseLock(_ context.Context, parkID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.facilities[facilityKey(parkID, name)]; ok {
		f.IsUpdating = false
	}
	return nil
}

func (s *memFacilityStore) ReplaceSlots(_ context.Context, parkID, name string, slots []model.SlotConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facilities[facilityKey(parkID, name)]
	if !ok {
		return repository.ErrFacilityNotFound
	}
	f.Slots = append([]model.SlotConfig(nil), slots...)
	return nil
}

func (s *memFacilityStore) SetStatus(_ context.Context, parkID, name, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facilities[facilityKey(parkID, name)]
	if !ok {
		return repository.ErrFacilityNotFound
	}
	f.Status = status
	return nil
}

type memRecordStore struct {
	mu          sync.Mutex
	records     map[string]*model.ReservationRecord
	createCalls int // successful creations, for idempotence assertions
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{records: make(map[string]*model.ReservationRecord)}
}

func copyRecord(r *model.ReservationRecord) *model.ReservationRecord {
	cp := *r
	cp.Slots = append([]model.SlotCapacity(nil), r.Slots...)
	return &cp
}

func (s *memRecordStore) Get(_ context.Context, parkID, facility, date string) (*model.ReservationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey(parkID, facility, date)]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return copyRecord(r), nil
}

func (s *memRecordStore) Create(_ context.Context, rec *model.ReservationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(rec.ParkID, rec.FacilityName, rec.Date)
	if _, ok := s.records[key]; ok {
		return repository.ErrRecordExists
	}
	cp := copyRecord(rec)
	cp.CreatedAt = time.Now().UTC()
	s.records[key] = cp
	s.createCalls++
	return nil
}

func (s *memRecordStore) ApplyDelta(_ context.Context, parkID, facility, date, slot string, delta int) (*model.SlotCapacity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey(parkID, facility, date)]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	sc := r.Slot(slot)
	if sc == nil {
		return nil, repository.ErrSlotNotFound
	}
	next := sc.AvailablePasses - delta
	if next < 0 || next > sc.BaseCapacity+sc.CapacityModifier {
		return nil, repository.ErrCapacityExceeded
	}
	sc.AvailablePasses = next
	cp := *sc
	return &cp, nil
}

func (s *memRecordStore) ApplyModifier(_ context.Context, parkID, facility, date, slot string, change int) (*model.SlotCapacity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey(parkID, facility, date)]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	sc := r.Slot(slot)
	if sc == nil {
		return nil, repository.ErrSlotNotFound
	}
	if sc.AvailablePasses+change < 0 || sc.BaseCapacity+sc.CapacityModifier+change < 0 {
		return nil, repository.ErrNegativeCapacity
	}
	sc.CapacityModifier += change
	sc.AvailablePasses += change
	cp := *sc
	return &cp, nil
}

type memPassStore struct {
	mu     sync.Mutex
	passes map[string]*model.Pass
}

func newMemPassStore() *memPassStore {
	return &memPassStore{passes: make(map[string]*model.Pass)}
}

func copyPass(p *model.Pass) *model.Pass {
	cp := *p
	cp.Audit = append([]model.AuditEntry(nil), p.Audit...)
	if p.HoldExpiresAt != nil {
		t := *p.HoldExpiresAt
		cp.HoldExpiresAt = &t
	}
	return &cp
}

func (s *memPassStore) Create(_ context.Context, p *model.Pass, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.ParkID + "/" + p.RegistrationNumber
	now := time.Now().UTC()
	cp := copyPass(p)
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.Audit = append(cp.Audit, model.AuditEntry{Status: p.Status, Actor: actor, At: now})
	s.passes[key] = cp
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Audit = append(p.Audit, model.AuditEntry{Status: p.Status, Actor: actor, At: now})
	return nil
}

func (s *memPassStore) Get(_ context.Context, parkID, registration string) (*model.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passes[parkID+"/"+registration]
	if !ok {
		return nil, repository.ErrPassNotFound
	}
	return copyPass(p), nil
}

func (s *memPassStore) Transition(_ context.Context, parkID, registration, from, to, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passes[parkID+"/"+registration]
	if !ok {
		return repository.ErrPassNotFound
	}
	if p.Status != from {
		return repository.ErrInvalidTransition
	}
	now := time.Now().UTC()
	p.Status = to
	p.HoldExpiresAt = nil
	p.UpdatedAt = now
	p.Audit = append(p.Audit, model.AuditEntry{Status: to, Actor: actor, At: now})
	return nil
}

func (s *memPassStore) ExpiredHolds(_ context.Context, cutoff time.Time, limit int) ([]model.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Pass
	for _, p := range s.passes {
		if p.Status == model.PassStatusHold && p.HoldExpiresAt != nil && !p.HoldExpiresAt.After(cutoff) {
			out = append(out, *copyPass(p))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// memPublisher records published events for assertions.
type memPublisher struct {
	mu     sync.Mutex
	events []queue.PassEvent
}

func (p *memPublisher) PublishPassEvent(_ context.Context, ev queue.PassEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) byType(t string) []queue.PassEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.PassEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// acceptAll is a Verifier that admits every proof.
type acceptAll struct{}

func (acceptAll) Verify(context.Context, string) error { return nil }

// rejectAll is a Verifier that refuses every proof.
type rejectAll struct{ err error }

func (v rejectAll) Verify(context.Context, string) error { return v.err }
