package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/parkops/daypass/internal/model"
	"github.com/parkops/daypass/internal/queue"
	"github.com/parkops/daypass/internal/repository"
)

// Sweeper periodically reclaims capacity from lapsed holds. It runs
// independently of request traffic against the same conditional-write
// guarantees, so a hold committed a millisecond before its expiry is
// never expired: the sweeper's transition attempt simply loses the
// race and is counted as a harmless failure.
type Sweeper struct {
	passes    PassStore
	records   RecordStore
	publisher EventPublisher
	batchSize int
	now       func() time.Time
}

// NewSweeper constructs a Sweeper over the given stores. publisher may
// be nil. batchSize caps how many candidates one sweep processes;
// anything left over is picked up by the next cycle.
func NewSweeper(passes PassStore, records RecordStore, publisher EventPublisher, batchSize int) *Sweeper {
	if passes == nil || records == nil {
		panic("nil store passed to NewSweeper")
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Sweeper{
		passes:    passes,
		records:   records,
		publisher: publisher,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sweep scans for holds whose expiry has passed and expires each one
// independently: the conditional hold→expired transition first, then
// the capacity release. A failure on one candidate is logged and does
// not abort the rest of the sweep. Re-running over an already
// transitioned pass fails its transition with ErrInvalidTransition and
// is counted in failed, never retried within the same sweep.
func (s *Sweeper) Sweep(ctx context.Context) (processed, failed int) {
	candidates, err := s.passes.ExpiredHolds(ctx, s.now(), s.batchSize)
	if err != nil {
		log.Printf("sweeper: scan failed: %v", err)
		return 0, 0
	}
	for _, p := range candidates {
		if err := s.expire(ctx, &p); err != nil {
			failed++
			if errors.Is(err, repository.ErrInvalidTransition) {
				// Another actor (commit or cancel) won; nothing to reclaim.
				continue
			}
			log.Printf("sweeper: failed to expire %s/%s: %v", p.ParkID, p.RegistrationNumber, err)
			continue
		}
		processed++
	}
	return processed, failed
}

// Run invokes Sweep on a fixed interval until the context is
// cancelled. The first sweep runs immediately so a restart does not
// wait a full interval to reclaim stale holds.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		processed, failed := s.Sweep(ctx)
		if processed > 0 || failed > 0 {
			log.Printf("sweeper: processed=%d failed=%d", processed, failed)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// expire performs the expire transition for one candidate and releases
// its capacity. The transition's precondition on hold state is the
// sole arbiter of who reclaims the pass.
func (s *Sweeper) expire(ctx context.Context, p *model.Pass) error {
	if err := s.passes.Transition(ctx, p.ParkID, p.RegistrationNumber,
		model.PassStatusHold, model.PassStatusExpired, model.ActorSweeper); err != nil {
		return err
	}
	if _, err := s.records.ApplyDelta(ctx, p.ParkID, p.FacilityName, p.Date, p.SlotCode, -p.GuestCount); err != nil {
		log.Printf("ALERT: pass %s/%s expired but capacity release failed: %v",
			p.ParkID, p.RegistrationNumber, err)
		return err
	}
	if s.publisher != nil {
		ev := queue.PassEvent{
			Type:               queue.EventPassExpired,
			ParkID:             p.ParkID,
			RegistrationNumber: p.RegistrationNumber,
			FacilityName:       p.FacilityName,
			Date:               p.Date,
			SlotCode:           p.SlotCode,
			GuestCount:         p.GuestCount,
			Actor:              model.ActorSweeper,
			OccurredAt:         s.now().Format(time.RFC3339),
		}
		if err := s.publisher.PublishPassEvent(ctx, ev); err != nil {
			log.Printf("sweeper: failed to publish expired event for %s/%s: %v",
				p.ParkID, p.RegistrationNumber, err)
		}
	}
	return nil
}
