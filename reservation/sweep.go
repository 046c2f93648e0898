/*
sweep.go - Expiry of stale pending holds

PURPOSE:
  A pending reservation holds capacity indefinitely until approved,
  rejected or canceled. Deployments that want pending holds to expire run
  the Sweeper: a background job that cancels pending reservations older
  than a TTL, through the ordinary cancel transition, so the capacity
  invariant is maintained by the same audited code path as everything
  else.

SCHEDULING:
  Uses robfig/cron with an "@every" spec. Stop drains the running job
  before returning.

SEE ALSO:
  - admission.go: Cancel takes the per-resource lock, so a sweep never
    races an in-flight admission on the same resource
*/
package reservation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// sweepActor performs system-initiated cancellations. It carries the
// admin capability because walk-in holds have no owner; without it the
// cancel guard would refuse them.
var sweepActor = ActorRef{ID: "system-sweeper", IsAdmin: true}

// Sweeper cancels pending reservations whose hold outlived HoldTTL.
type Sweeper struct {
	Controller *Controller
	Ledger     LedgerStore
	Clock      Clock

	HoldTTL  time.Duration
	Interval time.Duration

	cron *cron.Cron
}

func NewSweeper(controller *Controller, ledger LedgerStore, clock Clock, holdTTL, interval time.Duration) *Sweeper {
	return &Sweeper{
		Controller: controller,
		Ledger:     ledger,
		Clock:      clock,
		HoldTTL:    holdTTL,
		Interval:   interval,
		cron:       cron.New(),
	}
}

// Start schedules the sweep. Returns an error if the interval is invalid.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.Interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
		defer cancel()

		swept, err := s.SweepOnce(ctx)
		if err != nil {
			log.Printf("hold sweep failed: %v", err)
			return
		}
		if swept > 0 {
			log.Printf("hold sweep canceled %d stale pending reservations", swept)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// SweepOnce cancels every pending reservation created more than HoldTTL
// ago. Returns the number of reservations canceled. Individual cancel
// conflicts (e.g. an admin approved the hold mid-sweep) are skipped, not
// fatal.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	pending, err := s.Ledger.ListByStatus(ctx, StatusPending)
	if err != nil {
		return 0, err
	}

	deadline := s.Clock.Now().Add(-s.HoldTTL)
	swept := 0
	for _, r := range pending {
		if r.CreatedAt.After(deadline) {
			continue
		}
		if _, err := s.Controller.Cancel(ctx, r.ID, sweepActor); err != nil {
			if IsClientError(err) {
				continue // state moved under us; someone else decided first
			}
			return swept, err
		}
		swept++
	}
	return swept, nil
}
