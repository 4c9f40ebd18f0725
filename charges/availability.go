package charges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkantrust/charge-sync/models"
)

// AvailabilityReport summarizes one availability pass.
type AvailabilityReport struct {
	Candidates int
	Synced     int
	Failed     int
}

// UpdateAvailability re-syncs every paid and captured charge that is neither
// available nor refunded yet, since only those can still change settlement
// state.
//
// Each charge syncs on its own: a failure is logged and the pass moves on,
// and the failures are returned joined. Cancelling ctx stops the pass between
// charges; what was synced stays synced.
func (s *Service) UpdateAvailability(ctx context.Context) (AvailabilityReport, error) {
	var report AvailabilityReport
	var errs []error

	scanErr := s.store.ScanCharges(ctx, s.cfg.ScanPageSize, (*models.Charge).AvailabilityCandidate, func(c *models.Charge) error {
		report.Candidates++

		account, err := s.ConnectedAccount(c)
		if err == nil {
			_, err = s.SyncCharge(ctx, c.StripeID, account)
		}
		if err != nil {
			report.Failed++
			s.log.Errorf("availability: charge %s: %v", c.StripeID, err)
			errs = append(errs, fmt.Errorf("charge %s: %w", c.StripeID, err))
			return nil
		}
		report.Synced++
		return nil
	})
	if scanErr != nil {
		errs = append(errs, scanErr)
	}

	s.log.Infof("availability: %d candidates, %d synced, %d failed", report.Candidates, report.Synced, report.Failed)
	return report, errors.Join(errs...)
}

// RunAvailabilitySchedule runs UpdateAvailability once right away and then on
// every interval until ctx is done. Each run is bounded by timeout when it is
// positive.
func (s *Service) RunAvailabilitySchedule(ctx context.Context, interval, timeout time.Duration) {
	runOnce := func() {
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()
		if _, err := s.UpdateAvailability(runCtx); err != nil {
			s.log.Errorf("availability: pass finished with errors: %v", err)
		}
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
