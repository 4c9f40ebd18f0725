package charges_test

import (
	"context"
	"testing"
	"time"

	"github.com/arkantrust/charge-sync/charges"
	"github.com/arkantrust/charge-sync/processor"
)

func pendingSettlement(id string) processor.BalanceTransactionRef {
	return processor.BalanceTransactionRef{ID: "txn_" + id, Object: &processor.BalanceTransaction{
		ID: "txn_" + id, Status: "pending", AvailableOn: 1700500000, Fee: 30, Currency: "usd",
	}}
}

func TestUpdateAvailabilitySyncsOnlyCandidates(t *testing.T) {
	f := newFixture(t, charges.Config{ScanPageSize: 1})

	seedCharge(t, f, &processor.Charge{ID: "ch_pending", Amount: 1000, Currency: "usd", Paid: true, Captured: true,
		BalanceTransaction: pendingSettlement("ch_pending")}, "acct_1")
	seedCharge(t, f, &processor.Charge{ID: "ch_available", Amount: 1000, Currency: "usd", Paid: true, Captured: true,
		BalanceTransaction: processor.BalanceTransactionRef{ID: "txn_a", Object: &processor.BalanceTransaction{ID: "txn_a", Status: "available", Currency: "usd"}}}, "")
	seedCharge(t, f, &processor.Charge{ID: "ch_refunded", Amount: 1000, Currency: "usd", Paid: true, Captured: true, Refunded: true}, "")
	seedCharge(t, f, &processor.Charge{ID: "ch_uncaptured", Amount: 1000, Currency: "usd", Paid: true}, "")

	// The processor has since settled the pending charge.
	f.proc.put(&processor.Charge{ID: "ch_pending", Amount: 1000, Currency: "usd", Paid: true, Captured: true,
		BalanceTransaction: processor.BalanceTransactionRef{ID: "txn_p", Object: &processor.BalanceTransaction{
			ID: "txn_p", Status: "available", AvailableOn: 1700500000, Fee: 30, Currency: "usd",
		}}})

	report, err := f.svc.UpdateAvailability(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Candidates != 1 || report.Synced != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(f.proc.retrieved) != 1 || f.proc.retrieved[0].ChargeID != "ch_pending" {
		t.Fatalf("expected only ch_pending to be re-fetched, got %+v", f.proc.retrieved)
	}
	if f.proc.retrieved[0].ConnectedAccount != "acct_1" {
		t.Fatalf("expected recorded account, got %q", f.proc.retrieved[0].ConnectedAccount)
	}

	c, err := f.store.GetCharge("ch_pending")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Available {
		t.Fatal("expected charge to become available")
	}

	// Nothing is left to check on a second pass.
	report, err = f.svc.UpdateAvailability(t.Context())
	if err != nil || report.Candidates != 0 {
		t.Fatalf("expected empty second pass, got %+v (%v)", report, err)
	}
}

func TestUpdateAvailabilityContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, charges.Config{ScanPageSize: 2})

	for _, id := range []string{"ch_a", "ch_b", "ch_c"} {
		seedCharge(t, f, &processor.Charge{ID: id, Amount: 1000, Currency: "usd", Paid: true, Captured: true,
			BalanceTransaction: pendingSettlement(id)}, "")
	}
	// ch_b vanished at the processor.
	f.proc.mu.Lock()
	delete(f.proc.charges, "ch_b")
	f.proc.mu.Unlock()

	report, err := f.svc.UpdateAvailability(t.Context())
	if err == nil {
		t.Fatal("expected joined error for the failed charge")
	}
	if report.Candidates != 3 || report.Synced != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRunAvailabilityScheduleStopsWithContext(t *testing.T) {
	f := newFixture(t, charges.Config{})
	seedCharge(t, f, &processor.Charge{ID: "ch_s", Amount: 1000, Currency: "usd", Paid: true, Captured: true,
		BalanceTransaction: pendingSettlement("ch_s")}, "")

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		f.svc.RunAvailabilitySchedule(ctx, time.Hour, time.Second)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		f.proc.mu.Lock()
		n := len(f.proc.retrieved)
		f.proc.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected an immediate availability pass")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("schedule did not stop after cancel")
	}
}
