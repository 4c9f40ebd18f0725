package charges_test

import (
	"errors"
	"testing"

	"github.com/arkantrust/charge-sync/charges"
	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/processor"
)

func TestCaptureDefaultsToFullAmount(t *testing.T) {
	f := newFixture(t, charges.Config{})
	if err := f.store.SaveCustomer(&models.Customer{StripeID: "cus_1", AccountID: "acct_cust"}); err != nil {
		t.Fatal(err)
	}
	c := seedCharge(t, f, &processor.Charge{
		ID: "ch_auth", Amount: 2500, Currency: "usd", Customer: processor.Ref{ID: "cus_1"}, Paid: true,
	}, "")

	got, err := f.svc.Capture(t.Context(), c, charges.CaptureOptions{IdempotencyKey: "cap-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := f.proc.captured[0]
	if req.ChargeID != "ch_auth" || req.Amount != 2500 || req.IdempotencyKey != "cap-1" {
		t.Fatalf("unexpected capture request: %+v", req)
	}
	if req.ConnectedAccount != "acct_cust" {
		t.Fatalf("expected customer account routing, got %q", req.ConnectedAccount)
	}
	if len(req.Expand) != 1 || req.Expand[0] != processor.ExpandBalanceTransaction {
		t.Fatalf("expected balance transaction expansion, got %v", req.Expand)
	}
	if !got.Captured || got.Fee == nil || !got.Fee.Equal(dec("0.59")) || got.AvailableOn == nil || got.Available {
		t.Fatalf("unexpected captured charge: %+v", got)
	}
}

func TestCapturePartialAmount(t *testing.T) {
	f := newFixture(t, charges.Config{})
	c := seedCharge(t, f, &processor.Charge{ID: "ch_auth", Amount: 1500, Currency: "jpy", Paid: true}, "")

	if _, err := f.svc.Capture(t.Context(), c, charges.CaptureOptions{Amount: decp("1000")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.proc.captured[0].Amount != 1000 {
		t.Fatalf("expected zero-decimal amount 1000, got %d", f.proc.captured[0].Amount)
	}
}

func TestCaptureProcessorError(t *testing.T) {
	f := newFixture(t, charges.Config{})
	c := seedCharge(t, f, &processor.Charge{ID: "ch_auth", Amount: 1500, Currency: "usd", Paid: true}, "")
	f.proc.err = errDeclined

	if _, err := f.svc.Capture(t.Context(), c, charges.CaptureOptions{}); !errors.Is(err, errDeclined) {
		t.Fatalf("expected processor error, got %v", err)
	}
	stored, err := f.store.GetCharge("ch_auth")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Captured {
		t.Fatal("charge must not change after a failed capture")
	}
}

func TestCaptureAuthorizeOnlyDestinationCharge(t *testing.T) {
	f := newFixture(t, charges.Config{})

	c, err := f.svc.Create(t.Context(), charges.CreateParams{
		Amount:             dec("40"),
		Source:             "tok_1",
		DestinationAccount: "acct_dest",
		AuthorizeOnly:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.proc.created[0].ConnectedAccount != "" {
		t.Fatalf("destination charge must be created on the platform, got %q", f.proc.created[0].ConnectedAccount)
	}
	if c.AccountID != "" {
		t.Fatalf("destination account must not be recorded as the charge's account, got %q", c.AccountID)
	}

	got, err := f.svc.Capture(t.Context(), c, charges.CaptureOptions{})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if f.proc.captured[0].ConnectedAccount != "" {
		t.Fatalf("capture routed to %q", f.proc.captured[0].ConnectedAccount)
	}
	if !got.Captured {
		t.Fatalf("expected captured charge, got %+v", got)
	}
}
