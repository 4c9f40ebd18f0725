package charges_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arkantrust/charge-sync/charges"
	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/processor"
	"github.com/arkantrust/charge-sync/store"
)

// fakeProcessor keeps charges in memory and records every request.
type fakeProcessor struct {
	mu sync.Mutex

	charges map[string]*processor.Charge
	// owners holds the Stripe-Account each created charge lives on.
	owners map[string]string
	nextID int
	err    error

	created   []processor.CreateChargeRequest
	captured  []processor.CaptureChargeRequest
	retrieved []processor.RetrieveChargeRequest
	refunds   []processor.CreateRefundRequest
	listed    []string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{charges: map[string]*processor.Charge{}, owners: map[string]string{}}
}

func (f *fakeProcessor) put(ch *processor.Charge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *ch
	f.charges[ch.ID] = &c
}

func missing(id string) error {
	return &processor.Error{HTTPStatus: 404, Type: "invalid_request_error", Code: "resource_missing", Message: "No such charge: " + id}
}

func (f *fakeProcessor) get(id string) (*processor.Charge, error) {
	ch, ok := f.charges[id]
	if !ok {
		return nil, missing(id)
	}
	c := *ch
	return &c, nil
}

// visible reports whether a charge can be seen under account. Charges added
// with put are visible everywhere.
func (f *fakeProcessor) visible(id, account string) bool {
	owner, ok := f.owners[id]
	return !ok || owner == account
}

func (f *fakeProcessor) CreateCharge(_ context.Context, req processor.CreateChargeRequest) (*processor.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	ch := &processor.Charge{
		ID:             fmt.Sprintf("ch_%d", f.nextID),
		Amount:         req.Amount,
		AmountRefunded: processor.Some(int64(0)),
		Currency:       req.Currency,
		Customer:       processor.Ref{ID: req.Customer},
		Source:         processor.Ref{ID: req.Source},
		Description:    processor.Some(req.Description),
		Paid:           true,
		Captured:       req.Capture,
		Created:        1700000000,
		Metadata:       req.Metadata,
	}
	f.charges[ch.ID] = ch
	f.owners[ch.ID] = req.ConnectedAccount
	c := *ch
	return &c, nil
}

func (f *fakeProcessor) CaptureCharge(_ context.Context, req processor.CaptureChargeRequest) (*processor.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, req)
	if f.err != nil {
		return nil, f.err
	}
	ch, ok := f.charges[req.ChargeID]
	if !ok || !f.visible(req.ChargeID, req.ConnectedAccount) {
		return nil, missing(req.ChargeID)
	}
	ch.Captured = true
	ch.BalanceTransaction = processor.BalanceTransactionRef{
		ID:     "txn_" + ch.ID,
		Object: &processor.BalanceTransaction{ID: "txn_" + ch.ID, Status: "pending", AvailableOn: 1700500000, Fee: 59, Currency: ch.Currency},
	}
	return f.get(req.ChargeID)
}

func (f *fakeProcessor) RetrieveCharge(_ context.Context, req processor.RetrieveChargeRequest) (*processor.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieved = append(f.retrieved, req)
	if f.err != nil {
		return nil, f.err
	}
	if !f.visible(req.ChargeID, req.ConnectedAccount) {
		return nil, missing(req.ChargeID)
	}
	return f.get(req.ChargeID)
}

func (f *fakeProcessor) CreateRefund(_ context.Context, req processor.CreateRefundRequest) (*processor.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, req)
	if f.err != nil {
		return nil, f.err
	}
	ch, ok := f.charges[req.ChargeID]
	if !ok || !f.visible(req.ChargeID, req.ConnectedAccount) {
		return nil, missing(req.ChargeID)
	}
	refunded, _ := ch.AmountRefunded.Get()
	amount := ch.Amount - refunded
	if req.Amount != nil {
		amount = *req.Amount
	}
	refunded += amount
	ch.AmountRefunded = processor.Some(refunded)
	ch.Refunded = refunded == ch.Amount
	return &processor.Refund{ID: "re_" + ch.ID, Amount: amount, Charge: processor.Ref{ID: ch.ID}, Currency: ch.Currency}, nil
}

func (f *fakeProcessor) ListCustomerCharges(_ context.Context, customerID, connectedAccount string) ([]*processor.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, connectedAccount)
	if f.err != nil {
		return nil, f.err
	}
	var out []*processor.Charge
	for _, ch := range f.charges {
		if ch.Customer.ID == customerID && f.visible(ch.ID, connectedAccount) {
			c := *ch
			out = append(out, &c)
		}
	}
	return out, nil
}

// fakeReceipts records receipts on a channel.
type fakeReceipts struct {
	sent chan receipt
	err  error
}

type receipt struct {
	chargeID string
	email    string
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{sent: make(chan receipt, 8)}
}

func (r *fakeReceipts) SendReceipt(_ context.Context, c *models.Charge, email string) error {
	r.sent <- receipt{chargeID: c.StripeID, email: email}
	return r.err
}

type testLogger struct{ t *testing.T }

func (l testLogger) Infof(format string, args ...interface{})  { l.t.Logf("INFO "+format, args...) }
func (l testLogger) Errorf(format string, args ...interface{}) { l.t.Logf("ERROR "+format, args...) }

type fixture struct {
	svc      *charges.Service
	store    *store.Store
	proc     *fakeProcessor
	receipts *fakeReceipts
}

func newFixture(t *testing.T, cfg charges.Config) *fixture {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	proc := newFakeProcessor()
	receipts := newFakeReceipts()
	svc, err := charges.New(charges.Deps{
		Store:     s,
		Processor: proc,
		Receipts:  receipts,
		Logger:    testLogger{t},
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return &fixture{svc: svc, store: s, proc: proc, receipts: receipts}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var errDeclined = errors.New("card declined")
