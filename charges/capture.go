package charges

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/money"
	"github.com/arkantrust/charge-sync/processor"
)

// CaptureOptions tune Service.Capture.
type CaptureOptions struct {
	// Amount to capture; the full charge amount when nil.
	Amount         *decimal.Decimal
	IdempotencyKey string
}

// Capture captures a previously authorized charge and re-syncs it.
// Eligibility is left to the processor.
func (s *Service) Capture(ctx context.Context, charge *models.Charge, opts CaptureOptions) (*models.Charge, error) {
	amount := charge.Amount
	if opts.Amount != nil {
		amount = *opts.Amount
	}
	minor, err := money.ToMinorUnits(amount, charge.Currency)
	if err != nil {
		return nil, err
	}

	account, err := s.ConnectedAccount(charge)
	if err != nil {
		return nil, err
	}

	data, err := s.client.CaptureCharge(ctx, processor.CaptureChargeRequest{
		ChargeID:         charge.StripeID,
		Amount:           minor,
		ConnectedAccount: account,
		IdempotencyKey:   opts.IdempotencyKey,
		Expand:           []string{processor.ExpandBalanceTransaction},
	})
	if err != nil {
		return nil, fmt.Errorf("capture charge %s: %w", charge.StripeID, err)
	}
	return s.SyncFromRepresentation(data, account)
}
