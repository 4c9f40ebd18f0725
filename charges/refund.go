package charges

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/money"
	"github.com/arkantrust/charge-sync/processor"
)

// CalculateRefundAmount returns how much of charge can be refunded: the
// unrefunded balance, capped at requested when it is given.
func CalculateRefundAmount(charge *models.Charge, requested *decimal.Decimal) decimal.Decimal {
	eligible := charge.Unrefunded()
	if requested != nil {
		return decimal.Min(eligible, *requested)
	}
	return eligible
}

// RefundOptions tune Service.Refund.
type RefundOptions struct {
	// Amount to refund, capped at the unrefunded balance. Nil refunds
	// whatever the processor considers refundable.
	Amount *decimal.Decimal
	// ConnectedAccount overrides the account recorded for the charge.
	ConnectedAccount string
	IdempotencyKey   string
}

// Refund refunds charge and re-syncs it from a fresh processor fetch.
func (s *Service) Refund(ctx context.Context, charge *models.Charge, opts RefundOptions) (*models.Charge, error) {
	req := processor.CreateRefundRequest{
		ChargeID:         charge.StripeID,
		ConnectedAccount: opts.ConnectedAccount,
		IdempotencyKey:   opts.IdempotencyKey,
	}
	if opts.Amount != nil {
		minor, err := money.ToMinorUnits(CalculateRefundAmount(charge, opts.Amount), charge.Currency)
		if err != nil {
			return nil, err
		}
		req.Amount = &minor
	}
	if req.ConnectedAccount == "" {
		account, err := s.ConnectedAccount(charge)
		if err != nil {
			return nil, err
		}
		req.ConnectedAccount = account
	}

	if _, err := s.client.CreateRefund(ctx, req); err != nil {
		return nil, fmt.Errorf("refund charge %s: %w", charge.StripeID, err)
	}
	return s.SyncCharge(ctx, charge.StripeID, req.ConnectedAccount)
}
