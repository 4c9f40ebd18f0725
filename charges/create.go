package charges

import (
	"context"
	"fmt"
	"strings"

	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/money"
	"github.com/arkantrust/charge-sync/processor"
)

// Create charges a customer or source and returns the synced local charge.
//
// Parameters are validated and converted before anything is written or sent.
// When a receipt is due it is dispatched in the background; its outcome never
// affects the returned charge.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Charge, error) {
	if err := ValidateCreateParams(p); err != nil {
		return nil, err
	}

	currency := strings.ToLower(p.Currency)
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	req := processor.CreateChargeRequest{
		Currency:       currency,
		Source:         p.Source,
		Description:    p.Description,
		Capture:        !p.AuthorizeOnly,
		Metadata:       p.Metadata,
		OnBehalfOf:     p.OnBehalfOf,
		IdempotencyKey: p.IdempotencyKey,
		Expand:         []string{processor.ExpandBalanceTransaction},
	}

	var err error
	if req.Amount, err = money.ToMinorUnits(p.Amount, currency); err != nil {
		return nil, err
	}
	if p.DestinationAccount != "" {
		req.Destination = &processor.Destination{Account: p.DestinationAccount}
		if p.DestinationAmount != nil {
			v, err := money.ToMinorUnits(*p.DestinationAmount, currency)
			if err != nil {
				return nil, err
			}
			req.Destination.Amount = &v
		}
	}
	if p.ApplicationFee != nil {
		v, err := money.ToMinorUnits(*p.ApplicationFee, currency)
		if err != nil {
			return nil, err
		}
		req.ApplicationFee = &v
	}

	customer, err := s.resolveCustomer(p.Customer)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		req.Customer = customer.StripeID
		req.ConnectedAccount = customer.AccountID
	}
	if p.DirectConnect != "" {
		req.ConnectedAccount = p.DirectConnect
	}

	data, err := s.client.CreateCharge(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}

	// Destination charges live on the platform; record only the account the
	// charge was actually created under.
	charge, err := s.SyncFromRepresentation(data, req.ConnectedAccount)
	if err != nil {
		return nil, err
	}

	send := s.cfg.SendReceipts
	if p.SendReceipt != nil {
		send = *p.SendReceipt
	}
	if send {
		s.dispatchReceipt(ctx, charge, p.Email)
	}
	return charge, nil
}

func (s *Service) resolveCustomer(ref CustomerRef) (*models.Customer, error) {
	if ref.customer != nil {
		return ref.customer, nil
	}
	if ref.stripeID == "" {
		return nil, nil
	}
	c, created, err := s.store.GetOrCreateCustomer(ref.stripeID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %s: %w", ref.stripeID, err)
	}
	if created {
		s.log.Infof("created placeholder for customer %s", ref.stripeID)
	}
	return c, nil
}

func (s *Service) dispatchReceipt(ctx context.Context, charge *models.Charge, email string) {
	if s.receipts == nil {
		s.log.Errorf("receipt for charge %s requested but no receipt sender is configured", charge.StripeID)
		return
	}
	c := *charge
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.receipts.SendReceipt(ctx, &c, email); err != nil {
			s.log.Errorf("send receipt for charge %s: %v", c.StripeID, err)
		}
	}()
}
