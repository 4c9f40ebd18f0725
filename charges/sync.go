package charges

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/money"
	"github.com/arkantrust/charge-sync/processor"
)

const balanceAvailable = "available"

// Retrieve fetches the processor's current view of a charge, including its
// settlement data.
func (s *Service) Retrieve(ctx context.Context, stripeID, account string) (*processor.Charge, error) {
	ch, err := s.client.RetrieveCharge(ctx, processor.RetrieveChargeRequest{
		ChargeID:         stripeID,
		ConnectedAccount: account,
		Expand:           []string{processor.ExpandBalanceTransaction},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve charge %s: %w", stripeID, err)
	}
	return ch, nil
}

// SyncCharge re-fetches a charge from the processor and syncs it locally.
func (s *Service) SyncCharge(ctx context.Context, stripeID, account string) (*models.Charge, error) {
	data, err := s.Retrieve(ctx, stripeID, account)
	if err != nil {
		return nil, err
	}
	return s.SyncFromRepresentation(data, account)
}

// SyncChargesForCustomer syncs every processor charge of customer, read under
// the connected account the customer belongs to.
func (s *Service) SyncChargesForCustomer(ctx context.Context, customer *models.Customer) error {
	list, err := s.client.ListCustomerCharges(ctx, customer.StripeID, customer.AccountID)
	if err != nil {
		return fmt.Errorf("list charges for customer %s: %w", customer.StripeID, err)
	}
	for _, data := range list {
		if _, err := s.SyncFromRepresentation(data, customer.AccountID); err != nil {
			return err
		}
	}
	s.log.Infof("synced %d charges for customer %s", len(list), customer.StripeID)
	return nil
}

// settlement holds the converted balance-transaction fields.
type settlement struct {
	available   bool
	availableOn *time.Time
	fee         decimal.Decimal
	feeCurrency string
}

// SyncFromRepresentation creates or updates the local charge described by
// data and returns it. It is the only place charge records are written.
//
// account is the connected account the data was obtained under, if any. For
// direct charges on shared customers it is the only way to learn the account.
//
// Repeated calls with the same data converge to the same record. Fields
// missing from data never clear known local values, except the passthrough
// fields which always mirror the latest representation.
func (s *Service) SyncFromRepresentation(data *processor.Charge, account string) (*models.Charge, error) {
	if data == nil || data.ID == "" {
		return nil, errors.New("sync charge: representation has no id")
	}

	// Convert every amount first so a bad currency leaves the store untouched.
	amount, err := money.ToDecimal(data.Amount, data.Currency)
	if err != nil {
		return nil, fmt.Errorf("sync charge %s: amount: %w", data.ID, err)
	}
	var refunded *decimal.Decimal
	if minor, ok := data.AmountRefunded.Get(); ok {
		v, err := money.ToDecimal(minor, data.Currency)
		if err != nil {
			return nil, fmt.Errorf("sync charge %s: amount refunded: %w", data.ID, err)
		}
		refunded = &v
	}
	var settled *settlement
	if bt := data.BalanceTransaction.Object; bt != nil {
		fee, err := money.ToDecimal(bt.Fee, bt.Currency)
		if err != nil {
			return nil, fmt.Errorf("sync charge %s: fee: %w", data.ID, err)
		}
		settled = &settlement{
			available:   bt.Status == balanceAvailable,
			availableOn: timestamp(bt.AvailableOn),
			fee:         fee,
			feeCurrency: bt.Currency,
		}
	}

	obj, _, err := s.store.GetOrCreateCharge(data.ID)
	if err != nil {
		return nil, fmt.Errorf("sync charge %s: %w", data.ID, err)
	}

	customer, err := s.findCustomer(data.Customer.ID)
	if err != nil {
		return nil, err
	}
	obj.CustomerID = ""
	if customer != nil {
		obj.CustomerID = customer.StripeID
	}
	if (customer == nil || customer.AccountID == "") && account != "" {
		if _, _, err := s.store.GetOrCreateAccount(account); err != nil {
			return nil, fmt.Errorf("sync charge %s: account %s: %w", data.ID, account, err)
		}
		obj.AccountID = account
	}

	obj.Source = data.Source.ID
	obj.Currency = data.Currency
	invoice, err := s.findInvoice(data.Invoice.ID)
	if err != nil {
		return nil, err
	}
	obj.InvoiceID = ""
	if invoice != nil {
		obj.InvoiceID = invoice.StripeID
	}
	obj.Amount = amount

	obj.Paid = data.Paid
	obj.Captured = data.Captured
	obj.Refunded = data.Refunded
	obj.Disputed = data.Dispute.ID != ""
	obj.ChargeCreated = timestamp(data.Created)

	if d, ok := data.Description.Get(); ok && d != "" {
		obj.Description = d
	}
	if refunded != nil {
		obj.AmountRefunded = *refunded
	}
	if data.Refunded {
		obj.AmountRefunded = obj.Amount
	}

	if settled != nil {
		obj.Available = settled.available
		obj.AvailableOn = settled.availableOn
		fee := settled.fee
		obj.Fee = &fee
		obj.FeeCurrency = settled.feeCurrency
	}

	obj.TransferGroup = data.TransferGroup
	obj.Outcome = nil
	if len(data.Outcome) > 0 && !bytes.Equal(bytes.TrimSpace(data.Outcome), []byte("null")) {
		obj.Outcome = append(obj.Outcome, data.Outcome...)
	}
	obj.Metadata = nil
	if len(data.Metadata) > 0 {
		obj.Metadata = make(map[string]string, len(data.Metadata))
		for k, v := range data.Metadata {
			obj.Metadata[k] = v
		}
	}

	saved, _, err := s.store.SaveCharge(obj)
	if err != nil {
		return nil, fmt.Errorf("sync charge %s: save: %w", data.ID, err)
	}
	return saved, nil
}

func timestamp(unix int64) *time.Time {
	if unix == 0 {
		return nil
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}
