// Package models defines the local records kept in sync with the payment
// processor.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Charge is the local cache of a processor charge.
//
// StripeID is the processor-assigned identifier and the storage key; it never
// changes once set. The processor is authoritative for every other field, so
// there is no local state machine guarding the status flags.
//
// CustomerID, InvoiceID and AccountID are weak references holding processor
// ids. An empty value means the relation is unset, which is a normal state.
type Charge struct {
	ID       uuid.UUID `json:"id"`
	StripeID string    `json:"stripeId"`

	CustomerID string `json:"customerId,omitempty"`
	InvoiceID  string `json:"invoiceId,omitempty"`

	// AccountID is the connected account the charge was created or retrieved
	// under. Only set when the customer relation cannot provide it.
	AccountID string `json:"accountId,omitempty"`

	Source         string          `json:"source,omitempty"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	AmountRefunded decimal.Decimal `json:"amountRefunded"`
	Description    string          `json:"description,omitempty"`

	Paid      bool `json:"paid"`
	Captured  bool `json:"captured"`
	Refunded  bool `json:"refunded"`
	Disputed  bool `json:"disputed"`
	Available bool `json:"available"`

	AvailableOn *time.Time       `json:"availableOn,omitempty"`
	Fee         *decimal.Decimal `json:"fee,omitempty"`
	FeeCurrency string           `json:"feeCurrency,omitempty"`

	TransferGroup string            `json:"transferGroup,omitempty"`
	Outcome       json.RawMessage   `json:"outcome,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`

	// ChargeCreated is the processor's creation time.
	ChargeCreated *time.Time `json:"chargeCreated,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Unrefunded returns the part of the amount that has not been refunded yet.
func (c *Charge) Unrefunded() decimal.Decimal {
	return c.Amount.Sub(c.AmountRefunded)
}

// AvailabilityCandidate reports whether the charge can still move to an
// available settlement state.
func (c *Charge) AvailabilityCandidate() bool {
	return c.Paid && c.Captured && !(c.Available || c.Refunded)
}
