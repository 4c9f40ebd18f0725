// Package processor is the payment processor API surface consumed by the
// charge core: request shapes, charge representations and a Stripe REST
// client.
package processor

import (
	"context"
	"fmt"
)

// ExpandBalanceTransaction asks the processor to inline settlement data.
const ExpandBalanceTransaction = "balance_transaction"

// Client is the set of processor calls the charge core depends on.
type Client interface {
	CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error)
	CaptureCharge(ctx context.Context, req CaptureChargeRequest) (*Charge, error)
	RetrieveCharge(ctx context.Context, req RetrieveChargeRequest) (*Charge, error)
	CreateRefund(ctx context.Context, req CreateRefundRequest) (*Refund, error)
	ListCustomerCharges(ctx context.Context, customerID, connectedAccount string) ([]*Charge, error)
}

// Destination routes part of a platform charge to a connected account.
type Destination struct {
	Account string
	Amount  *int64
}

// CreateChargeRequest describes a new charge. Amounts are minor units.
type CreateChargeRequest struct {
	Amount         int64
	Currency       string
	Source         string
	Customer       string
	Description    string
	Capture        bool
	Metadata       map[string]string
	Destination    *Destination
	ApplicationFee *int64
	OnBehalfOf     string
	Expand         []string

	// ConnectedAccount is sent as the Stripe-Account routing header.
	ConnectedAccount string
	IdempotencyKey   string
}

// CaptureChargeRequest captures an authorized charge.
type CaptureChargeRequest struct {
	ChargeID         string
	Amount           int64
	Expand           []string
	ConnectedAccount string
	IdempotencyKey   string
}

// RetrieveChargeRequest fetches the current representation of a charge.
type RetrieveChargeRequest struct {
	ChargeID         string
	Expand           []string
	ConnectedAccount string
}

// CreateRefundRequest refunds a charge, fully when Amount is nil.
type CreateRefundRequest struct {
	ChargeID         string
	Amount           *int64
	ConnectedAccount string
	IdempotencyKey   string
}

// Error is an error response returned by the processor API.
type Error struct {
	HTTPStatus  int    `json:"-"`
	Type        string `json:"type"`
	Code        string `json:"code,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
	Param       string `json:"param,omitempty"`
	Message     string `json:"message"`
	RequestID   string `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("stripe: %s (status %d", e.Message, e.HTTPStatus)
	if e.Code != "" {
		msg += ", code " + e.Code
	}
	if e.RequestID != "" {
		msg += ", request " + e.RequestID
	}
	return msg + ")"
}
