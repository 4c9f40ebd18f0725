package charges

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/arkantrust/charge-sync/models"
)

// ErrInvalidChargeConfiguration matches every *ConfigurationError.
var ErrInvalidChargeConfiguration = errors.New("invalid charge configuration")

// ConfigurationError reports why a set of charge parameters was rejected.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid charge configuration: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidChargeConfiguration
}

func invalid(reason string) error {
	return &ConfigurationError{Reason: reason}
}

// CustomerRef identifies the customer to charge: either a customer already
// stored locally or a bare processor customer id.
type CustomerRef struct {
	customer *models.Customer
	stripeID string
}

// ExistingCustomer refers to a customer record already loaded from the store.
func ExistingCustomer(c *models.Customer) CustomerRef {
	return CustomerRef{customer: c}
}

// CustomerStripeID refers to a customer by processor id. A local placeholder
// is created for ids the store does not know yet.
func CustomerStripeID(id string) CustomerRef {
	return CustomerRef{stripeID: id}
}

// IsZero reports whether no customer was given.
func (r CustomerRef) IsZero() bool {
	return r.customer == nil && r.stripeID == ""
}

// CreateParams are the inputs of Service.Create.
//
// Connect configurations:
//   - direct charge: DirectConnect names the connected account the charge is
//     created on; ApplicationFee must be set (zero is fine).
//   - destination charge: DestinationAccount receives either the charge minus
//     ApplicationFee, or exactly DestinationAmount.
type CreateParams struct {
	Amount   decimal.Decimal
	Currency string

	Customer CustomerRef
	Source   string

	Description string
	Metadata    map[string]string

	// AuthorizeOnly creates the charge without capturing it.
	AuthorizeOnly bool

	// SendReceipt overrides Config.SendReceipts for this charge.
	SendReceipt *bool
	// Email overrides the receipt recipient.
	Email string

	DirectConnect      string
	DestinationAccount string
	DestinationAmount  *decimal.Decimal
	ApplicationFee     *decimal.Decimal
	OnBehalfOf         string

	// IdempotencyKey is passed to the processor unchanged.
	IdempotencyKey string
}

// ValidateCreateParams checks the customer/source requirement and the
// split-payment rules. It has no side effects.
//
// Amount and ApplicationFee are decimal.Decimal values by type, so the
// decimal-type checks need no runtime test.
func ValidateCreateParams(p CreateParams) error {
	if p.Customer.IsZero() && p.Source == "" {
		return invalid("must provide a customer or a source")
	}
	if p.DestinationAccount != "" && p.DirectConnect != "" {
		return invalid("you can only supply a destination account or a direct account, not both")
	}
	if p.DirectConnect != "" && p.ApplicationFee == nil {
		return invalid("an application fee must be provided for direct connect charges (0 is ok)")
	}
	if p.DirectConnect != "" && p.DestinationAmount != nil {
		return invalid("destination amount applies to destination charges, not direct connect charges")
	}
	if p.ApplicationFee != nil && p.DestinationAccount == "" && p.DirectConnect == "" {
		return invalid("an application fee requires a destination account or a direct connect account")
	}
	if p.ApplicationFee != nil && p.DestinationAccount != "" && p.DestinationAmount != nil {
		return invalid("an application fee cannot be combined with a destination amount")
	}
	if p.DestinationAccount != "" && p.OnBehalfOf != "" {
		return invalid("destination account and on behalf of are mutually exclusive")
	}
	return nil
}
