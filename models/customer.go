package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a processor customer known locally. AccountID is the connected
// account the customer lives under; empty for platform customers.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	StripeID  string    `json:"stripeId"`
	AccountID string    `json:"accountId,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Invoice is a processor invoice known locally.
type Invoice struct {
	ID         uuid.UUID `json:"id"`
	StripeID   string    `json:"stripeId"`
	CustomerID string    `json:"customerId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Account is a connected merchant account.
type Account struct {
	ID        uuid.UUID `json:"id"`
	StripeID  string    `json:"stripeId"`
	CreatedAt time.Time `json:"createdAt"`
}
