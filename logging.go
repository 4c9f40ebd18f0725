package main

import (
	"context"
	"log"

	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/money"
)

// stdLogger adapts the info and error loggers to charges.Logger.
type stdLogger struct {
	info *log.Logger
	err  *log.Logger
}

func (l stdLogger) Infof(format string, args ...interface{})  { l.info.Printf(format, args...) }
func (l stdLogger) Errorf(format string, args ...interface{}) { l.err.Printf(format, args...) }

// logReceipts records receipt requests instead of mailing them. Swap in a
// mailer-backed charges.ReceiptSender to deliver real receipts.
type logReceipts struct {
	log *log.Logger
}

func (r logReceipts) SendReceipt(_ context.Context, c *models.Charge, email string) error {
	if email == "" {
		email = "customer " + c.CustomerID
	}
	places := int32(2)
	if money.IsZeroDecimal(c.Currency) {
		places = 0
	}
	r.log.Printf("receipt for charge %s (%s %s) to %s", c.StripeID, c.Amount.StringFixed(places), c.Currency, email)
	return nil
}
