package main

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arkantrust/charge-sync/models"
)

func TestLogReceiptsFormatsByCurrency(t *testing.T) {
	tests := []struct {
		currency string
		amount   string
		want     string
	}{
		{"usd", "10.5", "(10.50 usd)"},
		{"jpy", "1000", "(1000 jpy)"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		r := logReceipts{log: log.New(&buf, "", 0)}
		c := &models.Charge{StripeID: "ch_1", Amount: decimal.RequireFromString(tt.amount), Currency: tt.currency}
		if err := r.SendReceipt(context.Background(), c, "a@example.com"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Fatalf("expected %q in %q", tt.want, buf.String())
		}
	}
}
