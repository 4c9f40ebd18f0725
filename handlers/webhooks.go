package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arkantrust/charge-sync/processor"
)

const maxWebhookBody = 1 << 16

// webhook handles POST /webhooks/stripe.
//
// Charge events carry the full charge and are synced from the payload.
// Dispute and refund events only reference the charge, so it is re-fetched.
// Other event types are acknowledged and ignored.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		writeError(w, http.StatusServiceUnavailable, "webhooks are not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	err = processor.VerifySignature(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret, processor.DefaultWebhookTolerance, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var ev processor.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	chargeID, err := h.handleEvent(r, &ev)
	if err != nil {
		h.log.Errorf("webhook %s (%s): %v", ev.ID, ev.Type, err)
		h.writeServiceError(w, err)
		return
	}

	resp := map[string]string{"received": ev.ID}
	if chargeID != "" {
		resp["synced"] = chargeID
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvent syncs the charge an event is about and returns its id, or ""
// when the event is not about a charge.
func (h *Handler) handleEvent(r *http.Request, ev *processor.Event) (string, error) {
	switch {
	case strings.HasPrefix(ev.Type, "charge.dispute."), strings.HasPrefix(ev.Type, "charge.refund."):
		var obj struct {
			Charge processor.Ref `json:"charge"`
		}
		if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
			return "", err
		}
		if obj.Charge.ID == "" {
			return "", errors.New("event object does not reference a charge")
		}
		c, err := h.charges.SyncCharge(r.Context(), obj.Charge.ID, ev.Account)
		if err != nil {
			return "", err
		}
		return c.StripeID, nil

	case strings.HasPrefix(ev.Type, "charge."):
		var data processor.Charge
		if err := json.Unmarshal(ev.Data.Object, &data); err != nil {
			return "", err
		}
		c, err := h.charges.SyncFromRepresentation(&data, ev.Account)
		if err != nil {
			return "", err
		}
		return c.StripeID, nil
	}
	return "", nil
}
