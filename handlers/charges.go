// Package handlers exposes the charge core over HTTP.
//
// Every mutating endpoint forwards the caller's Idempotency-Key header to the
// processor unchanged, so a client can retry a create, capture or refund
// whose response it never received without charging twice.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/arkantrust/charge-sync/charges"
	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/money"
	"github.com/arkantrust/charge-sync/processor"
	"github.com/arkantrust/charge-sync/store"
)

const idempotencyHeader = "Idempotency-Key"

// Handler holds the dependencies for all charge HTTP handlers.
type Handler struct {
	store         *store.Store
	charges       *charges.Service
	webhookSecret string
	log           charges.Logger
}

// New creates a new Handler. An empty webhookSecret disables the webhook
// endpoint.
func New(s *store.Store, svc *charges.Service, webhookSecret string, logger charges.Logger) *Handler {
	return &Handler{store: s, charges: svc, webhookSecret: webhookSecret, log: logger}
}

// RegisterRoutes wires all routes into mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /charges", h.list)
	mux.HandleFunc("GET /charges/{id}", h.get)
	mux.HandleFunc("POST /charges", h.create)
	mux.HandleFunc("POST /charges/{id}/capture", h.capture)
	mux.HandleFunc("POST /charges/{id}/refunds", h.refund)
	mux.HandleFunc("POST /charges/{id}/sync", h.sync)
	mux.HandleFunc("POST /webhooks/stripe", h.webhook)
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps core and processor errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *processor.Error
	switch {
	case errors.Is(err, charges.ErrInvalidChargeConfiguration), errors.Is(err, money.ErrUnsupportedCurrency):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "charge not found")
	case errors.As(err, &apiErr):
		status := apiErr.HTTPStatus
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		writeError(w, status, apiErr.Message)
	default:
		h.log.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// list handles GET /charges.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListCharges()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list charges")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// get handles GET /charges/{id}.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetCharge(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type createRequest struct {
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	Customer           string            `json:"customer"`
	Source             string            `json:"source"`
	Description        string            `json:"description"`
	Metadata           map[string]string `json:"metadata"`
	Capture            *bool             `json:"capture"`
	SendReceipt        *bool             `json:"send_receipt"`
	Email              string            `json:"email"`
	DirectConnect      string            `json:"direct_connect"`
	DestinationAccount string            `json:"destination_account"`
	DestinationAmount  *decimal.Decimal  `json:"destination_amount"`
	ApplicationFee     *decimal.Decimal  `json:"application_fee"`
	OnBehalfOf         string            `json:"on_behalf_of"`
}

// create handles POST /charges.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p := charges.CreateParams{
		Amount:             body.Amount,
		Currency:           body.Currency,
		Source:             body.Source,
		Description:        body.Description,
		Metadata:           body.Metadata,
		AuthorizeOnly:      body.Capture != nil && !*body.Capture,
		SendReceipt:        body.SendReceipt,
		Email:              body.Email,
		DirectConnect:      body.DirectConnect,
		DestinationAccount: body.DestinationAccount,
		DestinationAmount:  body.DestinationAmount,
		ApplicationFee:     body.ApplicationFee,
		OnBehalfOf:         body.OnBehalfOf,
		IdempotencyKey:     r.Header.Get(idempotencyHeader),
	}
	if body.Customer != "" {
		p.Customer = charges.CustomerStripeID(body.Customer)
	}

	c, err := h.charges.Create(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type amountRequest struct {
	Amount           *decimal.Decimal `json:"amount"`
	ConnectedAccount string           `json:"connected_account"`
}

// decodeOptional decodes an optional JSON body; an empty body is allowed.
func decodeOptional(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) loadCharge(w http.ResponseWriter, r *http.Request) (*models.Charge, bool) {
	c, err := h.store.GetCharge(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return nil, false
	}
	return c, true
}

// capture handles POST /charges/{id}/capture.
func (h *Handler) capture(w http.ResponseWriter, r *http.Request) {
	var body amountRequest
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, ok := h.loadCharge(w, r)
	if !ok {
		return
	}

	captured, err := h.charges.Capture(r.Context(), c, charges.CaptureOptions{
		Amount:         body.Amount,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, captured)
}

// refund handles POST /charges/{id}/refunds.
func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	var body amountRequest
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, ok := h.loadCharge(w, r)
	if !ok {
		return
	}

	refunded, err := h.charges.Refund(r.Context(), c, charges.RefundOptions{
		Amount:           body.Amount,
		ConnectedAccount: body.ConnectedAccount,
		IdempotencyKey:   r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refunded)
}

// sync handles POST /charges/{id}/sync. The charge does not have to be known
// locally; ?account= selects the connected account to fetch it from, and
// defaults to the account recorded for a known charge.
func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	account := r.URL.Query().Get("account")
	if account == "" {
		if c, err := h.store.GetCharge(id); err == nil {
			if account, err = h.charges.ConnectedAccount(c); err != nil {
				h.writeServiceError(w, err)
				return
			}
		}
	}

	c, err := h.charges.SyncCharge(r.Context(), id, account)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
