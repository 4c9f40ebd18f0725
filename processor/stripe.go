package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIBase is the Stripe REST endpoint.
const DefaultAPIBase = "https://api.stripe.com"

const listPageSize = 100

// HTTPClient talks to the Stripe REST API with form-encoded requests.
type HTTPClient struct {
	httpClient *http.Client
	secretKey  string
	baseURL    string
	apiVersion string
}

// DefaultTimeout bounds every processor request when the given http.Client
// sets no timeout of its own.
const DefaultTimeout = 30 * time.Second

// NewHTTPClient constructs a Stripe client. An empty baseURL selects
// DefaultAPIBase; an empty apiVersion leaves the account default in effect.
// A nil httpClient, or one without a Timeout, gets DefaultTimeout; the
// caller's client is copied, never modified.
func NewHTTPClient(httpClient *http.Client, secretKey, baseURL, apiVersion string) *HTTPClient {
	switch {
	case httpClient == nil:
		httpClient = &http.Client{Timeout: DefaultTimeout}
	case httpClient.Timeout == 0:
		hc := *httpClient
		hc.Timeout = DefaultTimeout
		httpClient = &hc
	}
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &HTTPClient{
		httpClient: httpClient,
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
	}
}

var _ Client = (*HTTPClient)(nil)

// CreateCharge creates a charge via POST /v1/charges.
func (c *HTTPClient) CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", req.Currency)
	form.Set("capture", strconv.FormatBool(req.Capture))
	setIf(form, "source", req.Source)
	setIf(form, "customer", req.Customer)
	setIf(form, "description", req.Description)
	setIf(form, "on_behalf_of", req.OnBehalfOf)
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	if req.Destination != nil {
		form.Set("destination[account]", req.Destination.Account)
		if req.Destination.Amount != nil {
			form.Set("destination[amount]", strconv.FormatInt(*req.Destination.Amount, 10))
		}
	}
	if req.ApplicationFee != nil {
		form.Set("application_fee_amount", strconv.FormatInt(*req.ApplicationFee, 10))
	}
	addExpand(form, req.Expand)

	var ch Charge
	err := c.do(ctx, http.MethodPost, "/v1/charges", form, req.ConnectedAccount, req.IdempotencyKey, &ch)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// CaptureCharge captures an authorized charge via POST /v1/charges/{id}/capture.
func (c *HTTPClient) CaptureCharge(ctx context.Context, req CaptureChargeRequest) (*Charge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	addExpand(form, req.Expand)

	var ch Charge
	path := "/v1/charges/" + url.PathEscape(req.ChargeID) + "/capture"
	if err := c.do(ctx, http.MethodPost, path, form, req.ConnectedAccount, req.IdempotencyKey, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// RetrieveCharge fetches a charge via GET /v1/charges/{id}.
func (c *HTTPClient) RetrieveCharge(ctx context.Context, req RetrieveChargeRequest) (*Charge, error) {
	query := url.Values{}
	addExpand(query, req.Expand)

	var ch Charge
	path := "/v1/charges/" + url.PathEscape(req.ChargeID)
	if err := c.do(ctx, http.MethodGet, path, query, req.ConnectedAccount, "", &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateRefund refunds a charge via POST /v1/refunds.
func (c *HTTPClient) CreateRefund(ctx context.Context, req CreateRefundRequest) (*Refund, error) {
	form := url.Values{}
	form.Set("charge", req.ChargeID)
	if req.Amount != nil {
		form.Set("amount", strconv.FormatInt(*req.Amount, 10))
	}

	var r Refund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", form, req.ConnectedAccount, req.IdempotencyKey, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListCustomerCharges pages through GET /v1/charges?customer=... and returns
// every charge of the customer. connectedAccount must be the account the
// customer lives on, or empty for platform customers.
func (c *HTTPClient) ListCustomerCharges(ctx context.Context, customerID, connectedAccount string) ([]*Charge, error) {
	var all []*Charge
	startingAfter := ""
	for {
		query := url.Values{}
		query.Set("customer", customerID)
		query.Set("limit", strconv.Itoa(listPageSize))
		setIf(query, "starting_after", startingAfter)

		var page struct {
			Data    []*Charge `json:"data"`
			HasMore bool      `json:"has_more"`
		}
		if err := c.do(ctx, http.MethodGet, "/v1/charges", query, connectedAccount, "", &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, account, idempotencyKey string, out any) error {
	target := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.apiVersion != "" {
		httpReq.Header.Set("Stripe-Version", c.apiVersion)
	}
	if account != "" {
		httpReq.Header.Set("Stripe-Account", account)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{HTTPStatus: resp.StatusCode, RequestID: resp.Header.Get("Request-Id")}
		var envelope struct {
			Error *Error `json:"error"`
		}
		envelope.Error = apiErr
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("unexpected status %s", resp.Status)
		}
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func addExpand(v url.Values, fields []string) {
	for _, f := range fields {
		v.Add("expand[]", f)
	}
}
