package processor

import (
	"bytes"
	"encoding/json"
)

var null = []byte("null")

// Optional holds a JSON field that may be absent, explicitly null, or set.
// Absent fields never reach UnmarshalJSON, so Present stays false for them.
type Optional[T any] struct {
	Present bool
	Null    bool
	Value   T
}

// Some returns an Optional carrying v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: v}
}

// Get returns the value and whether it is present and non-null.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Present && !o.Null
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), null) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Present || o.Null {
		return null, nil
	}
	return json.Marshal(o.Value)
}

// Ref is an expandable reference: the processor sends either a bare id string
// or the full object. Only the id is kept.
type Ref struct {
	ID       string
	Expanded bool
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	*r = Ref{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	r.Expanded = true
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return null, nil
	}
	if r.Expanded {
		return json.Marshal(struct {
			ID string `json:"id"`
		}{r.ID})
	}
	return json.Marshal(r.ID)
}

// BalanceTransaction is the settlement record behind a charge.
type BalanceTransaction struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AvailableOn int64  `json:"available_on"`
	Fee         int64  `json:"fee"`
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount"`
	Net         int64  `json:"net"`
}

// BalanceTransactionRef is a balance transaction that is either expanded into
// Object or only referenced by ID.
type BalanceTransactionRef struct {
	ID     string
	Object *BalanceTransaction
}

func (r *BalanceTransactionRef) UnmarshalJSON(data []byte) error {
	*r = BalanceTransactionRef{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var bt BalanceTransaction
	if err := json.Unmarshal(data, &bt); err != nil {
		return err
	}
	r.ID = bt.ID
	r.Object = &bt
	return nil
}

func (r BalanceTransactionRef) MarshalJSON() ([]byte, error) {
	switch {
	case r.Object != nil:
		return json.Marshal(r.Object)
	case r.ID != "":
		return json.Marshal(r.ID)
	default:
		return null, nil
	}
}

// Charge is the processor's representation of a charge. Amounts are in the
// currency's minor unit.
type Charge struct {
	ID                 string                `json:"id"`
	Object             string                `json:"object,omitempty"`
	Amount             int64                 `json:"amount"`
	AmountRefunded     Optional[int64]       `json:"amount_refunded"`
	Currency           string                `json:"currency"`
	Customer           Ref                   `json:"customer"`
	Invoice            Ref                   `json:"invoice"`
	Source             Ref                   `json:"source"`
	Description        Optional[string]      `json:"description"`
	Paid               bool                  `json:"paid"`
	Captured           bool                  `json:"captured"`
	Refunded           bool                  `json:"refunded"`
	Dispute            Ref                   `json:"dispute"`
	Created            int64                 `json:"created"`
	BalanceTransaction BalanceTransactionRef `json:"balance_transaction"`
	TransferGroup      string                `json:"transfer_group,omitempty"`
	Outcome            json.RawMessage       `json:"outcome,omitempty"`
	Metadata           map[string]string     `json:"metadata,omitempty"`
}

// Refund is the processor's representation of a refund.
type Refund struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Charge   Ref    `json:"charge"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}
