// Package store provides a BoltDB-backed persistence layer for charges and the
// records they weakly reference.
//
// Every write is idempotent:
//   - GetOrCreate*: looks up the key inside the same read-write transaction
//     that would insert it, so two callers racing on a new key converge to one
//     record.
//   - SaveCharge: compares the incoming record with the stored one and skips
//     the write when nothing changed, so repeated syncs of the same processor
//     data leave UpdatedAt untouched.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/arkantrust/charge-sync/models"
)

const (
	chargesBucket   = "charges"
	customersBucket = "customers"
	invoicesBucket  = "invoices"
	accountsBucket  = "accounts"
)

// DefaultPageSize is the number of charges loaded per read transaction by
// ScanCharges when the caller does not pick one.
const DefaultPageSize = 100

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps a BoltDB database. Records are JSON encoded and keyed by their
// processor id.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// New opens (or creates) a BoltDB database at the given path and ensures all
// buckets exist.
func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{chargesBucket, customersBucket, invoicesBucket, accountsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func get(tx *bolt.Tx, bucket, key string, v any) error {
	data := tx.Bucket([]byte(bucket)).Get([]byte(key))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func put(tx *bolt.Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

// getOrCreate loads key from bucket into existing, or stores fresh() under key
// when it is absent. Returns true when a record was created.
func getOrCreate[T any](s *Store, bucket, key string, fresh func() *T) (*T, bool, error) {
	var result *T
	created := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		var existing T
		err := get(tx, bucket, key, &existing)
		if err == nil {
			result = &existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		result = fresh()
		created = true
		return put(tx, bucket, key, result)
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// GetOrCreateCharge returns the charge stored under stripeID, creating an
// empty record with a new local id if none exists yet.
func (s *Store) GetOrCreateCharge(stripeID string) (*models.Charge, bool, error) {
	if stripeID == "" {
		return nil, false, errors.New("charge stripe id is required")
	}
	return getOrCreate(s, chargesBucket, stripeID, func() *models.Charge {
		now := s.now()
		return &models.Charge{ID: uuid.New(), StripeID: stripeID, CreatedAt: now, UpdatedAt: now}
	})
}

// GetCharge retrieves a single charge by processor id.
func (s *Store) GetCharge(stripeID string) (*models.Charge, error) {
	var c models.Charge
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, chargesBucket, stripeID, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCharge persists c over the stored record with the same StripeID.
//
// When every field except the bookkeeping timestamps matches the stored
// record the write is skipped and the stored record is returned. Returns
// ErrNotFound if the charge was never created.
func (s *Store) SaveCharge(c *models.Charge) (*models.Charge, bool, error) {
	var result models.Charge
	written := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		var existing models.Charge
		if err := get(tx, chargesBucket, c.StripeID, &existing); err != nil {
			return err
		}

		incoming := *c
		incoming.ID = existing.ID
		incoming.CreatedAt = existing.CreatedAt
		incoming.UpdatedAt = existing.UpdatedAt

		same, err := sameJSON(&existing, &incoming)
		if err != nil {
			return err
		}
		if same {
			result = existing
			return nil
		}

		incoming.UpdatedAt = s.now()
		written = true
		result = incoming
		return put(tx, chargesBucket, c.StripeID, &incoming)
	})
	if err != nil {
		return nil, false, err
	}
	return &result, written, nil
}

func sameJSON(a, b any) (bool, error) {
	x, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	y, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(x, y), nil
}

// ListCharges returns all charges stored in the database.
func (s *Store) ListCharges() ([]models.Charge, error) {
	var items []models.Charge

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(chargesBucket)).ForEach(func(k, v []byte) error {
			var c models.Charge
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			items = append(items, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = []models.Charge{}
	}
	return items, nil
}

// ScanCharges calls fn for every stored charge accepted by match.
//
// Charges are read in pages of pageSize matches, each page in its own short
// read transaction, and fn runs outside any transaction. fn may therefore
// write to the store. Memory use is bounded by the page size. Scanning stops
// at the first error returned by fn or when ctx is done.
func (s *Store) ScanCharges(ctx context.Context, pageSize int, match func(*models.Charge) bool, fn func(*models.Charge) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var after []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page := make([]models.Charge, 0, pageSize)
		done := true
		err := s.db.View(func(tx *bolt.Tx) error {
			cur := tx.Bucket([]byte(chargesBucket)).Cursor()

			var k, v []byte
			if after == nil {
				k, v = cur.First()
			} else {
				k, v = cur.Seek(after)
				if k != nil && bytes.Equal(k, after) {
					k, v = cur.Next()
				}
			}

			for ; k != nil; k, v = cur.Next() {
				if len(page) == pageSize {
					done = false
					return nil
				}
				after = append(after[:0], k...)

				var c models.Charge
				if err := json.Unmarshal(v, &c); err != nil {
					return err
				}
				if match == nil || match(&c) {
					page = append(page, c)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		for i := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(&page[i]); err != nil {
				return err
			}
		}

		if done {
			return nil
		}
	}
}

// GetOrCreateCustomer returns the customer stored under stripeID, creating a
// bare placeholder if it is unknown.
func (s *Store) GetOrCreateCustomer(stripeID string) (*models.Customer, bool, error) {
	if stripeID == "" {
		return nil, false, errors.New("customer stripe id is required")
	}
	return getOrCreate(s, customersBucket, stripeID, func() *models.Customer {
		return &models.Customer{ID: uuid.New(), StripeID: stripeID, CreatedAt: s.now()}
	})
}

// FindCustomer looks a customer up by processor id.
func (s *Store) FindCustomer(stripeID string) (*models.Customer, error) {
	var c models.Customer
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, customersBucket, stripeID, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCustomer creates or replaces a customer record.
func (s *Store) SaveCustomer(c *models.Customer) error {
	if c.StripeID == "" {
		return errors.New("customer stripe id is required")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, customersBucket, c.StripeID, c)
	})
}

// FindInvoice looks an invoice up by processor id.
func (s *Store) FindInvoice(stripeID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, invoicesBucket, stripeID, &inv)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// SaveInvoice creates or replaces an invoice record.
func (s *Store) SaveInvoice(inv *models.Invoice) error {
	if inv.StripeID == "" {
		return errors.New("invoice stripe id is required")
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, invoicesBucket, inv.StripeID, inv)
	})
}

// GetOrCreateAccount returns the connected account stored under stripeID,
// creating a placeholder if it is unknown.
func (s *Store) GetOrCreateAccount(stripeID string) (*models.Account, bool, error) {
	if stripeID == "" {
		return nil, false, errors.New("account stripe id is required")
	}
	return getOrCreate(s, accountsBucket, stripeID, func() *models.Account {
		return &models.Account{ID: uuid.New(), StripeID: stripeID, CreatedAt: s.now()}
	})
}

// FindAccount looks a connected account up by processor id.
func (s *Store) FindAccount(stripeID string) (*models.Account, error) {
	var a models.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, accountsBucket, stripeID, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}
