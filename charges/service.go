// Package charges keeps local charge records consistent with the payment
// processor. It validates split-payment configurations, creates, captures and
// refunds charges, and maps every processor response onto the local record
// through a single synchronization path.
package charges

import (
	"context"
	"errors"
	"fmt"

	"github.com/arkantrust/charge-sync/models"
	"github.com/arkantrust/charge-sync/processor"
	"github.com/arkantrust/charge-sync/store"
)

// Store is the persistence the charge core needs.
type Store interface {
	GetOrCreateCharge(stripeID string) (*models.Charge, bool, error)
	SaveCharge(c *models.Charge) (*models.Charge, bool, error)
	ScanCharges(ctx context.Context, pageSize int, match func(*models.Charge) bool, fn func(*models.Charge) error) error

	GetOrCreateCustomer(stripeID string) (*models.Customer, bool, error)
	FindCustomer(stripeID string) (*models.Customer, error)
	FindInvoice(stripeID string) (*models.Invoice, error)
	GetOrCreateAccount(stripeID string) (*models.Account, bool, error)
}

// ReceiptSender delivers a receipt for a charge, optionally to an email
// address other than the customer's.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, charge *models.Charge, email string) error
}

// Logger provides the minimal logging used by the charge core.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Config holds the defaults the core applies when a caller does not choose.
type Config struct {
	// SendReceipts is the default for CreateParams.SendReceipt.
	SendReceipts bool
	// DefaultCurrency is used when CreateParams.Currency is empty.
	DefaultCurrency string
	// ScanPageSize bounds how many charges the availability pass loads at once.
	ScanPageSize int
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Store     Store
	Processor processor.Client
	Receipts  ReceiptSender
	Logger    Logger
	Config    Config
}

// Validate ensures required dependencies are provided and fills defaults.
func (d *Deps) Validate() error {
	if d.Store == nil {
		return errors.New("charges deps: Store is required")
	}
	if d.Processor == nil {
		return errors.New("charges deps: Processor is required")
	}
	if d.Logger == nil {
		d.Logger = nopLogger{}
	}
	if d.Config.DefaultCurrency == "" {
		d.Config.DefaultCurrency = "usd"
	}
	if d.Config.ScanPageSize <= 0 {
		d.Config.ScanPageSize = store.DefaultPageSize
	}
	return nil
}

// Service runs charge operations against the processor and the local store.
type Service struct {
	store    Store
	client   processor.Client
	receipts ReceiptSender
	log      Logger
	cfg      Config
}

// New constructs a Service from deps.
func New(deps Deps) (*Service, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		store:    deps.Store,
		client:   deps.Processor,
		receipts: deps.Receipts,
		log:      deps.Logger,
		cfg:      deps.Config,
	}, nil
}

// findCustomer is a best-effort lookup: an unknown customer yields nil.
func (s *Service) findCustomer(stripeID string) (*models.Customer, error) {
	if stripeID == "" {
		return nil, nil
	}
	c, err := s.store.FindCustomer(stripeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup customer %s: %w", stripeID, err)
	}
	return c, nil
}

func (s *Service) findInvoice(stripeID string) (*models.Invoice, error) {
	if stripeID == "" {
		return nil, nil
	}
	inv, err := s.store.FindInvoice(stripeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup invoice %s: %w", stripeID, err)
	}
	return inv, nil
}

// ConnectedAccount returns the connected account a charge lives under: the
// customer's account when it has one, otherwise the account recorded on the
// charge itself. Empty means the platform account.
func (s *Service) ConnectedAccount(c *models.Charge) (string, error) {
	customer, err := s.findCustomer(c.CustomerID)
	if err != nil {
		return "", err
	}
	if customer != nil && customer.AccountID != "" {
		return customer.AccountID, nil
	}
	return c.AccountID, nil
}
