// Command charge-sync runs the charge lifecycle service.
//
// It keeps local charge records consistent with the payment processor:
//
//	charge-sync serve                    # HTTP API, webhooks and the availability loop
//	charge-sync reconcile                # one availability pass, then exit
//	charge-sync sync-charge ch_123       # re-fetch a single charge
//	charge-sync sync-customer cus_123    # re-fetch every charge of a customer
//
// Configuration comes from --config (YAML), a .env file and the environment.
// See the config package for the variable names.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/arkantrust/charge-sync/charges"
	"github.com/arkantrust/charge-sync/config"
	"github.com/arkantrust/charge-sync/processor"
	"github.com/arkantrust/charge-sync/store"
)

var Version = "dev"

var (
	infoLog  = log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog = log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "charge-sync",
		Short:         "Charge lifecycle and reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(syncChargeCmd())
	rootCmd.AddCommand(syncCustomerCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		errorLog.Println(err)
		os.Exit(1)
	}
}

// app is the wired service shared by every command.
type app struct {
	cfg     config.Config
	store   *store.Store
	charges *charges.Service
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := stdLogger{info: infoLog, err: errorLog}
	svc, err := charges.New(charges.Deps{
		Store:     s,
		Processor: processor.NewHTTPClient(nil, cfg.Stripe.SecretKey, cfg.Stripe.APIBase, cfg.Stripe.APIVersion),
		Receipts:  logReceipts{log: infoLog},
		Logger:    logger,
		Config: charges.Config{
			SendReceipts: cfg.Receipts.SendByDefault,
			ScanPageSize: cfg.Reconcile.PageSize,
		},
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: s, charges: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
