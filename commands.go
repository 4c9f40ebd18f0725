package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one availability pass over unsettled charges",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := withTimeout(cmd.Context(), a)
			defer cancel()

			report, err := a.charges.UpdateAvailability(ctx)
			fmt.Printf("candidates: %d  synced: %d  failed: %d\n", report.Candidates, report.Synced, report.Failed)
			return err
		},
	}
}

func syncChargeCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "sync-charge [charge-id]",
		Short: "Fetch a charge from the processor and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.charges.SyncCharge(cmd.Context(), args[0], account)
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "connected account the charge lives on")

	return cmd
}

func syncCustomerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-customer [customer-id]",
		Short: "Fetch every charge of a customer and store them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cust, _, err := a.store.GetOrCreateCustomer(args[0])
			if err != nil {
				return err
			}
			return a.charges.SyncChargesForCustomer(cmd.Context(), cust)
		},
	}
}

func withTimeout(parent context.Context, a *app) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if a.cfg.Reconcile.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, a.cfg.Reconcile.Timeout)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
