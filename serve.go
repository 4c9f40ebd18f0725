package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/arkantrust/charge-sync/handlers"
)

func serveCmd() *cobra.Command {
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the availability loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context(), origins)
		},
	}

	cmd.Flags().StringSliceVar(&origins, "origin", []string{"http://localhost:3000", "http://localhost:5173"}, "allowed CORS origins")

	return cmd
}

func (a *app) serve(parent context.Context, origins []string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	handlers.New(a.store, a.charges, a.cfg.Stripe.WebhookSecret, stdLogger{info: infoLog, err: errorLog}).RegisterRoutes(mux)

	// Browsers reading the API need the idempotency header allowed through.
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
	})

	srv := &http.Server{
		Addr:         a.cfg.Server.Address,
		ErrorLog:     errorLog,
		Handler:      c.Handler(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go a.charges.RunAvailabilitySchedule(ctx, a.cfg.Reconcile.Interval, a.cfg.Reconcile.Timeout)

	errc := make(chan error, 1)
	go func() {
		infoLog.Printf("listening on %s (db: %s)", srv.Addr, a.cfg.Database.Path)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	infoLog.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
