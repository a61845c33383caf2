package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"aeromedia/internal/checkout"
	"aeromedia/internal/delivery"
	"aeromedia/internal/gate"
	"aeromedia/internal/logging"
	"aeromedia/internal/metrics"
	"aeromedia/internal/notifications"
	"aeromedia/internal/objectstore"
	"aeromedia/internal/payments"
	"aeromedia/internal/server"
	"aeromedia/internal/store"
)

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another aeromedia instance is already running")
			}
			defer lock.Unlock()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open catalog store: %w", err)
			}
			defer st.Close()

			signer, err := objectstore.New(cfg)
			if err != nil {
				return fmt.Errorf("initialize storage client: %w", err)
			}

			var provider payments.Provider = payments.Noop{}
			if cfg.Payments.SecretKey != "" {
				provider, err = payments.New(
					cfg.Payments.SecretKey,
					cfg.Payments.BaseURL,
					time.Duration(cfg.Payments.TimeoutSecs)*time.Second,
				)
				if err != nil {
					return fmt.Errorf("initialize payment client: %w", err)
				}
			}

			var verifier *payments.Verifier
			if cfg.Payments.WebhookSecret != "" {
				verifier, err = payments.NewVerifier(cfg.Payments.WebhookSecret)
				if err != nil {
					return fmt.Errorf("initialize webhook verifier: %w", err)
				}
			}

			m := metrics.New()
			notifier := notifications.NewService(cfg)
			g := gate.New(st, logger)
			deliverySvc := delivery.New(st, g, signer, logger,
				delivery.WithMetrics(m),
				delivery.WithSignedTTL(time.Duration(cfg.Storage.SignedURLTTL)*time.Second))
			bridge := checkout.New(st, provider, notifier, cfg, logger, checkout.WithMetrics(m))
			fulfiller := checkout.NewFulfiller(bridge, verifier)

			srv := server.New(cfg, st, deliverySvc, bridge, fulfiller, m, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", srv.Addr())

			<-ctx.Done()
			srv.Stop()
			logger.Info("aeromedia stopped")
			return nil
		},
	}
}
