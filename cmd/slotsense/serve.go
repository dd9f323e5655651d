package main

import (
	"log/slog"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/slotsense/server"
	"github.com/hrygo/slotsense/server/natsrpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve resolve over HTTP, and over NATS when a NATS url is set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}

		// Trigger graceful shutdown on SIGINT or SIGTERM.
		ctx, stop := signal.NotifyContext(cmd.Context(), terminationSignals...)
		defer stop()

		a, err := newApp(ctx, instanceProfile)
		if err != nil {
			slog.Error("failed to start", "error", err)
			return err
		}
		defer a.Close()

		s := server.NewServer(instanceProfile, a.scheduler, a.exporter)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.Start(gctx)
		})
		if instanceProfile.NATSURL != "" {
			responder := natsrpc.NewResponder(natsrpc.Config{
				URL:            instanceProfile.NATSURL,
				Subject:        instanceProfile.NATSSubject,
				RequestTimeout: 3 * instanceProfile.CallTimeout,
			}, a.scheduler)
			g.Go(func() error {
				return responder.Run(gctx)
			})
		}

		printGreetings(instanceProfile)
		if err := g.Wait(); err != nil {
			slog.Error("server stopped", "error", err)
			return err
		}
		slog.Info("server stopped")
		return nil
	},
}
