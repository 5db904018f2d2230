package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/musicmind/academy/go/internal/config"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var port string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the session gateway and controller service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *cfg)
		},
	}
	serve.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return serve
}

func runServer(ctx context.Context, cfg config.Config) error {
	services, err := setupServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close services")
		}
	}()

	server := setupServer(cfg, services)

	serviceCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		if err := services.Gateway.Start(serviceCtx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("store", string(cfg.Store)).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			cancel()
			<-gatewayDone
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Closes websocket connections and releases store subscriptions.
	cancel()
	<-gatewayDone

	log.Info().Msg("presentation gateway shutdown complete")
	return nil
}
