package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/musicmind/academy/go/internal/config"
	"github.com/musicmind/academy/go/internal/presentation/gateway"
	"github.com/musicmind/academy/go/internal/presentation/render"
	"github.com/musicmind/academy/go/internal/presentation/session"
	"github.com/musicmind/academy/go/internal/presentation/tui"
)

func newWatchCmd(cfg *config.Config) *cobra.Command {
	var gatewayURL string
	var direct bool

	watch := &cobra.Command{
		Use:   "watch <session-code>",
		Short: "Show a session's presentation screen in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.TrimSpace(args[0])
			if code == "" {
				return fmt.Errorf("session code is required")
			}
			if gatewayURL != "" {
				cfg.GatewayURL = gatewayURL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, *cfg, code, direct)
		},
	}
	watch.Flags().StringVar(&gatewayURL, "gateway", "", "gateway base URL (overrides GATEWAY_URL)")
	watch.Flags().BoolVar(&direct, "direct", false, "subscribe to the configured store instead of a gateway")
	return watch
}

func runWatch(ctx context.Context, cfg config.Config, code string, direct bool) error {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	renderer := render.NewRenderer(catalog, thresholds(cfg))

	var sub session.Subscriber
	if direct {
		services := &Services{}
		defer func() { _ = services.Close() }()

		store, err := setupStore(ctx, cfg, services)
		if err != nil {
			return err
		}
		sub = store
	} else {
		sub = gateway.NewClient(gateway.DefaultClientConfig(cfg.GatewayURL))
	}

	p := tui.NewProgram(ctx, renderer)
	reader, err := session.Open(ctx, sub, code, session.WithObserver(tui.Forward(p)))
	if err != nil {
		return err
	}
	defer reader.Close()

	return tui.Run(p)
}
