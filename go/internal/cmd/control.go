package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/musicmind/academy/go/internal/config"
	"github.com/musicmind/academy/go/internal/presentation/gateway"
	"github.com/musicmind/academy/go/internal/presentation/session"
)

func newControlCmd(cfg *config.Config) *cobra.Command {
	var gatewayURL string
	control := &cobra.Command{
		Use:   "control",
		Short: "Drive a session as its teacher",
	}
	control.PersistentFlags().StringVar(&gatewayURL, "gateway", "", "gateway base URL (overrides GATEWAY_URL)")

	client := func() *gateway.ControllerClient {
		url := cfg.GatewayURL
		if gatewayURL != "" {
			url = gatewayURL
		}
		return gateway.NewControllerClient(nil, url)
	}

	control.AddCommand(&cobra.Command{
		Use:   "show <session-code> <stage>",
		Short: "Switch the session to a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			rec, err := client().ShowStage(ctx, args[0], session.Stage(args[1]))
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), args[0], rec)
			return nil
		},
	})

	control.AddCommand(&cobra.Command{
		Use:   "start <session-code> <seconds>",
		Short: "Start a countdown on the current stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("seconds must be a whole number: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			rec, err := client().StartCountdown(ctx, args[0], seconds)
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), args[0], rec)
			return nil
		},
	})

	control.AddCommand(&cobra.Command{
		Use:   "stop <session-code>",
		Short: "Stop the running countdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			rec, err := client().StopCountdown(ctx, args[0])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), args[0], rec)
			return nil
		},
	})

	return control
}

func printRecord(w io.Writer, code string, rec session.Record) {
	countdown := "-"
	if rec.CountdownTime != nil {
		countdown = strconv.Itoa(*rec.CountdownTime)
	}
	_, _ = fmt.Fprintf(w, "session=%s stage=%s countdown=%s at=%s\n",
		code, rec.CurrentStage, countdown, time.UnixMilli(rec.Timestamp).Format(time.RFC3339))
}
