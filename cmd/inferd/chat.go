package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"inferd/internal/backend"
	"inferd/internal/service"
	"inferd/pkg/types"
)

func newChatCmd(o *rootOptions) *cobra.Command {
	var (
		system      string
		temperature float64
		stats       bool
	)
	cmd := &cobra.Command{
		Use:   "chat <message> [reply message]...",
		Short: "Run one turn and stream the reply to stdout",
		Long: "Run one turn and stream the reply to stdout. Several arguments form a\n" +
			"conversation alternating user and assistant, ending with the user.\n" +
			"Ctrl+C interrupts the reply and keeps what was streamed.",
		Example: "  inferd chat -m mistral-7b-instruct-v0.2.Q4_K_M.gguf \"Write a haiku about the ocean.\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			rt, err := service.New(cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-sigCtx.Done()
				rt.Interrupt()
			}()

			req := types.ChatRequest{Messages: args, SystemPrompt: system}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}
			out := cmd.OutOrStdout()
			sum, err := rt.Chat(ctx, req, func(s string) { fmt.Fprint(out, s) })
			fmt.Fprintln(out)
			if err != nil && !errors.Is(err, backend.ErrInterrupted) {
				return err
			}
			if stats {
				fmt.Fprintf(cmd.ErrOrStderr(), "turn %s: %d fragments, %d tokens, first fragment after %s, %.1f tok/s\n",
					sum.TurnID, sum.Fragments, sum.Tokens, sum.ResponseStart, sum.TokensPerSecond)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&system, "system", "", "System prompt for this turn")
	f.Float64Var(&temperature, "temperature", 0, "Sampling temperature for this turn")
	f.BoolVar(&stats, "stats", false, "Print turn statistics to stderr")
	return cmd
}
