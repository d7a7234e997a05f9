package main

import (
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/smallrhost/internal/evalmock"
)

func newEvalMockCmd() *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:           "eval-mock",
		Short:         "Evaluate a program from stdin with the mock evaluator",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return evalmock.ServeStdio(cmd.Context(), evalmock.Evaluator{Latency: delay}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay every response")
	return cmd
}
