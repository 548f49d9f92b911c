// Command cpubalancer runs the vCPU-to-pCPU repinning daemon (spec §2, §4.2-
// §4.4): a single-threaded tick loop that snapshots vCPU usage, computes the
// cross-tick delta, and repins under a dispersion-gated greedy scheduler.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hyperbalance/internal/config"
	"hyperbalance/internal/cpu"
	"hyperbalance/internal/daemon"
	"hyperbalance/internal/gateway"
	"hyperbalance/internal/logx"
)

func main() {
	cmd := &cobra.Command{
		Use:           "cpubalancer <interval-ms>",
		Short:         "vCPU-to-pCPU repinning balancer",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			_, err := config.ParseInterval(args[0])
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(intervalArg string) error {
	cfg, err := config.Load(intervalArg)
	if err != nil {
		return err
	}

	logger := logx.NewStd()
	gw := gateway.NewLibvirtGateway(cfg.LibvirtURI, logger)
	defer gw.Close()

	state := &cpu.PipelineState{}
	loop := &daemon.Loop{
		Interval:    cfg.Interval,
		MaxFailures: cfg.MaxConsecutiveFailures,
		Logger:      logger,
		Open: func(ctx context.Context) error {
			if err := gw.Open(ctx); err != nil {
				return fmt.Errorf("connect to %s: %w", cfg.LibvirtURI, err)
			}
			return nil
		},
		Tick: func(tickCtx context.Context, tickNum int) error {
			return cpu.RunTick(tickCtx, gw, state, logger)
		},
	}

	return loop.Run(context.Background())
}
