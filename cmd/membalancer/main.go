// Command membalancer runs the memory-ballooning redistribution daemon
// (spec §2, §4.5-§4.6): a single-threaded tick loop that classifies domains
// into suppliers and demanders and redistributes memory between them.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hyperbalance/internal/config"
	"hyperbalance/internal/daemon"
	"hyperbalance/internal/gateway"
	"hyperbalance/internal/logx"
	"hyperbalance/internal/memory"
)

func main() {
	cmd := &cobra.Command{
		Use:           "membalancer <interval-ms>",
		Short:         "memory ballooning supplier/demander balancer",
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

	// Memory-stats period is set in whole seconds, truncating milliseconds
	// (spec §6.2).
	intervalSeconds := int(cfg.Interval / time.Second)
	if intervalSeconds < 1 {
		intervalSeconds = 1
	}

	state := &memory.PipelineState{}
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
			return memory.RunTick(tickCtx, gw, state, intervalSeconds, logger)
		},
	}

	return loop.Run(context.Background())
}
