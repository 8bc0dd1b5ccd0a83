/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/tether/pkg/config"
	"github.com/ssargent/tether/pkg/metrics"
	"github.com/ssargent/tether/pkg/stream"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one worker session",
	Long: `Run one worker session against the host. The transport, record protocol and
operator come from the config file; flags override individual values.

Examples:
  tether run --operator identity
  tether run --transport unix --address /tmp/host.sock --operator starlark --kind reduce --script ./sum.star
  tether run --transport file --input ./in.buf --output ./out.buf --signal 127.0.0.1:7071 --metrics-addr :9464`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContainer(); err != nil {
			return err
		}
		cfg := configFrom(cmd)
		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := loggerFrom(cmd)

		ch, err := container.OpenChannel(cfg.Transport)
		if err != nil {
			return fmt.Errorf("failed to open %s transport: %w", cfg.Transport.Kind, err)
		}
		defer ch.Close()

		var observer stream.Observer
		if cfg.Metrics.Enabled {
			observer = container.GetMetrics()
		}
		w := container.NewWorker(cfg, ch, observer, logger)

		if cfg.Metrics.Enabled {
			server := metrics.NewServer(cfg.Metrics.Addr, container.GetMetrics(), func() any {
				return w.Stats()
			})
			if err := server.Start(); err != nil {
				return err
			}
			logger.Info("metrics server listening", "addr", server.Addr())
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					logger.Warn("metrics server shutdown failed", "error", err)
				}
			}()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := w.Run(ctx); err != nil {
			return err
		}
		stats := w.Stats()
		cmd.Printf("session %s finished: %d records in, %d records out\n",
			stats.SessionID, stats.RecordsIn, stats.RecordsOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("transport", "", "Transport: stdio, tcp, unix or file")
	runCmd.Flags().String("address", "", "Host address for tcp and unix transports")
	runCmd.Flags().String("input", "", "Input buffer file for the file transport")
	runCmd.Flags().String("output", "", "Output buffer file for the file transport")
	runCmd.Flags().String("signal", "", "UDP address the host signals on before rereading the input buffer")
	runCmd.Flags().String("protocol", "", "Record protocol: binary or legacy")
	runCmd.Flags().String("operator", "", "Registered operator name")
	runCmd.Flags().String("kind", "", "Operator kind: map, flatmap, filter, reduce, cogroup, join or cross")
	runCmd.Flags().String("script", "", "Starlark source or .star file for the starlark operator")
	runCmd.Flags().Bool("broadcast", true, "Read broadcast variables before the records")
	runCmd.Flags().String("metrics-addr", "", "Serve /metrics and /healthz on this address")
}

// applyRunFlags overrides cfg with the flags set on the command line
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	set := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	set("transport", &cfg.Transport.Kind)
	set("address", &cfg.Transport.Address)
	set("input", &cfg.Transport.InputPath)
	set("output", &cfg.Transport.OutputPath)
	set("signal", &cfg.Transport.SignalAddr)
	set("protocol", &cfg.Protocol)
	set("kind", &cfg.Operator.Kind)
	set("script", &cfg.Operator.Script)
	if flags.Changed("operator") {
		cfg.Operator.Name, _ = flags.GetString("operator")
		if !flags.Changed("kind") {
			cfg.Operator.Kind = ""
		}
	}
	if flags.Changed("broadcast") {
		cfg.Broadcast, _ = flags.GetBool("broadcast")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
		cfg.Metrics.Enabled = cfg.Metrics.Addr != ""
	}
}
