package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost"
)

func newWatchCmd() *cobra.Command {
	var cfgPath string
	var runtime string
	var dir string
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun panels whenever their scripts change",
		Long: "watch seeds <dir>/<panel>.R with each panel's program and reruns a panel,\n" +
			"debounced, whenever its script is saved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := loadConfig(cfgPath, runtime)
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.Watch.Dir = dir
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			if cfg.Watch.Dir == "" {
				return errors.New("watch directory is required (--dir or watch.dir)")
			}
			opts := []smallrhost.HostOption{smallrhost.WithWatch(cfg.Watch.Dir)}
			if cfg.Metrics.Addr != "" {
				opts = append(opts, smallrhost.WithMetrics(cfg.Metrics.Addr))
			}
			host, _, err := newHost(cmd.Context(), hostSetup{cfg: cfg, out: cmd.OutOrStdout(), options: opts})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := host.Stop(stopCtx); err != nil {
					logger.Warn("host stop failed", "err", err)
				}
			}()
			if err := host.Start(ctx); err != nil {
				return err
			}
			logger.Info("watching scripts", "dir", cfg.Watch.Dir, "metrics_addr", cfg.Metrics.Addr)
			return host.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&runtime, "runtime", "", "override evaluator.runtime (process or mock)")
	cmd.Flags().StringVar(&dir, "dir", "", "script directory (overrides watch.dir)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}
