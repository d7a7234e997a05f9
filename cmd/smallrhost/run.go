package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/internal/appconfig"
	"pkt.systems/smallrhost/schema"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	var runtime string
	var seed uint64
	var noConsole bool
	cmd := &cobra.Command{
		Use:   "run [panel...]",
		Short: "Load the evaluator, run panels once and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath, runtime)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Panels.Seed = seed
			}
			if noConsole {
				cfg.Render.ShowConsole = false
			}
			boot, err := parseKindArgs(args)
			if err != nil {
				return err
			}
			if boot == nil {
				boot, err = cfg.BootKinds()
				if err != nil {
					return err
				}
			}
			if len(boot) == 0 {
				return fmt.Errorf("no panels to run")
			}
			// Only the requested kinds are opened.
			cfg.Panels.Enabled = kindStrings(boot)
			host, _, err := newHost(cmd.Context(), hostSetup{cfg: cfg, boot: boot, out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = host.Stop(stopCtx)
			}()
			if err := host.Start(cmd.Context()); err != nil {
				return err
			}
			resp, err := host.WaitBoot(cmd.Context())
			if err != nil {
				return err
			}
			failed := 0
			for _, update := range resp.Updates {
				if !update.Succeeded() {
					failed++
				}
			}
			pslog.Ctx(cmd.Context()).Info("run completed", "panels", len(resp.Updates), "failed", failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d panels failed", failed, len(resp.Updates))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&runtime, "runtime", "", "override evaluator.runtime (process or mock)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for generated data")
	cmd.Flags().BoolVar(&noConsole, "no-console", false, "hide the console transcript")
	return cmd
}

// loadConfig loads path and applies a runtime override.
func loadConfig(path, runtime string) (appconfig.Config, error) {
	cfg, err := appconfig.Load(path)
	if err != nil {
		return appconfig.Config{}, err
	}
	if runtime != "" {
		cfg.Evaluator.Runtime = runtime
		if err := appconfig.Validate(cfg); err != nil {
			return appconfig.Config{}, err
		}
	}
	return cfg, nil
}

func kindStrings(kinds []schema.PanelKind) []string {
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, string(kind))
	}
	return out
}
