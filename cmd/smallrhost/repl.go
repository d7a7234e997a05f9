package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/smallrhost/internal/command"
	"pkt.systems/smallrhost/internal/logx"
	"pkt.systems/smallrhost/internal/sessionprefs"
	"pkt.systems/smallrhost/schema"
)

const (
	replPrompt     = "> "
	replContinue   = "+ "
	replMaxLineLen = 1 << 20
)

func newREPLCmd() *cobra.Command {
	var cfgPath string
	var runtime string
	var panel string
	var disableAuditTrails bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Edit and run panel programs interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(cfgPath, runtime)
			if err != nil {
				return err
			}
			host, renderer, err := newHost(ctx, hostSetup{cfg: cfg, out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = host.Stop(stopCtx)
			}()

			prefs := sessionprefs.New()
			prefs.ShowConsole = cfg.Render.ShowConsole
			prefs.ActivePanel = schema.PanelID(panel)
			if prefs.ActivePanel == "" {
				prefs.ActivePanel = defaultActivePanel(cfg.Panels.Boot, cfg.Panels.Enabled)
			}
			ctx = sessionprefs.WithContext(ctx, prefs)

			handler := command.NewHandler(host.Service(), renderer, command.HandlerConfig{
				Panels:              host.Panels(),
				EvaluatorState:      host.EvaluatorState,
				OnShowConsole:       renderer.SetShowConsole,
				DisableAuditLogging: disableAuditTrails,
			})
			if err := host.Start(ctx); err != nil {
				return err
			}
			renderer.Println("evaluator loading; type /help for commands")
			go func() {
				if _, err := host.WaitBoot(ctx); err != nil {
					renderer.Println("status: " + err.Error())
					return
				}
				renderer.Println("status: evaluator " + host.EvaluatorState())
			}()
			return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), handler, renderer)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&runtime, "runtime", "", "override evaluator.runtime (process or mock)")
	cmd.Flags().StringVar(&panel, "panel", "", "initially active panel")
	cmd.Flags().BoolVar(&disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for commands")
	return cmd
}

func defaultActivePanel(boot, enabled []string) schema.PanelID {
	if len(boot) > 0 {
		return schema.PanelID(boot[0])
	}
	if len(enabled) > 0 {
		return schema.PanelID(enabled[0])
	}
	return ""
}

// runREPL reads lines from in until EOF or /quit. Slash commands go to
// handler; anything else accumulates until brackets balance and is then
// submitted to the active panel.
func runREPL(ctx context.Context, in io.Reader, prompt io.Writer, handler *command.Handler, out command.Output) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), replMaxLineLen)
	var buf command.Buffer
	log := logx.Ctx(ctx)
	for {
		if buf.Pending() {
			_, _ = io.WriteString(prompt, replContinue)
		} else {
			_, _ = io.WriteString(prompt, replPrompt)
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if !buf.Pending() {
			trimmed := strings.TrimSpace(line)
			if trimmed == "/quit" || trimmed == "/exit" {
				return nil
			}
			handled, err := handler.Handle(ctx, line)
			if err != nil {
				out.Println("error: " + err.Error())
				continue
			}
			if handled {
				continue
			}
		}
		src, complete := buf.Add(line)
		if !complete {
			continue
		}
		if _, err := handler.Submit(ctx, src); err != nil {
			log.Debug("repl submit failed", "err", err)
			out.Println("error: " + err.Error())
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
