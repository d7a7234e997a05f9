package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost"
	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/internal/appconfig"
	"pkt.systems/smallrhost/internal/evalmock"
	"pkt.systems/smallrhost/internal/evalproc"
	"pkt.systems/smallrhost/internal/format"
	"pkt.systems/smallrhost/schema"
)

// selectLoader builds the evaluator loader for cfg. The default binary
// name falls back to this executable's eval-mock command when it is not on
// PATH.
func selectLoader(ctx context.Context, cfg appconfig.Config) (core.Loader, error) {
	switch cfg.Evaluator.Runtime {
	case appconfig.RuntimeMock:
		return core.LoaderFunc(func(context.Context) (core.Evaluator, error) {
			return evalmock.Evaluator{}, nil
		}), nil
	case appconfig.RuntimeProcess:
		pcfg := cfg.ProcessConfig()
		if pcfg.BinaryPath == evalproc.DefaultBinary {
			if _, err := exec.LookPath(pcfg.BinaryPath); err != nil {
				self, selfErr := os.Executable()
				if selfErr != nil {
					return nil, fmt.Errorf("evaluator %s not found and executable path unknown: %w", pcfg.BinaryPath, errors.Join(err, selfErr))
				}
				pslog.Ctx(ctx).Info("evaluator binary fallback", "binary", pcfg.BinaryPath, "path", self)
				pcfg.BinaryPath = self
				pcfg.ExtraArgs = append([]string{"eval-mock"}, pcfg.ExtraArgs...)
			}
		}
		return evalproc.NewLoader(pcfg), nil
	default:
		return nil, fmt.Errorf("unsupported evaluator.runtime %q", cfg.Evaluator.Runtime)
	}
}

type hostSetup struct {
	cfg      appconfig.Config
	boot     []schema.PanelKind
	out      io.Writer
	options  []smallrhost.HostOption
}

// newHost assembles a host writing rendered updates to setup.out.
func newHost(ctx context.Context, setup hostSetup) (*smallrhost.Host, *format.ConsoleRenderer, error) {
	cfg := setup.cfg
	enabled, err := cfg.EnabledKinds()
	if err != nil {
		return nil, nil, err
	}
	boot := setup.boot
	if boot == nil {
		boot, err = cfg.BootKinds()
		if err != nil {
			return nil, nil, err
		}
	}
	loader, err := selectLoader(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	renderer := format.NewConsoleRenderer(setup.out, format.ColorMode(cfg.Render.Color))
	renderer.SetShowConsole(cfg.Render.ShowConsole)
	host, err := smallrhost.New(smallrhost.HostConfig{
		Service:     cfg.ServiceConfig(),
		Enabled:     enabled,
		Boot:        boot,
		LoadTimeout: cfg.LoadTimeout(),
	}, smallrhost.HostDeps{
		Loader:    loader,
		Renderers: []core.Renderer{renderer},
		Logger:    pslog.Ctx(ctx),
	}, setup.options...)
	if err != nil {
		return nil, nil, err
	}
	return host, renderer, nil
}

func parseKindArgs(args []string) ([]schema.PanelKind, error) {
	if len(args) == 0 {
		return nil, nil
	}
	kinds := make([]schema.PanelKind, 0, len(args))
	for _, arg := range args {
		kind, err := schema.NormalizePanelKind(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, arg)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
