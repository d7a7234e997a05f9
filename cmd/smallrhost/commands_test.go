package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"pkt.systems/smallrhost/internal/appconfig"
	"pkt.systems/smallrhost/internal/evalproc"
	"pkt.systems/smallrhost/schema"
)

func TestEvalMockCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader("x <- c(1, 2, 3)\ny <- c(2, 4, 6)\n"))
	root.SetOut(&out)
	root.SetArgs([]string{"eval-mock"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("eval-mock: %v", err)
	}
	if !strings.Contains(out.String(), `"json"`) || !strings.HasSuffix(out.String(), "\n") {
		t.Fatalf("unexpected response %q", out.String())
	}
}

func TestPanelsCommandYAML(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"panels", "--yaml"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("panels: %v", err)
	}
	var infos []panelInfo
	if err := yaml.Unmarshal(out.Bytes(), &infos); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(infos) != len(schema.AllPanelKinds) {
		t.Fatalf("expected %d panels, got %d", len(schema.AllPanelKinds), len(infos))
	}
	for _, info := range infos {
		if info.Kind == schema.PanelTimeSeries {
			if !info.Generates || len(info.Parameters) != 2 {
				t.Fatalf("unexpected timeseries info %+v", info)
			}
			return
		}
	}
	t.Fatalf("timeseries missing from %+v", infos)
}

func TestPanelsCommandTable(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"panels"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("panels: %v", err)
	}
	if !strings.Contains(out.String(), "timeseries  points=120 window=10") {
		t.Fatalf("unexpected table:\n%s", out.String())
	}
}

func TestConfigInitWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	root := newRootCmd()
	root.SetArgs([]string{"config", "init", "--config", path})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := appconfig.Load(path); err != nil {
		t.Fatalf("load written config: %v", err)
	}
	root = newRootCmd()
	root.SetArgs([]string{"config", "init", "--config", path})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected existing config to be kept without --force")
	}
}

func TestRunCommandWithMockRuntime(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--runtime", "mock", "--seed", "7", "regression", "timeseries"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	text := out.String()
	for _, want := range []string{"[regression] run", "[timeseries] run", "(boot) ok"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestRunCommandRejectsUnknownPanel(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--runtime", "mock", "histogram"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected unknown panel error")
	}
}

func TestSelectLoaderFallsBackToSelf(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	loader, err := selectLoader(context.Background(), cfg)
	if err != nil {
		t.Fatalf("selectLoader: %v", err)
	}
	if _, ok := loader.(*evalproc.Loader); !ok {
		t.Fatalf("expected process loader, got %T", loader)
	}
}

func TestSelectLoaderMock(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	cfg.Evaluator.Runtime = appconfig.RuntimeMock
	loader, err := selectLoader(context.Background(), cfg)
	if err != nil {
		t.Fatalf("selectLoader: %v", err)
	}
	evaluator, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	resp, err := evaluator.Eval(context.Background(), "a <- 1\n")
	if err != nil || resp.Error != "" {
		t.Fatalf("unexpected eval result %+v err=%v", resp, err)
	}
	cfg.Evaluator.Runtime = "docker"
	if _, err := selectLoader(context.Background(), cfg); err == nil {
		t.Fatalf("expected unsupported runtime error")
	}
}

func TestDefaultActivePanel(t *testing.T) {
	if got := defaultActivePanel([]string{"stats"}, []string{"playground", "stats"}); got != "stats" {
		t.Fatalf("expected boot panel, got %q", got)
	}
	if got := defaultActivePanel(nil, []string{"playground"}); got != "playground" {
		t.Fatalf("expected first enabled panel, got %q", got)
	}
	if got := defaultActivePanel(nil, nil); got != "" {
		t.Fatalf("expected no panel, got %q", got)
	}
}
