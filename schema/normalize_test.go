package schema

import (
	"errors"
	"testing"
)

func TestNormalizePanelKind(t *testing.T) {
	kind, err := NormalizePanelKind("  Regression ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if kind != PanelRegression {
		t.Fatalf("expected regression, got %q", kind)
	}
	if _, err := NormalizePanelKind("chart"); !errors.Is(err, ErrInvalidPanel) {
		t.Fatalf("expected ErrInvalidPanel, got %v", err)
	}
}

func TestValidatePanelID(t *testing.T) {
	if err := ValidatePanelID("ts-2"); err != nil {
		t.Fatalf("expected valid id: %v", err)
	}
	for _, id := range []PanelID{"", "Ts", "a b", "x/y"} {
		if err := ValidatePanelID(id); !errors.Is(err, ErrInvalidPanel) {
			t.Fatalf("expected %q to be rejected, got %v", id, err)
		}
	}
}

func TestNormalizeParameterRoundsIntegers(t *testing.T) {
	spec := ParameterSpec{Name: "window", Min: 2, Max: 50, Integer: true}
	value, err := NormalizeParameter(spec, 4.6)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if value != 5 {
		t.Fatalf("expected 5, got %v", value)
	}
	if _, err := NormalizeParameter(spec, 51); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestTriggerReasonRegenerates(t *testing.T) {
	cases := map[TriggerReason]bool{
		TriggerRun:        false,
		TriggerEdit:       false,
		TriggerParameter:  true,
		TriggerBoot:       true,
		TriggerRegenerate: true,
	}
	for reason, want := range cases {
		if got := reason.Regenerates(); got != want {
			t.Fatalf("%s: expected %v, got %v", reason, want, got)
		}
	}
}

func TestNormalizeServiceConfigDefaults(t *testing.T) {
	cfg, err := NormalizeServiceConfig(ServiceConfig{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.QuietPeriod != DefaultQuietPeriod {
		t.Fatalf("expected default quiet period, got %v", cfg.QuietPeriod)
	}
	if cfg.HistoryMax != DefaultHistoryMax || cfg.ConsoleMaxLines != DefaultConsoleMaxLines {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if _, err := NormalizeServiceConfig(ServiceConfig{QuietPeriod: -1}); err == nil {
		t.Fatalf("expected negative quiet period to be rejected")
	}
}
