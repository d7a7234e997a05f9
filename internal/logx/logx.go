package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/schema"
)

type contextKey int

const (
	panelKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithPanel annotates the logger with the panel id unless the context
// logger already carries it.
func WithPanel(ctx context.Context, panelID schema.PanelID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if panelID == "" {
		return log
	}
	if current, ok := ctx.Value(panelKey).(schema.PanelID); ok && current == panelID {
		return log
	}
	return log.With("panel", string(panelID))
}

// WithRun annotates the logger with run identifiers when available.
func WithRun(log pslog.Logger, token schema.RunToken, runID string) pslog.Logger {
	if token != 0 {
		log = log.With("token", uint64(token))
	}
	if runID != "" {
		log = log.With("run", runID)
	}
	return log
}

// ContextWithPanel stores the panel marker on the context for log de-duplication.
func ContextWithPanel(ctx context.Context, panelID schema.PanelID) context.Context {
	if ctx == nil || panelID == "" {
		return ctx
	}
	return context.WithValue(ctx, panelKey, panelID)
}

// ContextWithPanelLogger attaches the logger and panel marker to the context.
func ContextWithPanelLogger(ctx context.Context, log pslog.Logger, panelID schema.PanelID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithPanel(ctx, panelID)
}

// CopyContextFields copies the panel marker from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if panel, ok := src.Value(panelKey).(schema.PanelID); ok && panel != "" {
		dst = ContextWithPanel(dst, panel)
	}
	return dst
}
