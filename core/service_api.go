package core

import (
	"context"

	"pkt.systems/smallrhost/schema"
)

// Service is the transport-agnostic API for managing panels and their
// recompute pipelines.
type Service interface {
	CreatePanel(ctx context.Context, req schema.CreatePanelRequest) (schema.CreatePanelResponse, error)
	ClosePanel(ctx context.Context, req schema.ClosePanelRequest) (schema.ClosePanelResponse, error)
	ListPanels(ctx context.Context, req schema.ListPanelsRequest) (schema.ListPanelsResponse, error)
	GetPanel(ctx context.Context, req schema.GetPanelRequest) (schema.GetPanelResponse, error)
	SetSource(ctx context.Context, req schema.SetSourceRequest) (schema.SetSourceResponse, error)
	ResetSource(ctx context.Context, req schema.ResetSourceRequest) (schema.ResetSourceResponse, error)
	SubmitSource(ctx context.Context, req schema.SubmitSourceRequest) (schema.SubmitSourceResponse, error)
	SetParameter(ctx context.Context, req schema.SetParameterRequest) (schema.SetParameterResponse, error)
	Run(ctx context.Context, req schema.RunRequest) (schema.RunResponse, error)
	Regenerate(ctx context.Context, req schema.RegenerateRequest) (schema.RunResponse, error)
	Boot(ctx context.Context, req schema.BootRequest) (schema.BootResponse, error)
	GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error)
	GetConsole(ctx context.Context, req schema.GetConsoleRequest) (schema.GetConsoleResponse, error)
	// Close cancels pending triggers and rejects further operations.
	Close() error
}
