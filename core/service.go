package core

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"
	"pkt.systems/smallrhost/internal/logx"
	"pkt.systems/smallrhost/schema"
)

// service implements the core service behavior.
type service struct {
	cfg       schema.ServiceConfig
	panels    PanelCatalog
	invoker   Invoker
	renderer  Renderer
	observer  Observer
	scheduler *Scheduler
	logger    pslog.Logger
	seed      uint64

	mu     sync.Mutex
	states map[schema.PanelID]*panelState
	order  []schema.PanelID
	closed bool
}

// panelState holds the per-panel collaborators. history is guarded by the
// service lock; pipeline and console carry their own.
type panelState struct {
	pipeline *Pipeline
	history  *historyBuffer
	console  *console
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Invoker == nil {
		return nil, errors.New("service requires an invoker")
	}
	if deps.Panels == nil {
		return nil, errors.New("service requires a panel catalog")
	}
	if deps.Renderer == nil {
		deps.Renderer = nopRenderer{}
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &service{
		cfg:       cfg,
		panels:    deps.Panels,
		invoker:   deps.Invoker,
		renderer:  deps.Renderer,
		observer:  deps.Observer,
		scheduler: NewScheduler(deps.Clock, deps.Observer),
		logger:    logger,
		seed:      seed,
		states:    make(map[schema.PanelID]*panelState),
	}, nil
}

func (s *service) CreatePanel(ctx context.Context, req schema.CreatePanelRequest) (schema.CreatePanelResponse, error) {
	if ctx == nil {
		return schema.CreatePanelResponse{}, errors.New("missing context")
	}
	kind, err := schema.NormalizePanelKind(string(req.Kind))
	if err != nil {
		return schema.CreatePanelResponse{}, err
	}
	spec, ok := s.panels.Lookup(kind)
	if !ok {
		return schema.CreatePanelResponse{}, fmt.Errorf("%w: %s is not enabled", schema.ErrInvalidPanel, kind)
	}
	panelID := req.PanelID
	if strings.TrimSpace(string(panelID)) == "" {
		panelID = schema.PanelID(kind)
	}
	if err := schema.ValidatePanelID(panelID); err != nil {
		return schema.CreatePanelResponse{}, err
	}
	log := logx.WithPanel(ctx, panelID).With("kind", kind)

	state := &panelState{
		history: newHistory(s.cfg.HistoryMax),
		console: newConsole(s.cfg.ConsoleMaxLines),
	}
	pipeline, err := NewPipeline(PipelineConfig{
		ID:         panelID,
		Spec:       spec,
		Invoker:    s.invoker,
		Renderer:   s.panelRenderer(state.console),
		Observer:   s.observer,
		Rand:       rand.New(rand.NewPCG(s.seed, panelSeed(panelID))),
		Source:     req.Source,
		Parameters: req.Parameters,
	})
	if err != nil {
		log.Warn("service panel create failed", "err", err)
		return schema.CreatePanelResponse{}, err
	}
	state.pipeline = pipeline

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.CreatePanelResponse{}, schema.ErrServiceClosed
	}
	if _, exists := s.states[panelID]; exists {
		s.mu.Unlock()
		log.Warn("service panel create failed", "err", schema.ErrPanelExists)
		return schema.CreatePanelResponse{}, schema.ErrPanelExists
	}
	s.states[panelID] = state
	s.order = append(s.order, panelID)
	s.mu.Unlock()

	log.Info("service panel created")
	return schema.CreatePanelResponse{Panel: s.snapshot(state)}, nil
}

func (s *service) ClosePanel(ctx context.Context, req schema.ClosePanelRequest) (schema.ClosePanelResponse, error) {
	log := logx.WithPanel(ctx, req.PanelID)
	s.mu.Lock()
	state := s.states[req.PanelID]
	if state == nil {
		s.mu.Unlock()
		log.Warn("service panel close failed", "err", schema.ErrPanelNotFound)
		return schema.ClosePanelResponse{}, schema.ErrPanelNotFound
	}
	delete(s.states, req.PanelID)
	s.order = removePanelID(s.order, req.PanelID)
	s.mu.Unlock()

	s.scheduler.Cancel(req.PanelID)
	snapshot := state.pipeline.Snapshot()
	state.pipeline.Close()
	log.Info("service panel closed")
	return schema.ClosePanelResponse{Panel: snapshot}, nil
}

func (s *service) ListPanels(ctx context.Context, req schema.ListPanelsRequest) (schema.ListPanelsResponse, error) {
	_ = req
	s.mu.Lock()
	states := make([]*panelState, 0, len(s.order))
	for _, id := range s.order {
		if state := s.states[id]; state != nil {
			states = append(states, state)
		}
	}
	s.mu.Unlock()

	panels := make([]schema.PanelSnapshot, 0, len(states))
	for _, state := range states {
		panels = append(panels, s.snapshot(state))
	}
	pslog.Ctx(ctx).Trace("service panels listed", "count", len(panels))
	return schema.ListPanelsResponse{Panels: panels}, nil
}

func (s *service) GetPanel(ctx context.Context, req schema.GetPanelRequest) (schema.GetPanelResponse, error) {
	_ = ctx
	state, err := s.lookup(req.PanelID)
	if err != nil {
		return schema.GetPanelResponse{}, err
	}
	return schema.GetPanelResponse{Panel: s.snapshot(state)}, nil
}

func (s *service) SetSource(ctx context.Context, req schema.SetSourceRequest) (schema.SetSourceResponse, error) {
	state, err := s.lookupOpen(req.PanelID)
	if err != nil {
		return schema.SetSourceResponse{}, err
	}
	state.pipeline.SetSource(req.Source)
	logx.WithPanel(ctx, req.PanelID).Debug("service source set", "source_len", len(req.Source))
	return schema.SetSourceResponse{Panel: s.snapshot(state)}, nil
}

func (s *service) ResetSource(ctx context.Context, req schema.ResetSourceRequest) (schema.ResetSourceResponse, error) {
	state, err := s.lookupOpen(req.PanelID)
	if err != nil {
		return schema.ResetSourceResponse{}, err
	}
	state.pipeline.ResetSource()
	logx.WithPanel(ctx, req.PanelID).Info("service source reset")
	return schema.ResetSourceResponse{Panel: s.snapshot(state)}, nil
}

func (s *service) SubmitSource(ctx context.Context, req schema.SubmitSourceRequest) (schema.SubmitSourceResponse, error) {
	state, err := s.lookupOpen(req.PanelID)
	if err != nil {
		return schema.SubmitSourceResponse{}, err
	}
	state.pipeline.SetSource(req.Source)
	s.recordHistory(state, req.Source)
	token, err := s.schedule(ctx, req.PanelID, state, schema.TriggerEdit)
	if err != nil {
		return schema.SubmitSourceResponse{}, err
	}
	return schema.SubmitSourceResponse{Token: token}, nil
}

func (s *service) SetParameter(ctx context.Context, req schema.SetParameterRequest) (schema.SetParameterResponse, error) {
	state, err := s.lookupOpen(req.PanelID)
	if err != nil {
		return schema.SetParameterResponse{}, err
	}
	log := logx.WithPanel(ctx, req.PanelID)
	value, err := state.pipeline.SetParameter(req.Name, req.Value)
	if err != nil {
		log.Warn("service parameter rejected", "name", req.Name, "value", req.Value, "err", err)
		return schema.SetParameterResponse{}, err
	}
	token, err := s.schedule(ctx, req.PanelID, state, schema.TriggerParameter)
	if err != nil {
		return schema.SetParameterResponse{}, err
	}
	log.Debug("service parameter set", "name", req.Name, "value", value, "token", token)
	return schema.SetParameterResponse{Value: value, Token: token}, nil
}

func (s *service) Run(ctx context.Context, req schema.RunRequest) (schema.RunResponse, error) {
	return s.runNow(ctx, req.PanelID, schema.TriggerRun)
}

func (s *service) Regenerate(ctx context.Context, req schema.RegenerateRequest) (schema.RunResponse, error) {
	return s.runNow(ctx, req.PanelID, schema.TriggerRegenerate)
}

func (s *service) Boot(ctx context.Context, req schema.BootRequest) (schema.BootResponse, error) {
	ids := req.PanelIDs
	if len(ids) == 0 {
		s.mu.Lock()
		ids = append([]schema.PanelID(nil), s.order...)
		s.mu.Unlock()
	}
	for _, id := range ids {
		if _, err := s.lookupOpen(id); err != nil {
			return schema.BootResponse{}, fmt.Errorf("boot %s: %w", id, err)
		}
	}
	pslog.Ctx(ctx).Info("service boot start", "panels", len(ids))
	updates := make([]schema.PanelUpdate, len(ids))
	var group errgroup.Group
	for i, id := range ids {
		group.Go(func() error {
			resp, err := s.runNow(ctx, id, schema.TriggerBoot)
			if err != nil {
				return fmt.Errorf("boot %s: %w", id, err)
			}
			updates[i] = resp.Update
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return schema.BootResponse{}, err
	}
	return schema.BootResponse{Updates: updates}, nil
}

func (s *service) GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[req.PanelID]
	if state == nil {
		return schema.GetHistoryResponse{}, schema.ErrPanelNotFound
	}
	return schema.GetHistoryResponse{Entries: state.history.Entries()}, nil
}

func (s *service) GetConsole(ctx context.Context, req schema.GetConsoleRequest) (schema.GetConsoleResponse, error) {
	_ = ctx
	state, err := s.lookup(req.PanelID)
	if err != nil {
		return schema.GetConsoleResponse{}, err
	}
	view := state.console.Snapshot(req.Limit)
	return schema.GetConsoleResponse{Lines: view.Lines, TotalLines: view.TotalLines}, nil
}

func (s *service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.scheduler.Stop()
	s.logger.Info("service closed")
	return nil
}

func (s *service) runNow(ctx context.Context, panelID schema.PanelID, reason schema.TriggerReason) (schema.RunResponse, error) {
	if ctx == nil {
		return schema.RunResponse{}, errors.New("missing context")
	}
	state, err := s.lookupOpen(panelID)
	if err != nil {
		return schema.RunResponse{}, err
	}
	log := logx.WithPanel(ctx, panelID)
	ctx = logx.ContextWithPanelLogger(ctx, log, panelID)
	s.recordHistory(state, state.pipeline.Source())
	token := s.scheduler.Issue()
	update, published := state.pipeline.Trigger(ctx, reason, token)
	return schema.RunResponse{Update: update, Published: published}, nil
}

func (s *service) schedule(ctx context.Context, panelID schema.PanelID, state *panelState, reason schema.TriggerReason) (schema.RunToken, error) {
	runCtx := detachRunContext(logx.ContextWithPanelLogger(ctx, logx.WithPanel(ctx, panelID), panelID))
	token := s.scheduler.Schedule(panelID, s.cfg.QuietPeriod, func(token schema.RunToken) {
		state.pipeline.Trigger(runCtx, reason, token)
	})
	if token == 0 {
		return 0, schema.ErrServiceClosed
	}
	pslog.Ctx(runCtx).Debug("service trigger scheduled", "token", token, "reason", reason, "quiet_ms", s.cfg.QuietPeriod.Milliseconds())
	return token, nil
}

// panelRenderer records published updates in the panel console before
// handing them to the service renderer.
func (s *service) panelRenderer(c *console) Renderer {
	return RendererFunc(func(update schema.PanelUpdate) {
		c.Record(update)
		s.renderer.Publish(update)
	})
}

func (s *service) recordHistory(state *panelState, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.history.Append(source)
}

func (s *service) snapshot(state *panelState) schema.PanelSnapshot {
	snapshot := state.pipeline.Snapshot()
	if token, ok := s.scheduler.Pending(snapshot.ID); ok {
		snapshot.PendingRun = token
	}
	return snapshot
}

func (s *service) lookup(panelID schema.PanelID) (*panelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[panelID]
	if state == nil {
		return nil, schema.ErrPanelNotFound
	}
	return state, nil
}

func (s *service) lookupOpen(panelID schema.PanelID) (*panelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, schema.ErrServiceClosed
	}
	state := s.states[panelID]
	if state == nil {
		return nil, schema.ErrPanelNotFound
	}
	return state, nil
}

// detachRunContext keeps the logger and panel markers of ctx but drops its
// cancellation, so debounced runs outlive the request that scheduled them.
func detachRunContext(ctx context.Context) context.Context {
	base := context.Background()
	if ctx != nil {
		if logger := pslog.Ctx(ctx); logger != nil {
			base = logx.CopyContextFields(pslog.ContextWithLogger(base, logger), ctx)
		}
	}
	return base
}

func panelSeed(panelID schema.PanelID) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(panelID))
	return h.Sum64()
}

func removePanelID(order []schema.PanelID, id schema.PanelID) []schema.PanelID {
	for i, existing := range order {
		if existing == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
