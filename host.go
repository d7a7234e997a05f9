package smallrhost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/core"
	"pkt.systems/smallrhost/internal/eventbus"
	"pkt.systems/smallrhost/internal/metrics"
	"pkt.systems/smallrhost/internal/panels"
	"pkt.systems/smallrhost/internal/watch"
	"pkt.systems/smallrhost/schema"
)

// HostConfig configures the compositor.
type HostConfig struct {
	Service schema.ServiceConfig
	// Enabled lists the panel kinds to open, one panel per kind. Empty opens
	// every kind.
	Enabled []schema.PanelKind
	// Boot lists the kinds run once the evaluator is ready.
	Boot []schema.PanelKind
	// LoadTimeout bounds the evaluator load; zero waits indefinitely.
	LoadTimeout time.Duration
}

// HostDeps captures dependencies required to build the host.
type HostDeps struct {
	Loader    core.Loader
	Renderers []core.Renderer
	Clock     core.Clock
	Logger    pslog.Logger
}

// HostOption toggles companion components.
type HostOption func(*hostOptions)

type hostOptions struct {
	watchDir    string
	metricsAddr string
}

// WithWatch submits edits of <dir>/<panel>.R to the matching panel.
func WithWatch(dir string) HostOption {
	return func(o *hostOptions) { o.watchDir = dir }
}

// WithMetrics serves Prometheus metrics on addr.
func WithMetrics(addr string) HostOption {
	return func(o *hostOptions) { o.metricsAddr = addr }
}

// Host composes the evaluator handle, panel service, renderers and event
// bus.
type Host struct {
	cfg     HostConfig
	options hostOptions
	handle  *core.EvaluatorHandle
	service core.Service
	catalog *panels.Catalog
	bus     *eventbus.Bus
	metrics *metrics.Collector
	logger  pslog.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	errCh    chan error
	wg       sync.WaitGroup
	started  bool
	bootDone chan struct{}
	boot     schema.BootResponse
	bootErr  error
}

// New constructs a host and opens its panels. The evaluator is not loaded
// until Start.
func New(cfg HostConfig, deps HostDeps, opts ...HostOption) (*Host, error) {
	options := hostOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if deps.Loader == nil {
		return nil, errors.New("evaluator loader is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	catalog, err := panels.NewCatalog(cfg.Enabled...)
	if err != nil {
		return nil, err
	}
	for _, kind := range cfg.Boot {
		if _, ok := catalog.Lookup(kind); !ok {
			return nil, fmt.Errorf("%w: boot panel %s is not enabled", schema.ErrInvalidPanel, kind)
		}
	}

	var observer core.Observer = core.NopObserver{}
	var collector *metrics.Collector
	if options.metricsAddr != "" {
		collector = metrics.New()
		observer = collector
	}
	bus := eventbus.New(logger)
	renderers := make([]core.Renderer, 0, len(deps.Renderers)+1)
	for _, r := range deps.Renderers {
		if r != nil {
			renderers = append(renderers, r)
		}
	}
	renderers = append(renderers, bus)

	handle := core.NewEvaluatorHandle(deps.Loader, observer)
	service, err := core.NewService(cfg.Service, core.ServiceDeps{
		Invoker:  core.NewBridge(handle, observer),
		Panels:   catalog,
		Renderer: rendererFanout{renderers: renderers},
		Observer: observer,
		Clock:    deps.Clock,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	for _, kind := range catalog.Kinds() {
		if _, err := service.CreatePanel(ctx, schema.CreatePanelRequest{Kind: kind}); err != nil {
			_ = service.Close()
			return nil, err
		}
	}
	return &Host{
		cfg:      cfg,
		options:  options,
		handle:   handle,
		service:  service,
		catalog:  catalog,
		bus:      bus,
		metrics:  collector,
		logger:   logger,
		bootDone: make(chan struct{}),
	}, nil
}

// Service returns the panel service.
func (h *Host) Service() core.Service {
	return h.service
}

// Panels returns the enabled panel catalog.
func (h *Host) Panels() *panels.Catalog {
	return h.catalog
}

// Metrics returns the collector, or nil when metrics are disabled.
func (h *Host) Metrics() *metrics.Collector {
	return h.metrics
}

// Subscribe registers for updates of one panel, or all with
// eventbus.AllPanels.
func (h *Host) Subscribe(panelID schema.PanelID) (<-chan eventbus.Event, func()) {
	return h.bus.Subscribe(panelID)
}

// EvaluatorState describes the evaluator lifecycle.
func (h *Host) EvaluatorState() string {
	state := string(h.handle.State())
	if err := h.handle.LastError(); err != nil && h.handle.State() == core.HandleUnavailable {
		return fmt.Sprintf("%s (%v)", state, err)
	}
	return state
}

// Start kicks the asynchronous evaluator load and the companion
// components. Boot panels run once the evaluator is ready.
func (h *Host) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		pslog.Ctx(ctx).Warn("host start rejected", "reason", "already started")
		return errors.New("host already started")
	}
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.errCh = make(chan error, 2)
	h.started = true
	h.logger = pslog.Ctx(h.ctx)
	runCtx := h.ctx
	h.mu.Unlock()

	log := h.logger
	log.Info(
		"host start",
		"panels", len(h.catalog.Kinds()),
		"boot", len(h.cfg.Boot),
		"watch_dir", h.options.watchDir,
		"metrics_addr", h.options.metricsAddr,
	)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.loadAndBoot(runCtx)
	}()
	if h.metrics != nil {
		h.goCompanion(runCtx, "metrics", func(ctx context.Context) error {
			return h.metrics.Serve(ctx, h.options.metricsAddr)
		})
	}
	if h.options.watchDir != "" {
		h.goCompanion(runCtx, "watch", h.runWatch)
	}
	return nil
}

func (h *Host) goCompanion(ctx context.Context, name string, fn func(context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := fn(ctx); err != nil {
			h.logger.Error("host "+name+" failed", "err", err)
			h.errCh <- fmt.Errorf("%s: %w", name, err)
		}
	}()
}

func (h *Host) loadAndBoot(ctx context.Context) {
	defer close(h.bootDone)
	loadCtx := ctx
	if h.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, h.cfg.LoadTimeout)
		defer cancel()
	}
	started := time.Now()
	err := h.handle.Load(loadCtx)
	event := eventbus.EvaluatorEvent{Ready: err == nil, Duration: time.Since(started)}
	if err != nil {
		event.Err = err.Error()
	}
	h.bus.OnEvaluator(event)
	if err != nil {
		h.bootErr = fmt.Errorf("load evaluator: %w", err)
		return
	}
	ids := make([]schema.PanelID, 0, len(h.cfg.Boot))
	for _, kind := range h.cfg.Boot {
		ids = append(ids, schema.PanelID(kind))
	}
	if len(ids) == 0 {
		return
	}
	h.boot, h.bootErr = h.service.Boot(ctx, schema.BootRequest{PanelIDs: ids})
	if h.bootErr != nil {
		h.logger.Warn("host boot failed", "err", h.bootErr)
	}
}

// WaitBoot blocks until the evaluator load and the boot runs finished. A
// failed load leaves the host usable; runs report not ready until a later
// load succeeds.
func (h *Host) WaitBoot(ctx context.Context) (schema.BootResponse, error) {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		return schema.BootResponse{}, errors.New("host not started")
	}
	select {
	case <-ctx.Done():
		return schema.BootResponse{}, ctx.Err()
	case <-h.bootDone:
		return h.boot, h.bootErr
	}
}

// Reload retries a failed evaluator load.
func (h *Host) Reload(ctx context.Context) error {
	err := h.handle.Load(ctx)
	event := eventbus.EvaluatorEvent{Ready: err == nil}
	if err != nil {
		event.Err = err.Error()
	}
	h.bus.OnEvaluator(event)
	return err
}

// Wait blocks until the host is stopped or a companion fails.
func (h *Host) Wait() error {
	h.mu.Lock()
	ctx := h.ctx
	errCh := h.errCh
	started := h.started
	h.mu.Unlock()
	if !started {
		return errors.New("host not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		pslog.Ctx(ctx).Error("host stopped", "err", err)
		_ = h.Stop(context.Background())
		return err
	}
}

// Stop cancels pending triggers and companions, then waits for them to
// exit or ctx to end.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	cancel := h.cancel
	started := h.started
	log := h.logger
	h.mu.Unlock()
	if !started {
		return h.service.Close()
	}
	log.Info("host stop requested")
	if err := h.service.Close(); err != nil {
		log.Warn("host service close failed", "err", err)
	}
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		log.Warn("host stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("host stopped")
		return nil
	}
}

func (h *Host) runWatch(ctx context.Context) error {
	sources := make(map[schema.PanelID]string)
	list, err := h.service.ListPanels(ctx, schema.ListPanelsRequest{})
	if err != nil {
		return err
	}
	for _, panel := range list.Panels {
		sources[panel.ID] = panel.Source
	}
	written, err := watch.WriteMissing(h.options.watchDir, sources)
	if err != nil {
		return err
	}
	if len(written) > 0 {
		h.logger.Info("host scripts seeded", "dir", h.options.watchDir, "count", len(written))
	}
	watcher, err := watch.New(h.options.watchDir, h.submitScript)
	if err != nil {
		return err
	}
	if err := watcher.Scan(ctx); err != nil {
		return err
	}
	return watcher.Run(ctx)
}

// submitScript schedules a debounced edit unless the script matches the
// panel's current program. Scripts without a panel are ignored.
func (h *Host) submitScript(ctx context.Context, panelID schema.PanelID, source string) error {
	resp, err := h.service.GetPanel(ctx, schema.GetPanelRequest{PanelID: panelID})
	if errors.Is(err, schema.ErrPanelNotFound) {
		pslog.Ctx(ctx).Debug("script ignored", "panel", string(panelID), "reason", "no panel")
		return nil
	}
	if err != nil {
		return err
	}
	if resp.Panel.Source == source {
		return nil
	}
	_, err = h.service.SubmitSource(ctx, schema.SubmitSourceRequest{PanelID: panelID, Source: source})
	return err
}
