package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/smallrhost/schema"
)

// PipelineConfig wires a pipeline to its panel and collaborators.
type PipelineConfig struct {
	ID         schema.PanelID
	Spec       PanelSpec
	Invoker    Invoker
	Renderer   Renderer
	Observer   Observer
	Rand       *rand.Rand
	Source     string
	Parameters schema.Parameters
	Now        func() time.Time
	NewRunID   func() string
}

// Pipeline owns one panel's state and turns triggers into published updates.
// Only the run holding the most recently issued token may publish; tokens
// are ordered, so a run started late under an older token never wins.
type Pipeline struct {
	id       schema.PanelID
	spec     PanelSpec
	invoker  Invoker
	renderer Renderer
	observer Observer
	now      func() time.Time
	newRunID func() string

	mu        sync.Mutex
	rng       *rand.Rand
	params    schema.Parameters
	source    string
	data      schema.Dataset
	dataStale bool
	last      *schema.PanelUpdate
	latest    schema.RunToken
	inFlight  int
	edits     int
	closed    bool
}

// NewPipeline constructs a pipeline in the idle state.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Spec == nil {
		return nil, errors.New("pipeline requires a panel spec")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("pipeline requires an invoker")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = nopRenderer{}
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = newRunID
	}
	params := DefaultParameters(cfg.Spec)
	for name, value := range cfg.Parameters {
		spec, ok := ParameterSpecFor(cfg.Spec, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", schema.ErrUnknownParameter, name)
		}
		normalized, err := schema.NormalizeParameter(spec, value)
		if err != nil {
			return nil, err
		}
		params[name] = normalized
	}
	source := cfg.Source
	if source == "" {
		source = cfg.Spec.DefaultSource()
	}
	return &Pipeline{
		id:       cfg.ID,
		spec:     cfg.Spec,
		invoker:  cfg.Invoker,
		renderer: cfg.Renderer,
		observer: cfg.Observer,
		now:      cfg.Now,
		newRunID: cfg.NewRunID,
		rng:      cfg.Rand,
		params:   params,
		source:   source,
	}, nil
}

// ID returns the panel id.
func (p *Pipeline) ID() schema.PanelID {
	return p.id
}

// Spec returns the panel spec.
func (p *Pipeline) Spec() PanelSpec {
	return p.spec
}

// SetParameter normalizes and stores a parameter value. The generated data
// is marked stale; the next run regenerates it whatever its reason.
func (p *Pipeline) SetParameter(name string, value float64) (float64, error) {
	spec, ok := ParameterSpecFor(p.spec, name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", schema.ErrUnknownParameter, name)
	}
	normalized, err := schema.NormalizeParameter(spec, value)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params[name] = normalized
	p.dataStale = true
	return normalized, nil
}

// SetSource replaces the user code.
func (p *Pipeline) SetSource(source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source != source {
		p.source = source
		p.edits++
	}
}

// ResetSource restores the panel's default code.
func (p *Pipeline) ResetSource() {
	p.SetSource(p.spec.DefaultSource())
}

// Source returns the current user code.
func (p *Pipeline) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Close makes every in-flight and future run stale.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.latest = 0
}

// Snapshot returns a copy of the panel state.
func (p *Pipeline) Snapshot() schema.PanelSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := schema.PanelStatusIdle
	if p.inFlight > 0 {
		status = schema.PanelStatusRunning
	}
	var last *schema.PanelUpdate
	if p.last != nil {
		copied := *p.last
		last = &copied
	}
	return schema.PanelSnapshot{
		ID:          p.id,
		Kind:        p.spec.Kind(),
		Status:      status,
		Parameters:  p.params.Clone(),
		Source:      p.source,
		Generated:   p.data.Clone(),
		LastResult:  last,
		SourceEdits: p.edits,
	}
}

// Trigger runs the panel once under token. It returns the terminal update
// and whether it was published. A token older than one already seen is
// rejected without invoking the evaluator; a run superseded while in flight
// is discarded.
func (p *Pipeline) Trigger(ctx context.Context, reason schema.TriggerReason, token schema.RunToken) (schema.PanelUpdate, bool) {
	runID := p.newRunID()
	log := pslog.Ctx(ctx).With("panel", p.id, "token", token, "reason", reason, "run", runID)
	started := p.now()

	update := schema.PanelUpdate{
		PanelID: p.id,
		Kind:    p.spec.Kind(),
		Token:   token,
		RunID:   runID,
		Reason:  reason,
		Started: started,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		applyFailure(&update, schema.Failure{Kind: schema.FailureEvaluation, Message: "panel closed"})
		return update, false
	}
	if token < p.latest {
		latest := p.latest
		p.mu.Unlock()
		p.observer.ObserveStale(p.id)
		log.Debug("pipeline trigger superseded", "latest", latest)
		applyFailure(&update, schema.Failure{Kind: schema.FailureEvaluation, Message: fmt.Sprintf("superseded by run %d", latest)})
		return update, false
	}
	p.latest = token
	p.inFlight++
	program, params, data, genErr := p.prepareLocked(reason)
	p.mu.Unlock()
	if genErr != nil {
		log.Warn("pipeline generate failed", "err", genErr)
		applyFailure(&update, schema.Failure{Kind: schema.FailureEvaluation, Message: "generate data: " + genErr.Error()})
	} else {
		log.Debug("pipeline run start", "program_len", len(program))
		result := p.invoker.Invoke(ctx, program)
		p.applyResult(&update, result, params, data)
	}
	update.Duration = p.now().Sub(started)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
	if p.closed || token < p.latest {
		p.observer.ObserveStale(p.id)
		log.Debug("pipeline result discarded", "latest", p.latest, "outcome", update.Outcome)
		return update, false
	}
	stored := update
	p.last = &stored
	p.renderer.Publish(update)
	p.observer.ObservePublish(update)
	if update.Succeeded() {
		log.Info("pipeline run succeeded", "duration_ms", update.Duration.Milliseconds())
	} else {
		log.Info("pipeline run failed", "kind", update.FailureKind, "err", update.Message, "duration_ms", update.Duration.Milliseconds())
	}
	return update, true
}

func (p *Pipeline) prepareLocked(reason schema.TriggerReason) (string, schema.Parameters, schema.Dataset, error) {
	params := p.params.Clone()
	if p.spec.Generates() && (reason.Regenerates() || p.data == nil || p.dataStale) {
		data, err := p.spec.Generate(params, p.rng)
		if err != nil {
			return "", params, nil, err
		}
		p.data = data
		p.dataStale = false
	}
	data := p.data.Clone()
	program := Compose(BuildPrelude(p.spec.Parameters(), params, data), p.source)
	return program, params, data, nil
}

func (p *Pipeline) applyResult(update *schema.PanelUpdate, result schema.EvaluationResult, params schema.Parameters, data schema.Dataset) {
	switch r := result.(type) {
	case schema.Success:
		shape, err := p.spec.Parse(ParseInput{Result: r, Parameters: params, Data: data})
		if err != nil {
			failure := schema.FailureFromError(err)
			if _, ok := err.(*schema.EvalError); !ok {
				failure.Kind = schema.FailureContractMismatch
			}
			failure.ConsoleText = r.ConsoleText
			applyFailure(update, failure)
			return
		}
		update.Outcome = schema.OutcomeSucceeded
		update.Shape = shape
		update.ConsoleText = r.ConsoleText
		update.PrintedValue = r.PrintedValue
	case schema.Failure:
		applyFailure(update, r)
	default:
		applyFailure(update, schema.Failure{Kind: schema.FailureMalformedResult, Message: fmt.Sprintf("unexpected result %T", result)})
	}
}

func applyFailure(update *schema.PanelUpdate, failure schema.Failure) {
	update.Outcome = schema.OutcomeFailed
	update.Shape = nil
	update.FailureKind = failure.Kind
	update.Message = failure.Message
	update.ConsoleText = failure.ConsoleText
}
