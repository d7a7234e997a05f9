// Package metrics exports pipeline telemetry to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"pkt.systems/pslog"
	"pkt.systems/smallrhost/schema"
)

const namespace = "smallrhost"

// Collector implements core.Observer on a private registry.
type Collector struct {
	registry *prometheus.Registry

	loads        *prometheus.CounterVec
	loadSeconds  prometheus.Histogram
	ready        prometheus.Gauge
	invokes      *prometheus.CounterVec
	invokeSecs   prometheus.Histogram
	superseded   *prometheus.CounterVec
	stale        *prometheus.CounterVec
	publishes    *prometheus.CounterVec
	runDurations *prometheus.HistogramVec
}

// New registers the collector's metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluator_loads_total",
			Help:      "Evaluator load attempts by outcome.",
		}, []string{"outcome"}),
		loadSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluator_load_seconds",
			Help:      "Time spent loading the evaluator.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		ready: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluator_ready",
			Help:      "1 once the evaluator has loaded.",
		}),
		invokes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Bridge invocations by result kind.",
		}, []string{"result"}),
		invokeSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_seconds",
			Help:      "Evaluator call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		superseded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "superseded_triggers_total",
			Help:      "Pending triggers replaced before they fired.",
		}, []string{"panel"}),
		stale: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Run results discarded because a newer run started.",
		}, []string{"panel"}),
		publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_updates_total",
			Help:      "Updates delivered to renderers.",
		}, []string{"panel", "outcome"}),
		runDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_seconds",
			Help:      "End-to-end duration of published runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"panel"}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveLoad(d time.Duration, err error) {
	c.loadSeconds.Observe(d.Seconds())
	if err != nil {
		c.loads.WithLabelValues("failed").Inc()
		return
	}
	c.loads.WithLabelValues("loaded").Inc()
	c.ready.Set(1)
}

func (c *Collector) ObserveInvoke(d time.Duration, failure schema.FailureKind) {
	result := "success"
	if failure != "" {
		result = string(failure)
	}
	c.invokes.WithLabelValues(result).Inc()
	if failure != schema.FailureNotReady {
		c.invokeSecs.Observe(d.Seconds())
	}
}

func (c *Collector) ObserveSuperseded(panelID schema.PanelID) {
	c.superseded.WithLabelValues(string(panelID)).Inc()
}

func (c *Collector) ObserveStale(panelID schema.PanelID) {
	c.stale.WithLabelValues(string(panelID)).Inc()
}

func (c *Collector) ObservePublish(update schema.PanelUpdate) {
	c.publishes.WithLabelValues(string(update.PanelID), string(update.Outcome)).Inc()
	c.runDurations.WithLabelValues(string(update.PanelID)).Observe(update.Duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return c.ServeListener(ctx, listener)
}

// ServeListener exposes /metrics on an existing listener until ctx is done.
func (c *Collector) ServeListener(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log := pslog.Ctx(ctx)
	if log != nil {
		log.Info("metrics listener started", "addr", listener.Addr().String())
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
