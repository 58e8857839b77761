package frontdoor

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/polisai/realm-finder/pkg/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Route is the routing decision taken for a single request.
type Route int

const (
	// RouteDelegate sends the request through the PrefixRewriter.
	RouteDelegate Route = iota
	// RouteHealth answers the request locally.
	RouteHealth
	// RoutePassthrough hands a non-HTTP exchange to the delegate as is.
	RoutePassthrough
)

func (r Route) String() string {
	switch r {
	case RouteHealth:
		return "health"
	case RoutePassthrough:
		return "passthrough"
	default:
		return "delegate"
	}
}

// DispatcherConfig holds the collaborators of a Dispatcher.
type DispatcherConfig struct {
	// Routing is read once at construction.
	Routing *config.RoutingConfig

	// Delegate is the wrapped agent application.
	Delegate http.Handler

	Metrics *Metrics
	Tracing *TracingManager
	Logger  *slog.Logger
}

// Dispatcher is the entry point for every inbound request.
type Dispatcher struct {
	healthPath string
	health     http.Handler
	rewriter   *PrefixRewriter
	delegate   http.Handler

	// traced is the rewriter, wrapped by otelhttp when tracing is enabled.
	traced http.Handler

	metrics *Metrics
	log     *StructuredLogger
}

// NewDispatcher creates a dispatcher in front of cfg.Delegate.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	routing := cfg.Routing
	if routing == nil {
		routing = &config.RoutingConfig{
			Prefix:     config.DefaultPrefix,
			HealthPath: config.DefaultHealthPath,
		}
	}
	delegate := cfg.Delegate
	if delegate == nil {
		delegate = http.NotFoundHandler()
	}

	rewriter := NewPrefixRewriter(routing.Prefix, delegate)
	if cfg.Metrics != nil {
		rewriter.SetMetrics(cfg.Metrics)
	}

	var traced http.Handler = rewriter
	if cfg.Tracing.Enabled() {
		traced = otelhttp.NewHandler(rewriter, "frontdoor.delegate",
			otelhttp.WithTracerProvider(cfg.Tracing.TracerProvider()),
			otelhttp.WithPropagators(cfg.Tracing.Propagator()),
		)
	}

	return &Dispatcher{
		healthPath: routing.HealthPath,
		health:     NewHealthResponder(),
		rewriter:   rewriter,
		delegate:   delegate,
		traced:     traced,
		metrics:    cfg.Metrics,
		log:        NewStructuredLogger(cfg.Logger),
	}
}

// Decide computes the route for r from its kind and path alone.
// The health check runs before any prefix handling.
func (d *Dispatcher) Decide(r *http.Request) Route {
	if KindOf(r) != KindHTTP {
		return RoutePassthrough
	}
	// Segment match: "/health/live" is a health check, "/healthz" is not.
	if matchesPrefix(r.URL.Path, d.healthPath) {
		return RouteHealth
	}
	return RouteDelegate
}

// ServeHTTP invokes exactly one downstream handler for r. Failures of the
// delegate are left to the delegate and the hosting server.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	route := d.Decide(r)
	sw := newStatusWriter(w)

	switch route {
	case RouteHealth:
		d.health.ServeHTTP(sw, r)
	case RoutePassthrough:
		// Upgrades and tunnels need the raw connection; no tracing wrapper.
		d.delegate.ServeHTTP(sw, r)
	default:
		d.traced.ServeHTTP(sw, r)
	}

	duration := time.Since(start)
	if d.metrics != nil {
		d.metrics.RecordRequest(route.String(), r.Method, sw.statusLabel(), duration)
	}
	d.log.LogHTTPRequest(r.Context(), r.Method, r.URL.Path, route.String(), sw.status, duration)
}
