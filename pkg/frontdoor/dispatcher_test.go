package frontdoor

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/polisai/realm-finder/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recordingDelegate remembers every request it receives.
type recordingDelegate struct {
	mu    sync.Mutex
	paths []string
	calls int
}

func (d *recordingDelegate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.calls++
	d.paths = append(d.paths, r.URL.Path)
	d.mu.Unlock()
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "delegate:"+r.URL.Path)
}

func (d *recordingDelegate) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *recordingDelegate) LastPath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.paths) == 0 {
		return ""
	}
	return d.paths[len(d.paths)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(delegate http.Handler, metrics *Metrics) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Routing:  &config.RoutingConfig{Prefix: "/a2a", HealthPath: "/health"},
		Delegate: delegate,
		Metrics:  metrics,
		Logger:   quietLogger(),
	})
}

func TestDispatcher_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		delegatePath string
	}{
		{name: "agent card under prefix", method: http.MethodGet, path: "/a2a/agent-card", delegatePath: "/agent-card"},
		{name: "bare prefix", method: http.MethodPost, path: "/a2a", delegatePath: "/"},
		{name: "other path", method: http.MethodGet, path: "/other/thing", delegatePath: "/other/thing"},
		{name: "well-known under prefix", method: http.MethodGet, path: "/a2a/.well-known/agent-card.json", delegatePath: "/.well-known/agent-card.json"},
		{name: "health lookalike", method: http.MethodGet, path: "/healthz", delegatePath: "/healthz"},
		{name: "root", method: http.MethodGet, path: "/", delegatePath: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delegate := &recordingDelegate{}
			d := newTestDispatcher(delegate, nil)

			rec := httptest.NewRecorder()
			d.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, 1, delegate.Calls())
			assert.Equal(t, tt.delegatePath, delegate.LastPath())
			assert.Equal(t, "delegate:"+tt.delegatePath, rec.Body.String())
		})
	}
}

func TestDispatcher_Health(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			delegate := &recordingDelegate{}
			d := newTestDispatcher(delegate, nil)

			req := httptest.NewRequest(method, "/health", strings.NewReader(`{"ignored":true}`))
			rec := httptest.NewRecorder()
			d.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
			assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Zero(t, delegate.Calls(), "delegate must not be invoked for health checks")
		})
	}
}

func TestDispatcher_HealthSubpath(t *testing.T) {
	delegate := &recordingDelegate{}
	d := newTestDispatcher(delegate, nil)

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, delegate.Calls())
}

func TestDispatcher_Decide(t *testing.T) {
	d := newTestDispatcher(&recordingDelegate{}, nil)

	upgrade := httptest.NewRequest(http.MethodGet, "/health", nil)
	upgrade.Header.Set("Connection", "keep-alive, Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")

	connect := httptest.NewRequest(http.MethodConnect, "/health", nil)

	assert.Equal(t, RouteHealth, d.Decide(httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.Equal(t, RouteDelegate, d.Decide(httptest.NewRequest(http.MethodGet, "/a2a/x", nil)))
	assert.Equal(t, RouteDelegate, d.Decide(httptest.NewRequest(http.MethodGet, "/x", nil)))
	assert.Equal(t, RoutePassthrough, d.Decide(upgrade))
	assert.Equal(t, RoutePassthrough, d.Decide(connect))
}

func TestDispatcher_NonHTTPKindPassesThroughUntouched(t *testing.T) {
	delegate := &recordingDelegate{}
	d := newTestDispatcher(delegate, nil)

	req := httptest.NewRequest(http.MethodGet, "/a2a/stream", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	assert.Equal(t, 1, delegate.Calls())
	assert.Equal(t, "/a2a/stream", delegate.LastPath(), "no rewrite for non-HTTP exchanges")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDispatcher_UpgradeToHealthPathReachesDelegate(t *testing.T) {
	delegate := &recordingDelegate{}
	d := newTestDispatcher(delegate, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "h2c")
	d.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, delegate.Calls())
	assert.Equal(t, "/health", delegate.LastPath())
}

func TestDispatcher_ExactlyOneDestination(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		path := rapid.SampledFrom([]string{"/health", "/health/x", "/a2a", "/a2a/", "/a2a/x", "/x", "/", "/healthy"}).Draw(t, "path")
		method := rapid.SampledFrom([]string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions}).Draw(t, "method")

		delegate := &recordingDelegate{}
		d := newTestDispatcher(delegate, nil)

		rec := httptest.NewRecorder()
		d.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

		isHealth := path == "/health" || strings.HasPrefix(path, "/health/")
		healthAnswered := rec.Body.String() == `{"status":"ok"}`
		if isHealth != healthAnswered {
			t.Fatalf("%s %s: health answered=%v, expected %v", method, path, healthAnswered, isHealth)
		}
		if isHealth == (delegate.Calls() == 1) {
			t.Fatalf("%s %s: delegate calls=%d", method, path, delegate.Calls())
		}
		if delegate.Calls() > 1 {
			t.Fatalf("%s %s: delegate invoked %d times", method, path, delegate.Calls())
		}
		if strings.Contains(delegate.LastPath(), "/a2a") {
			t.Fatalf("delegate saw prefixed path %q", delegate.LastPath())
		}
	})
}

func TestDispatcher_DelegatePanicIsNotRecovered(t *testing.T) {
	d := newTestDispatcher(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}), nil)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		d.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/a2a/x", nil))
	})
}

func TestDispatcher_CancellationReachesDelegate(t *testing.T) {
	var delegateErr error
	d := newTestDispatcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		delegateErr = r.Context().Err()
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/a2a/slow", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.ServeHTTP(httptest.NewRecorder(), req)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not return after cancellation")
	}
	assert.ErrorIs(t, delegateErr, context.Canceled)
}

func TestDispatcher_Metrics(t *testing.T) {
	metrics := NewMetrics()
	d := newTestDispatcher(&recordingDelegate{}, metrics)

	d.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	d.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/a2a/x", nil))
	d.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/a2a", nil))
	d.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/other", nil))

	assert.Equal(t, 1.0, counterValue(t, metrics, "frontdoor_requests_total", "health", "GET", "200"))
	assert.Equal(t, 2.0, counterValue(t, metrics, "frontdoor_requests_total", "delegate", "GET", "200"))
	assert.Equal(t, 1.0, counterValue(t, metrics, "frontdoor_requests_total", "delegate", "POST", "200"))
	assert.Equal(t, 1.0, counterValue(t, metrics, "frontdoor_rewrites_total", RewriteStripped))
	assert.Equal(t, 1.0, counterValue(t, metrics, "frontdoor_rewrites_total", RewriteRoot))
	assert.Equal(t, 1.0, counterValue(t, metrics, "frontdoor_rewrites_total", RewriteUnchanged))
}

func TestDispatcher_NilDelegateAndRouting(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()})

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a2a/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// hijackRecorder is a ResponseRecorder that supports Hijack.
type hijackRecorder struct {
	*httptest.ResponseRecorder
	server net.Conn
	client net.Conn
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.server, bufio.NewReadWriter(bufio.NewReader(h.server), bufio.NewWriter(h.server)), nil
}

func TestDispatcher_PassthroughKeepsHijack(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	rec := &hijackRecorder{ResponseRecorder: httptest.NewRecorder(), server: server, client: client}
	metrics := NewMetrics()

	d := newTestDispatcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok, "writer must expose http.Hijacker")
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}), metrics)

	req := httptest.NewRequest(http.MethodConnect, "/", nil)
	d.ServeHTTP(rec, req)

	assert.Equal(t, 1.0, counterValue(t, metrics, "frontdoor_requests_total", "passthrough", "CONNECT", "hijacked"))
}
