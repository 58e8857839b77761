package frontdoor

import (
	"net/http"
	"strings"
)

// Rewrite outcomes, used as metric label values.
const (
	RewriteStripped  = "stripped"
	RewriteRoot      = "root"
	RewriteUnchanged = "unchanged"
)

// StripPrefix applies the prefix rule to path. A path beneath prefix loses
// the prefix, the bare prefix becomes "/", anything else is returned as is.
// The boolean reports whether the path was rewritten.
func StripPrefix(path, prefix string) (string, bool) {
	if prefix == "" {
		return path, false
	}
	if path == prefix {
		return "/", true
	}
	if strings.HasPrefix(path, prefix+"/") {
		return path[len(prefix):], true
	}
	return path, false
}

// PrefixRewriter maps prefixed request paths into the path space of the
// delegate application. Requests outside the prefix are forwarded unchanged.
type PrefixRewriter struct {
	prefix   string
	delegate http.Handler
	metrics  *Metrics
}

// NewPrefixRewriter creates a rewriter that forwards to delegate.
func NewPrefixRewriter(prefix string, delegate http.Handler) *PrefixRewriter {
	return &PrefixRewriter{
		prefix:   prefix,
		delegate: delegate,
	}
}

// SetMetrics sets the metrics instance for recording rewrite outcomes.
func (p *PrefixRewriter) SetMetrics(metrics *Metrics) {
	p.metrics = metrics
}

// Rewrite returns the request the delegate should see and the rewrite
// outcome. When the path is rewritten the result is a copy; r is never
// modified.
func (p *PrefixRewriter) Rewrite(r *http.Request) (*http.Request, string) {
	path, ok := StripPrefix(r.URL.Path, p.prefix)
	if !ok {
		return r, RewriteUnchanged
	}

	outcome := RewriteStripped
	if path == "/" && r.URL.Path == p.prefix {
		outcome = RewriteRoot
	}

	r2 := WithPath(r, path)
	// Keep the escaped form only when it carries the same prefix.
	if r.URL.RawPath != "" {
		if raw, ok := StripPrefix(r.URL.RawPath, p.prefix); ok {
			r2.URL.RawPath = raw
		}
	}

	return r2, outcome
}

// ServeHTTP rewrites the request path and hands the request to the delegate.
// The delegate's response is not inspected.
func (p *PrefixRewriter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r2, outcome := p.Rewrite(r)
	if p.metrics != nil {
		p.metrics.RecordRewrite(outcome)
	}
	p.delegate.ServeHTTP(w, r2)
}
