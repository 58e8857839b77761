package frontdoor

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Kind classifies an inbound request by the kind of exchange it starts.
type Kind int

const (
	// KindHTTP is an ordinary request/response exchange.
	KindHTTP Kind = iota
	// KindUpgrade is a protocol upgrade handshake (websocket, h2c).
	KindUpgrade
	// KindConnect is a CONNECT tunnel.
	KindConnect
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindUpgrade:
		return "upgrade"
	case KindConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of exchange r starts.
func KindOf(r *http.Request) Kind {
	if r.Method == http.MethodConnect {
		return KindConnect
	}
	if r.Header.Get("Upgrade") != "" && httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade") {
		return KindUpgrade
	}
	return KindHTTP
}

// WithPath returns a shallow copy of r whose URL path is replaced by path and
// whose RawPath is cleared. r itself and r.URL are left untouched; the copy
// keeps r's context.
func WithPath(r *http.Request, path string) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	r2.URL = new(url.URL)
	*r2.URL = *r.URL
	r2.URL.Path = path
	r2.URL.RawPath = ""
	return r2
}

// matchesPrefix reports whether path equals prefix or lies beneath it on a
// segment boundary. "/healthz" does not match "/health".
func matchesPrefix(path, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	if prefix[len(prefix)-1] == '/' {
		return true
	}
	return path[len(prefix)] == '/'
}
