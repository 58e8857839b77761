package frontdoor

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
)

// statusWriter wraps http.ResponseWriter to capture the status code while
// keeping streaming (Flush) and connection takeover (Hijack) available.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	hijacked    bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		// 1xx responses are informational; the final status is still to come.
		sw.wroteHeader = code >= 200 || code == http.StatusSwitchingProtocols
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Flush() {
	if flusher, ok := sw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support http.Hijacker")
	}
	conn, rw, err := hijacker.Hijack()
	if err == nil {
		sw.hijacked = true
	}
	return conn, rw, err
}

func (sw *statusWriter) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := sw.ResponseWriter.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func (sw *statusWriter) statusLabel() string {
	if sw.hijacked {
		return "hijacked"
	}
	return strconv.Itoa(sw.status)
}
