package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// SSEEvent is a single server-sent event.
type SSEEvent struct {
	ID    string
	Event string
	Data  []byte
}

// SerializeSSEEvent converts an SSEEvent to wire format.
func SerializeSSEEvent(event *SSEEvent) []byte {
	if event == nil {
		return []byte{}
	}

	var buffer bytes.Buffer

	if event.Event != "" {
		buffer.WriteString("event: ")
		buffer.WriteString(event.Event)
		buffer.WriteString("\n")
	}

	if event.ID != "" {
		buffer.WriteString("id: ")
		buffer.WriteString(event.ID)
		buffer.WriteString("\n")
	}

	if len(event.Data) > 0 {
		for _, line := range strings.Split(string(event.Data), "\n") {
			buffer.WriteString("data: ")
			buffer.WriteString(line)
			buffer.WriteString("\n")
		}
	} else {
		buffer.WriteString("data: \n")
	}

	buffer.WriteString("\n")
	return buffer.Bytes()
}

// sseWriter streams JSON-RPC responses as server-sent events.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	id      json.RawMessage
	counter int
}

func newSSEWriter(w http.ResponseWriter, id json.RawMessage) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &sseWriter{w: w, rc: http.NewResponseController(w), id: id}
}

// send writes one event carrying result (or rpcErr) and flushes it.
func (s *sseWriter) send(result any, rpcErr *JSONRPCError) error {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: s.id, Result: result, Error: rpcErr}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode stream event: %w", err)
	}

	s.counter++
	event := &SSEEvent{ID: fmt.Sprintf("%d", s.counter), Data: data}
	if _, err := s.w.Write(SerializeSSEEvent(event)); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
