// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package streamable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/mcp"
	"github.com/relaymcp/mcp-go/server"
)

const sessionHeader = "Mcp-Session-Id"

// session bundles one streamable-HTTP client's server-side state.
type session struct {
	transport *serverTransport
	ss        *server.ServerSession
	limiter   *rate.Limiter
}

// Handler is the Streamable HTTP transport's single HTTP endpoint
// (spec.md §4.8): POST delivers JSON-RPC batches, GET opens a resumable
// SSE stream, DELETE ends a session. One Handler serves an entire
// server.Server; each connecting client gets its own session keyed by
// Mcp-Session-Id.
//
// Grounded on golang-tools/internal/mcp/streamable.go's
// StreamableHTTPHandler (Accept-header negotiation, method dispatch,
// session lookup) adapted to route via chi, this module's package
// server, and the internal/obs metrics already reserved for it.
type Handler struct {
	srv *server.Server

	// RatePerSecond and Burst configure the per-session token-bucket
	// limiter applied to inbound POSTs; zero RatePerSecond disables
	// limiting.
	RatePerSecond float64
	Burst         int

	mu       sync.Mutex
	sessions map[string]*session
}

// NewHandler returns a Handler serving srv.
func NewHandler(srv *server.Server) *Handler {
	return &Handler{srv: srv, sessions: make(map[string]*session)}
}

// Routes mounts the handler's three methods on a fresh chi.Router, ready
// to be mounted into a larger mux (e.g. alongside /metrics).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(obs.HTTPMiddleware)
	r.Options("/", h.handleOptions)
	r.Post("/", h.handlePost)
	r.Get("/", h.handleGet)
	r.Delete("/", h.handleDelete)
	return r
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "OPTIONS, POST, GET, DELETE")
	w.WriteHeader(http.StatusNoContent)
}

// lookupSession returns the session named by the Mcp-Session-Id header,
// or nil if absent/unknown.
func (h *Handler) lookupSession(r *http.Request) *session {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}

// newSession mints a session, connects a *server.ServerSession to a fresh
// serverTransport, and registers both under a new Mcp-Session-Id.
func (h *Handler) newSession(ctx context.Context) (*session, error) {
	id := uuid.NewString()
	t := newServerTransport(id)
	ss, err := h.srv.Connect(ctx, t)
	if err != nil {
		return nil, err
	}
	sess := &session{transport: t, ss: ss}
	if h.RatePerSecond > 0 {
		sess.limiter = rate.NewLimiter(rate.Limit(h.RatePerSecond), h.Burst)
	}
	h.mu.Lock()
	h.sessions[id] = sess
	h.mu.Unlock()

	// Deregister on session close, however it was triggered: DELETE or
	// a transport-level error or close.
	go func() {
		ss.Wait()
		h.removeSession(id)
	}()
	return sess, nil
}

func (h *Handler) removeSession(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
}

// handlePost accepts one JSON-RPC message or a batch array, feeds each
// into the session's transport, and streams back an SSE response carrying
// every reply the batch's requests provoke (responses, and any
// server-initiated nested requests/notifications issued while handling
// them), closing once every request in the batch has been answered.
// A batch containing no requests (notifications/responses only) gets a
// bare 202 Accepted, per the streamable transport's "no content expected"
// case.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, msgs, err := readBatch(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := h.lookupSession(r)
	if sess == nil {
		if !bodyLooksLikeInitialize(msgs) {
			http.Error(w, "missing or unknown "+sessionHeader, http.StatusBadRequest)
			return
		}
		sess, err = h.newSession(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if sess.limiter != nil && !sess.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	streamID := sess.transport.newStreamID()
	pendingIDs := make(map[string]bool)
	for _, m := range msgs {
		if id, ok := m["id"]; ok {
			if _, isReq := m["method"]; isReq {
				pendingIDs[string(id)] = true
			}
		}
	}

	for _, raw := range body {
		if err := sess.transport.deliverInbound(streamID, raw); err != nil {
			obs.WarnContext(r.Context(), "streamable: dropping malformed inbound message", "error", err)
		}
	}

	w.Header().Set(sessionHeader, sess.transport.SessionID())

	if len(pendingIDs) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	h.streamUntilAnswered(r.Context(), w, sess, streamID, pendingIDs, 0)
	sess.transport.store.dropStream(streamID)
}

// handleGet opens the session's standalone SSE stream, the channel for
// server-initiated requests and notifications not tied to any particular
// POST, honoring Last-Event-ID for resumption after a dropped connection.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(r)
	if sess == nil {
		http.Error(w, "missing or unknown "+sessionHeader, http.StatusBadRequest)
		return
	}
	after := int64(-1)
	streamID := standaloneStream
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if sid, idx, ok := parseEventID(last); ok {
			streamID = sid
			after = idx
			obs.StreamResumptionsTotal.Inc()
		}
	}
	h.streamForever(r.Context(), w, sess, streamID, after)
}

// handleDelete ends a session: closes its server.ServerSession (which
// closes the underlying transport and fires its OnClose hook) and
// forgets it.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(r)
	if sess == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	id := sess.transport.SessionID()
	_ = sess.ss.Close()
	h.removeSession(id)
	w.WriteHeader(http.StatusNoContent)
}

// streamUntilAnswered writes SSE events for streamID as they arrive,
// stopping once every id in pendingIDs has seen a response/error event,
// or the request context is done.
func (h *Handler) streamUntilAnswered(ctx context.Context, w http.ResponseWriter, sess *session, streamID string, pendingIDs map[string]bool, after int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streamable: response writer doesn't support flushing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	remaining := len(pendingIDs)
	for {
		evs := sess.transport.store.since(streamID, after)
		for _, e := range evs {
			after = e.index
			writeSSE(w, formatEventID(streamID, e.index), e.data)
			if id, done := answeredID(e.data); done {
				if pendingIDs[id] {
					delete(pendingIDs, id)
					remaining--
				}
			}
		}
		flusher.Flush()
		if remaining <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-sess.transport.wake.wait():
		case <-time.After(30 * time.Second):
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
		if sess.transport.isClosed() {
			return
		}
	}
}

// streamForever writes SSE events for streamID until the client
// disconnects or the session closes; used for the standalone GET stream,
// which has no natural end.
func (h *Handler) streamForever(ctx context.Context, w http.ResponseWriter, sess *session, streamID string, after int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streamable: response writer doesn't support flushing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		evs := sess.transport.store.since(streamID, after)
		for _, e := range evs {
			after = e.index
			writeSSE(w, formatEventID(streamID, e.index), e.data)
		}
		if len(evs) > 0 {
			flusher.Flush()
		}
		if sess.transport.isClosed() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-sess.transport.wake.wait():
		case <-time.After(30 * time.Second):
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, id string, data []byte) {
	fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", id, data)
}

// answeredID reports the request id a Response/Error event answers, if
// it is one.
func answeredID(data []byte) (string, bool) {
	var env struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", false
	}
	if env.Method != "" || env.ID == nil {
		return "", false
	}
	if env.Result == nil && env.Error == nil {
		return "", false
	}
	return string(env.ID), true
}

// readBatch reads the HTTP body as either a single JSON-RPC message or a
// JSON array of messages, returning each element's raw bytes alongside a
// generic field map used only to detect request ids/methods (avoiding a
// second, fully-typed parse here; deliverInbound does the real
// mcp.ParseMessage).
func readBatch(r *http.Request) ([][]byte, []map[string]json.RawMessage, error) {
	defer r.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("streamable: decode body: %w", err)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		arr = []json.RawMessage{raw}
	}
	body := make([][]byte, len(arr))
	fields := make([]map[string]json.RawMessage, len(arr))
	for i, m := range arr {
		body[i] = []byte(m)
		var f map[string]json.RawMessage
		if err := json.Unmarshal(m, &f); err != nil {
			return nil, nil, fmt.Errorf("streamable: message %d is not a JSON object: %w", i, err)
		}
		fields[i] = f
	}
	return body, fields, nil
}

func bodyLooksLikeInitialize(msgs []map[string]json.RawMessage) bool {
	for _, m := range msgs {
		if method, ok := m["method"]; ok {
			var s string
			if json.Unmarshal(method, &s) == nil && s == mcp.MethodInitialize {
				return true
			}
		}
	}
	return false
}
