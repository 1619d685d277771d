// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package streamable

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/mcp"
)

// standaloneStream is the fixed logical stream id carrying messages that
// don't answer any particular inbound request: server-initiated requests
// and notifications. It is served by a client's standalone GET, per
// spec.md §4.8.
const standaloneStream = "standalone"

// serverTransport implements mcp.Transport on top of one HTTP session's
// worth of POST/GET exchanges. It never touches net/http directly; Handler
// feeds it inbound bytes and drains its outbound events, so this type is
// testable without spinning up a server.
//
// Grounded on golang-tools/internal/mcp/streamable.go's
// StreamableServerTransport: outgoing messages are appended to a
// per-logical-stream event log rather than written straight to a socket,
// so any stream can be replayed from a Last-Event-ID on reconnect.
type serverTransport struct {
	sessionID string
	store     *eventStore
	wake      *broadcaster

	nextStream atomic.Int64

	mu           sync.Mutex
	closed       bool
	onMessage    func(mcp.Message)
	onError      func(error)
	onClose      func()
	requestOwner map[string]string // request id key -> owning stream id
}

func newServerTransport(sessionID string) *serverTransport {
	return &serverTransport{
		sessionID:    sessionID,
		store:        newEventStore(),
		wake:         newBroadcaster(),
		requestOwner: make(map[string]string),
	}
}

// Start records the engine's callbacks. Inbound delivery happens out of
// band, via deliverInbound, driven by Handler's POST processing — there is
// no transport-owned read loop.
func (t *serverTransport) Start(onMessage func(mcp.Message), onError func(error), onClose func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = onMessage
	t.onError = onError
	t.onClose = onClose
	return nil
}

// Send appends msg to the event store under the stream that should carry
// it: a Response/Error goes to the stream whose request it answers; an
// outbound Request or Notification goes to relatedRequestID's stream if
// given, else to the standalone stream.
func (t *serverTransport) Send(ctx context.Context, msg mcp.Message, relatedRequestID mcp.RequestID) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("streamable: transport closed")
	}
	streamID := t.resolveStream(msg, relatedRequestID)
	t.mu.Unlock()

	data, err := mcp.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("streamable: encode: %w", err)
	}
	t.store.append(streamID, data)
	obs.StreamEventsTotal.WithLabelValues(streamKindLabel(streamID)).Inc()
	t.wake.broadcast()
	return nil
}

func streamKindLabel(streamID string) string {
	if streamID == standaloneStream {
		return "standalone"
	}
	return "request"
}

// resolveStream must be called with t.mu held.
func (t *serverTransport) resolveStream(msg mcp.Message, relatedRequestID mcp.RequestID) string {
	switch m := msg.(type) {
	case *mcp.Response:
		if sid, ok := t.requestOwner[idKey(m.ID)]; ok {
			return sid
		}
	case *mcp.ErrorMessage:
		if sid, ok := t.requestOwner[idKey(m.ID)]; ok {
			return sid
		}
	default:
		if relatedRequestID.IsValid() {
			if sid, ok := t.requestOwner[idKey(relatedRequestID)]; ok {
				return sid
			}
		}
	}
	return standaloneStream
}

// Close marks the transport closed, wakes every blocked SSE reader so it
// can observe closure, and invokes the engine's onClose exactly once.
func (t *serverTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cb := t.onClose
	t.mu.Unlock()
	t.wake.broadcast()
	if cb != nil {
		cb()
	}
	return nil
}

func (t *serverTransport) SessionID() string { return t.sessionID }

// newStreamID mints a fresh id for one POST's worth of inbound requests.
func (t *serverTransport) newStreamID() string {
	return fmt.Sprintf("req%d", t.nextStream.Add(1))
}

// deliverInbound parses one JSON-RPC message and hands it to the engine,
// recording streamID as the owner of its request id (if it has one) so
// that Send can route the eventual response back to the same stream.
func (t *serverTransport) deliverInbound(streamID string, data []byte) error {
	msg, err := mcp.ParseMessage(data)
	if err != nil {
		return err
	}
	if req, ok := msg.(*mcp.Request); ok {
		t.mu.Lock()
		t.requestOwner[idKey(req.ID)] = streamID
		cb := t.onMessage
		t.mu.Unlock()
		if cb != nil {
			cb(msg)
		}
		return nil
	}
	t.mu.Lock()
	cb := t.onMessage
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("streamable: transport closed")
	}
	if cb != nil {
		cb(msg)
	}
	return nil
}

// isClosed reports whether Close has run.
func (t *serverTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// idKey mirrors mcp.RequestID's internal map-key shape closely enough for
// our own bookkeeping: distinct for string vs. numeric ids, stable across
// a round trip through JSON.
func idKey(id mcp.RequestID) string {
	switch v := id.Raw().(type) {
	case string:
		return "s:" + v
	case int64:
		return fmt.Sprintf("n:%d", v)
	default:
		return "n:?"
	}
}
