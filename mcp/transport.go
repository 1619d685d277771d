// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Transport is a duplex carrier of whole Messages; framing is the
// transport's problem, not the engine's. Implementations include the
// streamable HTTP transport (package streamable), a newline-delimited JSON
// transport over stdio or any byte stream (NewLineTransport, below), and
// the in-memory pipe below, used for tests.
//
// Start may be called at most once. Send preserves order on the wire for
// any single Transport instance; the engine is responsible for serializing
// concurrent callers of Send. Close releases resources and is safe to call
// more than once; only the first call has effect.
type Transport interface {
	// Start begins delivering inbound messages to onMessage, on the
	// transport's own goroutine(s), until Close or a fatal transport error.
	// onError and onClose are invoked at most once each.
	Start(onMessage func(Message), onError func(error), onClose func()) error

	// Send enqueues an outbound message. It returns once the message has
	// been handed to the underlying carrier (e.g. written to the socket),
	// not once the peer has observed it. relatedRequestID, when valid,
	// lets transports that multiplex multiple logical streams (such as the
	// streamable HTTP transport) route the message onto the stream that
	// originated the request it answers; transports that don't multiplex
	// may ignore it.
	Send(ctx context.Context, msg Message, relatedRequestID RequestID) error

	// Close releases transport resources. Safe to call more than once.
	Close() error

	// SessionID returns a stable opaque identifier when this transport
	// participates in a multi-session carrier (e.g. streamable HTTP, where
	// the session was already negotiated by an earlier HTTP exchange). An
	// empty string means "no pre-existing session; the engine must perform
	// the initialize handshake."
	SessionID() string
}

// pipeTransport is an in-memory Transport connecting two endpoints
// directly, with no framing or network involved. It is used by tests and
// by in-process client/server pairs (see mcptest).
type pipeTransport struct {
	out chan Message

	mu        sync.Mutex
	peer      *pipeTransport
	closed    bool
	onMessage func(Message)
	onClose   func()
}

// Pipe returns two Transports wired directly to each other: messages sent
// on one are delivered to the other's onMessage callback. Closing either
// side closes both.
func Pipe() (a, b Transport) {
	ta := &pipeTransport{out: make(chan Message, 64)}
	tb := &pipeTransport{out: make(chan Message, 64)}
	ta.peer, tb.peer = tb, ta
	return ta, tb
}

func (t *pipeTransport) Start(onMessage func(Message), onError func(error), onClose func()) error {
	t.mu.Lock()
	t.onMessage = onMessage
	t.onClose = onClose
	t.mu.Unlock()
	go func() {
		for msg := range t.out {
			t.mu.Lock()
			cb := t.onMessage
			t.mu.Unlock()
			if cb != nil {
				cb(msg)
			}
		}
		t.mu.Lock()
		closeCB := t.onClose
		t.mu.Unlock()
		if closeCB != nil {
			closeCB()
		}
	}()
	return nil
}

func (t *pipeTransport) Send(ctx context.Context, msg Message, _ RequestID) error {
	t.mu.Lock()
	peer := t.peer
	closed := t.closed
	t.mu.Unlock()
	if closed || peer == nil {
		return errors.New("mcp: pipe transport closed")
	}
	select {
	case peer.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *pipeTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.out)
	peer := t.peer
	t.mu.Unlock()
	if peer != nil {
		peer.Close()
	}
	return nil
}

func (t *pipeTransport) SessionID() string { return "" }

// lineTransport is a minimal newline-delimited-JSON Transport over an
// io.Reader/io.Writer pair, grounded on the stdio framing idiom of
// dominicnunez-codex-sdk-go's StdioTransport. Production stdio framing
// (process lifecycle, partial-write recovery) is an external concern per
// spec.md §1; this is the ambient minimum needed to run the example
// binaries over a pipe or process stdio.
type lineTransport struct {
	r io.Reader
	w io.Writer

	writeMu sync.Mutex
}

// NewLineTransport wraps r/w as a whole-message, newline-delimited JSON
// Transport.
func NewLineTransport(r io.Reader, w io.Writer) Transport {
	return &lineTransport{r: r, w: w}
}
