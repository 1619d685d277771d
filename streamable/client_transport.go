// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package streamable

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/relaymcp/mcp-go/mcp"
)

// ClientTransport is an mcp.Transport that speaks to a Handler over plain
// net/http: every Send POSTs one message and either reads a single JSON
// reply inline or streams an SSE response in the background, depending on
// the Content-Type the server answers with. It is the client half of
// package streamable's C8 transport, used by cmd/mcp-example-client and
// by any client package consumer that wants to reach a streamable HTTP
// server instead of mcptest's in-memory pipe.
type ClientTransport struct {
	url string
	hc  *http.Client

	mu        sync.Mutex
	sessionID string
	onMessage func(mcp.Message)
	onError   func(error)
	onClose   func()
	closed    bool
}

// NewClientTransport returns a ClientTransport targeting url (the
// Handler's mount point, e.g. "http://localhost:8765/mcp").
func NewClientTransport(url string, hc *http.Client) *ClientTransport {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &ClientTransport{url: url, hc: hc}
}

func (t *ClientTransport) Start(onMessage func(mcp.Message), onError func(error), onClose func()) error {
	t.mu.Lock()
	t.onMessage, t.onError, t.onClose = onMessage, onError, onClose
	t.mu.Unlock()
	return nil
}

// Send POSTs msg to the server. relatedRequestID is unused: this
// transport carries exactly one logical session per process, and which
// physical stream answers a request is the server's concern, not the
// client's.
func (t *ClientTransport) Send(ctx context.Context, msg mcp.Message, _ mcp.RequestID) error {
	data, err := mcp.EncodeMessage(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	sid := t.sessionID
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sid != "" {
		req.Header.Set(sessionHeader, sid)
	}

	resp, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("streamable: post: %w", err)
	}

	if newSID := resp.Header.Get(sessionHeader); newSID != "" {
		t.mu.Lock()
		t.sessionID = newSID
		t.mu.Unlock()
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("streamable: server returned %s: %s", resp.Status, body)
	}

	if resp.StatusCode == http.StatusAccepted {
		resp.Body.Close()
		return nil
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "text/event-stream") {
		go t.readSSE(resp.Body)
		return nil
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if parsed, err := mcp.ParseMessage(body); err == nil {
		t.deliver(parsed)
	}
	return nil
}

// readSSE reads one SSE response body to completion, parsing each
// "data:" payload as a JSON-RPC message and delivering it to onMessage.
// The server closes the body once it has nothing further to send for
// this request (see Handler.streamUntilAnswered).
func (t *ClientTransport) readSSE(body io.ReadCloser) {
	defer body.Close()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				if msg, err := mcp.ParseMessage(data.Bytes()); err == nil {
					t.deliver(msg)
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(line, "data:"))
		}
	}
}

func (t *ClientTransport) deliver(msg mcp.Message) {
	t.mu.Lock()
	cb := t.onMessage
	closed := t.closed
	t.mu.Unlock()
	if !closed && cb != nil {
		cb(msg)
	}
}

// Listen opens the standalone GET stream for server-initiated requests
// and notifications that don't answer any particular Send. It blocks
// until ctx is done or the connection drops, and should be run on its
// own goroutine once the session id is known (i.e. after the first
// Send, typically the initialize request, returns).
func (t *ClientTransport) Listen(ctx context.Context) error {
	t.mu.Lock()
	sid := t.sessionID
	t.mu.Unlock()
	if sid == "" {
		return fmt.Errorf("streamable: Listen called before a session id was assigned")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(sessionHeader, sid)
	resp, err := t.hc.Do(req)
	if err != nil {
		return err
	}
	t.readSSE(resp.Body)
	return nil
}

// Close issues a DELETE to end the session server-side and marks this
// transport closed so pending readSSE goroutines stop delivering.
func (t *ClientTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sid := t.sessionID
	cb := t.onClose
	t.mu.Unlock()

	if sid != "" {
		req, err := http.NewRequest(http.MethodDelete, t.url, nil)
		if err == nil {
			req.Header.Set(sessionHeader, sid)
			if resp, err := t.hc.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}
	if cb != nil {
		cb()
	}
	return nil
}

func (t *ClientTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}
