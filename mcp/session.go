// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRequestTimeout is used for outbound requests whose RequestOptions
// don't specify one and whose context carries no deadline.
const DefaultRequestTimeout = 30 * time.Second

// RequestHandlerFunc handles an inbound request and returns its result (or
// an error, surfaced to the peer as a JSON-RPC Error). Returning an
// *McpError preserves its code/data on the wire; any other error is
// reported as CodeInternalError.
type RequestHandlerFunc func(ctx context.Context, extra *RequestExtra, params json.RawMessage) (json.RawMessage, error)

// NotificationHandlerFunc handles an inbound notification. It has no
// result; an unregistered method is a silent no-op, never an error.
type NotificationHandlerFunc func(ctx context.Context, params json.RawMessage)

// ProgressFunc receives progress updates for one outbound request.
type ProgressFunc func(progress float64, total *float64)

// RequestExtra is passed to a RequestHandlerFunc alongside its decoded
// params. It carries everything about the inbound request that the
// handler needs beyond the params themselves: how to emit progress, and
// how to observe cancellation.
type RequestExtra struct {
	Method    string
	ID        RequestID
	SessionID string

	session       *Session
	progressToken any
}

// ReportProgress sends a notifications/progress carrying this request's
// progress token. It is a no-op (returns nil) if the inbound request
// didn't carry a progress token.
func (e *RequestExtra) ReportProgress(ctx context.Context, progress float64, total *float64) error {
	if e.progressToken == nil {
		return nil
	}
	params := map[string]any{"progressToken": e.progressToken, "progress": progress}
	if total != nil {
		params["total"] = *total
	}
	b, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return e.session.Notify(ctx, "notifications/progress", b)
}

// RequestOptions configures a single outbound Session.Request call.
type RequestOptions struct {
	// Timeout overrides DefaultRequestTimeout / the session default. Zero
	// means "use ctx's deadline if set, else the default."
	Timeout time.Duration
	// Cancel, when closed, cancels the request exactly as context
	// cancellation would: a notifications/cancelled is emitted, any late
	// response is dropped, and Request returns context.Canceled.
	Cancel <-chan struct{}
	// Progress, if non-nil, receives progress notifications correlated to
	// this request via an auto-minted progress token.
	Progress ProgressFunc
	// ResetTimeoutOnProgress restarts the request's deadline every time a
	// progress notification for it arrives, so a slow-but-alive operation
	// isn't killed by a fixed deadline.
	ResetTimeoutOnProgress bool
}

type pendingCall struct {
	done   chan struct{}
	once   sync.Once
	result json.RawMessage
	rpcErr *ErrorMessage
	local  error

	progress    ProgressFunc
	resetOnProg bool
	timeout     time.Duration
	timer       *time.Timer
	mu          sync.Mutex
}

func (p *pendingCall) resolveResult(r json.RawMessage) {
	p.once.Do(func() { p.result = r; close(p.done) })
}
func (p *pendingCall) resolveRPCErr(e *ErrorMessage) {
	p.once.Do(func() { p.rpcErr = e; close(p.done) })
}
func (p *pendingCall) resolveLocal(err error) {
	p.once.Do(func() { p.local = err; close(p.done) })
}

// Session is the symmetric JSON-RPC 2.0 peer described in spec.md §3-5: it
// multiplexes outbound requests, inbound requests, notifications,
// progress, and cancellation over a single Transport. It is intentionally
// agnostic of MCP method semantics and capability gating; those live in
// the capability layer built on top (see the server and client packages).
type Session struct {
	transport Transport

	connectOnce sync.Once
	connected   bool

	mu                   sync.Mutex
	closed               bool
	closedCh             chan struct{}
	pending              map[string]*pendingCall // outbound id key -> call
	progressWaiters      map[string]*pendingCall // progress token string -> call
	requestHandlers      map[string]RequestHandlerFunc
	notificationHandlers map[string]NotificationHandlerFunc
	inflightCancel       map[string]context.CancelFunc // inbound id key -> cancel
	onCloseHooks         []func()

	nextID atomic.Int64

	defaultTimeout time.Duration
}

// SessionOption configures a Session at construction.
type SessionOption func(*Session)

// WithDefaultTimeout overrides DefaultRequestTimeout for this session.
func WithDefaultTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.defaultTimeout = d }
}

// NewSession creates a Session bound to transport. Call Connect to start
// delivering and accepting messages.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport:            transport,
		closedCh:             make(chan struct{}),
		pending:              make(map[string]*pendingCall),
		progressWaiters:      make(map[string]*pendingCall),
		requestHandlers:      make(map[string]RequestHandlerFunc),
		notificationHandlers: make(map[string]NotificationHandlerFunc),
		inflightCancel:       make(map[string]context.CancelFunc),
		defaultTimeout:       DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TransportSessionID forwards the underlying transport's session id, or ""
// if the transport doesn't participate in a multi-session carrier. The
// client and server packages do not consult it: the client runs the
// initialize handshake whatever this returns.
func (s *Session) TransportSessionID() string { return s.transport.SessionID() }

// Connect wires the transport's callbacks and starts it. It performs no
// MCP-level handshake; that is the capability layer's job:
// client.Client.Connect calls Connect and then runs initialize, and
// server.Server.Connect calls Connect and answers the client's initialize
// request. A second call returns ErrAlreadyConnected.
func (s *Session) Connect(ctx context.Context) error {
	err := ErrAlreadyConnected
	s.connectOnce.Do(func() {
		s.connected = true
		err = s.transport.Start(s.onMessage, s.onTransportError, s.onTransportClose)
	})
	return err
}

// Closed returns a channel closed once the session has shut down.
func (s *Session) Closed() <-chan struct{} { return s.closedCh }

// Close cancels every pending awaiter with ErrConnectionClosed, clears the
// handler tables, closes the transport, and fires any registered close
// hooks. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.pending
	s.pending = make(map[string]*pendingCall)
	s.progressWaiters = make(map[string]*pendingCall)
	s.requestHandlers = make(map[string]RequestHandlerFunc)
	s.notificationHandlers = make(map[string]NotificationHandlerFunc)
	hooks := s.onCloseHooks
	s.mu.Unlock()

	for _, pc := range pending {
		pc.resolveLocal(ErrConnectionClosed)
	}
	err := s.transport.Close()
	close(s.closedCh)
	for _, h := range hooks {
		h()
	}
	return err
}

// OnClose registers a hook invoked once, after Close tears everything
// else down. Used by higher layers (e.g. the streamable HTTP transport's
// session table) to remove this session from their own bookkeeping.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCloseHooks = append(s.onCloseHooks, fn)
}

func (s *Session) onTransportError(err error) {
	// Non-fatal transport errors (e.g. one malformed line) are swallowed
	// here; callers that care can wrap the transport to log. A fatal error
	// is expected to be followed by onTransportClose.
	_ = err
}

func (s *Session) onTransportClose() {
	_ = s.Close()
}

func (s *Session) nextOutboundID() RequestID {
	return IntID(s.nextID.Add(1))
}

// SetRequestHandler registers the handler for an inbound request method,
// replacing any previous registration.
func (s *Session) SetRequestHandler(method string, h RequestHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestHandlers[method] = h
}

// SetNotificationHandler registers the handler for an inbound notification
// method, replacing any previous registration.
func (s *Session) SetNotificationHandler(method string, h NotificationHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationHandlers[method] = h
}

// Request sends an outbound request and blocks until it resolves: by
// response, by RPC error, by timeout, by cancellation (ctx.Done or
// opts.Cancel), or by connection close. Exactly one of these outcomes
// occurs, satisfying the invariant in spec.md §8.1.
func (s *Session) Request(ctx context.Context, method string, params json.RawMessage, opts *RequestOptions) (json.RawMessage, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	id := s.nextOutboundID()
	pc := &pendingCall{done: make(chan struct{}), progress: opts.Progress, resetOnProg: opts.ResetTimeoutOnProgress}
	s.pending[id.key()] = pc

	var progressToken string
	if opts.Progress != nil {
		progressToken = "pt-" + id.key()
		s.progressWaiters[progressToken] = pc
	}
	s.mu.Unlock()

	if progressToken != "" {
		meta := Meta{"progressToken": progressToken}
		var err error
		params, err = withMeta(params, meta)
		if err != nil {
			s.forgetPending(id.key(), progressToken)
			return nil, err
		}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			timeout = s.defaultTimeout
		}
	}
	if timeout > 0 {
		pc.timeout = timeout
		pc.timer = time.AfterFunc(timeout, func() {
			pc.resolveLocal(ErrRequestTimeout)
		})
	}

	if err := s.transport.Send(ctx, &Request{ID: id, Method: method, Params: params}, RequestID{}); err != nil {
		s.forgetPending(id.key(), progressToken)
		return nil, errInternal("send %s: %v", method, err)
	}

	select {
	case <-pc.done:
	case <-ctx.Done():
		pc.resolveLocal(ctx.Err())
	case <-opts.Cancel:
		pc.resolveLocal(context.Canceled)
	case <-s.closedCh:
		pc.resolveLocal(ErrConnectionClosed)
	}

	s.forgetPending(id.key(), progressToken)
	if pc.timer != nil {
		pc.timer.Stop()
	}

	pc.mu.Lock()
	result, rpcErr, local := pc.result, pc.rpcErr, pc.local
	pc.mu.Unlock()

	switch {
	case local != nil:
		if local == ErrRequestTimeout || local == context.DeadlineExceeded {
			s.sendCancelled(id, "timeout")
			return nil, ErrRequestTimeout
		}
		s.sendCancelled(id, "cancelled")
		return nil, local
	case rpcErr != nil:
		return nil, NewMcpError(rpcErr.Code, rpcErr.Msg, rpcErr.Data)
	default:
		return result, nil
	}
}

func (s *Session) forgetPending(idKey, progressToken string) {
	s.mu.Lock()
	delete(s.pending, idKey)
	if progressToken != "" {
		delete(s.progressWaiters, progressToken)
	}
	s.mu.Unlock()
}

func (s *Session) sendCancelled(id RequestID, reason string) {
	params, _ := json.Marshal(map[string]any{"requestId": id.Raw(), "reason": reason})
	// Best effort; the transport may already be closing.
	_ = s.Notify(context.Background(), "notifications/cancelled", params)
}

// Notify sends a fire-and-forget notification.
func (s *Session) Notify(ctx context.Context, method string, params json.RawMessage) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrConnectionClosed
	}
	s.mu.Unlock()
	return s.transport.Send(ctx, &Notification{Method: method, Params: params}, RequestID{})
}

// onMessage is the Transport callback wired in Connect; it dispatches
// every inbound message per spec.md §4.3.
func (s *Session) onMessage(msg Message) {
	switch m := msg.(type) {
	case *Response:
		s.completePending(m.ID, m.Result, nil)
	case *ErrorMessage:
		s.completePending(m.ID, nil, m)
	case *Notification:
		s.dispatchNotification(m)
	case *Request:
		go s.dispatchRequest(m)
	}
}

func (s *Session) completePending(id RequestID, result json.RawMessage, rpcErr *ErrorMessage) {
	s.mu.Lock()
	pc, ok := s.pending[id.key()]
	s.mu.Unlock()
	if !ok {
		// Late response for a cancelled/timed-out/unknown id: dropped, per
		// spec.md §4.3 cancellation semantics.
		return
	}
	if rpcErr != nil {
		pc.resolveRPCErr(rpcErr)
	} else {
		pc.resolveResult(result)
	}
}

func (s *Session) dispatchNotification(n *Notification) {
	switch n.Method {
	case "notifications/progress":
		s.handleProgressNotification(n.Params)
		return
	case "notifications/cancelled":
		s.handleCancelledNotification(n.Params)
		return
	}
	s.mu.Lock()
	h, ok := s.notificationHandlers[n.Method]
	s.mu.Unlock()
	if !ok {
		// Unknown notification method: dropped silently, never an error.
		return
	}
	h(context.Background(), n.Params)
}

func (s *Session) handleProgressNotification(params json.RawMessage) {
	var p struct {
		ProgressToken any     `json:"progressToken"`
		Progress      float64 `json:"progress"`
		Total         *float64 `json:"total,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	token, ok := p.ProgressToken.(string)
	if !ok {
		return
	}
	s.mu.Lock()
	pc, found := s.progressWaiters[token]
	s.mu.Unlock()
	if !found {
		return
	}
	if pc.resetOnProg && pc.timer != nil {
		pc.timer.Reset(pc.timeout)
	}
	if pc.progress != nil {
		pc.progress(p.Progress, p.Total)
	}
}

func (s *Session) handleCancelledNotification(params json.RawMessage) {
	var p struct {
		RequestID any    `json:"requestId"`
		Reason    string `json:"reason,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	var key string
	switch v := p.RequestID.(type) {
	case string:
		key = StringID(v).key()
	case float64:
		key = IntID(int64(v)).key()
	default:
		return
	}
	s.mu.Lock()
	cancel, ok := s.inflightCancel[key]
	s.mu.Unlock()
	if ok {
		cancel() // idempotent; safe even if already cancelled/completed.
	}
}

func (s *Session) dispatchRequest(req *Request) {
	s.mu.Lock()
	h, ok := s.requestHandlers[req.Method]
	s.mu.Unlock()
	if !ok {
		s.replyError(req.ID, errMethodNotFound(req.Method))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	key := req.ID.key()
	s.mu.Lock()
	s.inflightCancel[key] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.inflightCancel, key)
		s.mu.Unlock()
	}()

	meta := req.Meta()
	token, _ := meta.ProgressToken()
	extra := &RequestExtra{Method: req.Method, ID: req.ID, SessionID: s.transport.SessionID(), session: s, progressToken: token}

	result, err := h(ctx, extra, req.Params)
	if err != nil {
		var me *McpError
		if e, ok := err.(*McpError); ok {
			me = e
		} else {
			me = errInternal("%v", err)
		}
		s.replyError(req.ID, me)
		return
	}
	if err := s.transport.Send(context.Background(), &Response{ID: req.ID, Result: result}, req.ID); err != nil {
		s.onTransportError(fmt.Errorf("send response for %s: %w", req.Method, err))
	}
}

func (s *Session) replyError(id RequestID, e *McpError) {
	_ = s.transport.Send(context.Background(), &ErrorMessage{ID: id, Code: e.Code, Msg: e.Msg, Data: e.Data}, id)
}
