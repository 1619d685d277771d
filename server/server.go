// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server implements the high-level MCP server (C5): typed
// tool/resource/prompt registries layered over the transport-agnostic
// protocol engine in package mcp, plus the capability-gated initialize
// handshake and the task-augmented tools/call branch described in
// spec.md §4.5 and §4.7.
//
// Grounded on golang-tools/internal/mcp/server.go's Server/ServerSession
// split and its featureSet-backed registries, adapted from that package's
// generics-and-reflection style to the plain json.RawMessage handlers this
// module's protocol engine (mcp.Session) uses.
package server

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/mcp"
	"github.com/relaymcp/mcp-go/tasks"
)

// DefaultPageSize is used for list methods when Options.PageSize is zero.
const DefaultPageSize = 1000

// Options configures a Server at construction.
type Options struct {
	// Instructions are returned to the client in InitializeResult, e.g. a
	// human-readable usage note.
	Instructions string
	// PageSize bounds a single list response. Zero means DefaultPageSize.
	PageSize int
	// Enforcement controls what happens when an outbound request/notification
	// would violate the client's negotiated capabilities: Strict refuses it
	// (returning an McpError{invalidRequest}), Warn logs and proceeds anyway.
	Enforcement mcp.EnforcementMode
	// Capabilities seeds the server's static capability flags (logging,
	// completions). Tools/resources/prompts capabilities are derived
	// automatically from registered features.
	Capabilities mcp.ServerCapabilities
	// TaskReaperSchedule, if set, starts a cron-scheduled TTL sweep over the
	// task store (e.g. "@every 1m"). Empty disables the reaper.
	TaskReaperSchedule string
}

func (o Options) pageSize() int {
	if o.PageSize <= 0 {
		return DefaultPageSize
	}
	return o.PageSize
}

// Server holds the feature registries shared by every session connected to
// it. A single Server can serve many concurrent ServerSessions (e.g. one
// per streamable HTTP session).
type Server struct {
	name, version string
	opts          Options

	mu                sync.Mutex
	tools             *featureSet[*ServerTool]
	resources         *featureSet[*ServerResource]
	resourceTemplates *featureSet[*ServerResourceTemplate]
	prompts           *featureSet[*ServerPrompt]
	sessions          []*ServerSession
	subscriptions     *resourceSubscriptions

	taskStore *tasks.Store
}

// NewServer creates a Server with no registered features. Add features with
// AddTools/AddResources/AddResourceTemplates/AddPrompts before or after
// connecting sessions.
func NewServer(name, version string, opts *Options) *Server {
	if opts == nil {
		opts = &Options{}
	}
	s := &Server{
		name:              name,
		version:           version,
		opts:              *opts,
		tools:             newFeatureSet(func(t *ServerTool) string { return t.Tool.Name }),
		resources:         newFeatureSet(func(r *ServerResource) string { return r.Resource.URI }),
		resourceTemplates: newFeatureSet(func(t *ServerResourceTemplate) string { return t.Template.URITemplate }),
		prompts:           newFeatureSet(func(p *ServerPrompt) string { return p.Prompt.Name }),
		taskStore:         tasks.NewStore(),
	}
	if opts.TaskReaperSchedule != "" {
		if err := s.taskStore.StartReaper(opts.TaskReaperSchedule); err != nil {
			obs.Log().Error("server: task reaper not started", "error", err)
		}
	}
	return s
}

// Close stops the server's task reaper. It does not close connected
// sessions; call ServerSession.Close for those.
func (s *Server) Close() { s.taskStore.Stop() }

func (s *Server) capabilities() mcp.ServerCapabilities {
	caps := s.opts.Capabilities
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tools.len() > 0 {
		caps.Tools = &mcp.ToolsCapability{ListChanged: true}
	}
	if s.resources.len() > 0 || s.resourceTemplates.len() > 0 {
		caps.Resources = &mcp.ResourcesCapability{ListChanged: true}
	}
	if s.prompts.len() > 0 {
		caps.Prompts = &mcp.PromptsCapability{ListChanged: true}
	}
	caps.Tasks = &mcp.ServerTasksCapability{ListChanged: true}
	return caps
}

// changeAndNotify runs change under the server lock and, if it reports a
// change, notifies every connected session's list_changed method (when
// enabled by that peer's capabilities).
func (s *Server) changeAndNotify(notification string, change func() bool) {
	var sessions []*ServerSession
	s.mu.Lock()
	if change() {
		sessions = slices.Clone(s.sessions)
	}
	s.mu.Unlock()
	for _, ss := range sessions {
		ss.notifyIfAble(notification, json.RawMessage("{}"))
	}
}

func (s *Server) removeSession(ss *ServerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = slices.DeleteFunc(s.sessions, func(x *ServerSession) bool { return x == ss })
}

// ServerSession is one connected client's logical session: the protocol
// engine bound to its transport, plus the negotiated capabilities and
// initialization state gating what this server may send it.
type ServerSession struct {
	server  *Server
	session *mcp.Session
	id      string

	mu           sync.Mutex
	clientCaps   mcp.ClientCapabilities
	initialized  bool
	protoVersion string
	minLogLevel  mcp.LoggingLevel
}

// Connect binds a new ServerSession to transport and starts the protocol
// engine. The initialize handshake is driven by the client's first request;
// this call returns as soon as the transport is wired, not after handshake
// completion.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport, opts ...mcp.SessionOption) (*ServerSession, error) {
	sess := mcp.NewSession(transport, opts...)
	ss := &ServerSession{server: s, session: sess, id: transport.SessionID()}
	ss.installHandlers()
	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sessions = append(s.sessions, ss)
	s.mu.Unlock()
	sess.OnClose(func() { s.removeSession(ss) })
	return ss, nil
}

// Close tears down the underlying protocol engine and transport.
func (ss *ServerSession) Close() error { return ss.session.Close() }

// Wait blocks until the session closes.
func (ss *ServerSession) Wait() { <-ss.session.Closed() }

// ID returns the session's transport-assigned id, if any.
func (ss *ServerSession) ID() string { return ss.id }

func (ss *ServerSession) installHandlers() {
	sess := ss.session
	sess.SetRequestHandler(mcp.MethodInitialize, ss.handleInitialize)
	sess.SetRequestHandler(mcp.MethodPing, func(context.Context, *mcp.RequestExtra, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage("{}"), nil
	})
	sess.SetNotificationHandler(mcp.NotificationInitialized, func(ctx context.Context, _ json.RawMessage) {
		ss.mu.Lock()
		ss.initialized = true
		ss.mu.Unlock()
	})

	sess.SetRequestHandler(mcp.MethodToolsList, ss.handleListTools)
	sess.SetRequestHandler(mcp.MethodToolsCall, ss.handleCallTool)

	sess.SetRequestHandler(mcp.MethodResourcesList, ss.handleListResources)
	sess.SetRequestHandler(mcp.MethodResourcesTemplatesList, ss.handleListResourceTemplates)
	sess.SetRequestHandler(mcp.MethodResourcesRead, ss.handleReadResource)
	sess.SetRequestHandler(mcp.MethodResourcesSubscribe, ss.handleSubscribeResource)
	sess.SetRequestHandler(mcp.MethodResourcesUnsubscribe, ss.handleUnsubscribeResource)

	sess.SetRequestHandler(mcp.MethodPromptsList, ss.handleListPrompts)
	sess.SetRequestHandler(mcp.MethodPromptsGet, ss.handleGetPrompt)

	sess.SetRequestHandler(mcp.MethodCompletionComplete, ss.handleComplete)
	sess.SetRequestHandler(mcp.MethodLoggingSetLevel, ss.handleSetLevel)

	sess.SetRequestHandler(mcp.MethodTasksList, ss.handleTasksList)
	sess.SetRequestHandler(mcp.MethodTasksGet, ss.handleTasksGet)
	sess.SetRequestHandler(mcp.MethodTasksCancel, ss.handleTasksCancel)
	sess.SetRequestHandler(mcp.MethodTasksResult, ss.handleTasksResult)
}

func (ss *ServerSession) handleInitialize(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p mcp.InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	ss.mu.Lock()
	ss.clientCaps = p.Capabilities
	ss.protoVersion = p.ProtocolVersion
	ss.mu.Unlock()

	result := mcp.InitializeResult{
		ProtocolVersion: p.ProtocolVersion,
		Capabilities:    ss.server.capabilities(),
		ServerInfo:      mcp.Implementation{Name: ss.server.name, Version: ss.server.version},
		Instructions:    ss.server.opts.Instructions,
	}
	if result.ProtocolVersion == "" {
		result.ProtocolVersion = mcp.LatestProtocolVersion
	}
	return json.Marshal(result)
}

// notifyIfAble sends a notification to the client, honoring the negotiated
// enforcement mode: in Strict mode (the default) a notification the peer
// didn't advertise support for is silently dropped rather than sent; in
// Warn mode it's sent anyway, with a log line.
func (ss *ServerSession) notifyIfAble(method string, params json.RawMessage) {
	ss.mu.Lock()
	caps := ss.clientCaps
	ss.mu.Unlock()
	if !mcp.ClientCanReceive(method, caps) {
		if ss.server.opts.Enforcement != mcp.Warn {
			return
		}
		obs.Log().Warn("server: sending notification peer didn't advertise", "method", method)
	}
	if err := ss.session.Notify(context.Background(), method, params); err != nil {
		obs.Log().Debug("server: notify failed", "method", method, "error", err)
	}
}

// Request issues a server→client request, gated by the client's negotiated
// capabilities per spec.md §4.4.
func (ss *ServerSession) Request(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	ss.mu.Lock()
	caps := ss.clientCaps
	ss.mu.Unlock()
	if !mcp.ClientCanReceive(method, caps) {
		if ss.server.opts.Enforcement != mcp.Warn {
			return nil, mcp.NewCapabilityError(method, mcp.CapabilityName(method))
		}
		obs.Log().Warn("server: sending request peer didn't advertise", "method", method)
	}
	return ss.session.Request(ctx, method, params, nil)
}

// NotifyTaskStatus implements tasks.Notifier: it emits
// notifications/tasks/status whenever a task this session owns changes
// status.
func (ss *ServerSession) NotifyTaskStatus(taskID string, status mcp.TaskStatus) {
	payload, _ := json.Marshal(map[string]any{"taskId": taskID, "status": status})
	ss.notifyIfAble(mcp.NotificationTasksStatus, payload)
}

var _ tasks.Notifier = (*ServerSession)(nil)
var _ tasks.Sender = (*ServerSession)(nil)
