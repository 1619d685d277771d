// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package client implements the high-level MCP client (C6): the
// initialize handshake, capability-gated reverse-request handlers
// (sampling, roots, elicitation), and thin typed wrappers over the
// client→server methods, per spec.md §4.6.
//
// Grounded on golang-tools/internal/mcp/client.go's Client/ClientSession
// split, adapted to this module's plain json.RawMessage protocol engine.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/internal/validate"
	"github.com/relaymcp/mcp-go/mcp"
)

// SamplingHandler answers a server-initiated sampling/createMessage
// request.
type SamplingHandler func(ctx context.Context, params mcp.CreateMessageParams) (*mcp.CreateMessageResult, error)

// RootsHandler answers a server-initiated roots/list request.
type RootsHandler func(ctx context.Context) ([]mcp.Root, error)

// ElicitationHandler answers a server-initiated elicitation/create
// request. In form mode, the handler's returned content is the
// caller-supplied values; per spec.md §4.6 the client package applies the
// requested schema's defaults to the returned content before relaying it
// on, when the handler leaves a field unset.
type ElicitationHandler func(ctx context.Context, params mcp.ElicitParams) (*mcp.ElicitResult, error)

// TaskStatusHandler observes a notifications/tasks/status notification.
type TaskStatusHandler func(ctx context.Context, taskID string, status mcp.TaskStatus)

// Options configures a Client at construction.
type Options struct {
	Capabilities       mcp.ClientCapabilities
	Enforcement        mcp.EnforcementMode
	SamplingHandler    SamplingHandler
	RootsHandler       RootsHandler
	ElicitationHandler ElicitationHandler
	TaskStatusHandler  TaskStatusHandler
}

// Client mints ClientSessions against one or more servers, sharing the
// same reverse-request handlers and capability set.
type Client struct {
	name, version string
	opts          Options
}

// NewClient creates a Client. name/version identify this client in the
// initialize handshake's clientInfo.
func NewClient(name, version string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	return &Client{name: name, version: version, opts: *opts}
}

// ClientSession is one connection to an MCP server: the protocol engine,
// the negotiated server capabilities, and the listTools cache spec.md
// §4.6 describes (output schemas, required-task tool names).
type ClientSession struct {
	client  *Client
	session *mcp.Session

	mu         sync.Mutex
	serverCaps mcp.ServerCapabilities
	toolCache  map[string]toolCacheEntry
}

type toolCacheEntry struct {
	outputSchema *validate.Schema
	requiredTask bool
}

// Connect wires a ClientSession to transport, starts the protocol engine,
// and drives the initialize handshake to completion before returning.
func (c *Client) Connect(ctx context.Context, transport mcp.Transport, opts ...mcp.SessionOption) (*ClientSession, error) {
	sess := mcp.NewSession(transport, opts...)
	cs := &ClientSession{client: c, session: sess, toolCache: make(map[string]toolCacheEntry)}
	cs.installHandlers()
	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}

	params := mcp.InitializeParams{
		ProtocolVersion: mcp.LatestProtocolVersion,
		Capabilities:    c.opts.Capabilities,
		ClientInfo:      mcp.Implementation{Name: c.name, Version: c.version},
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	result, err := sess.Request(ctx, mcp.MethodInitialize, raw, nil)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("client: initialize: %w", err)
	}
	var initResult mcp.InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		sess.Close()
		return nil, fmt.Errorf("client: initialize: decode result: %w", err)
	}
	cs.mu.Lock()
	cs.serverCaps = initResult.Capabilities
	cs.mu.Unlock()

	if err := sess.Notify(ctx, mcp.NotificationInitialized, json.RawMessage("{}")); err != nil {
		sess.Close()
		return nil, fmt.Errorf("client: notifications/initialized: %w", err)
	}
	return cs, nil
}

// Close tears down the underlying protocol engine and transport.
func (cs *ClientSession) Close() error { return cs.session.Close() }

// Wait blocks until the session closes.
func (cs *ClientSession) Wait() { <-cs.session.Closed() }

func (cs *ClientSession) installHandlers() {
	sess := cs.session
	sess.SetRequestHandler(mcp.MethodPing, func(context.Context, *mcp.RequestExtra, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage("{}"), nil
	})
	sess.SetRequestHandler(mcp.MethodSamplingCreateMessage, cs.handleCreateMessage)
	sess.SetRequestHandler(mcp.MethodRootsList, cs.handleListRoots)
	sess.SetRequestHandler(mcp.MethodElicitationCreate, cs.handleElicit)
	sess.SetNotificationHandler(mcp.NotificationTasksStatus, cs.handleTaskStatus)
}

func (cs *ClientSession) handleCreateMessage(ctx context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	if cs.client.opts.SamplingHandler == nil {
		return nil, mcp.NewMcpError(mcp.CodeMethodNotFound, "client: no sampling handler configured", nil)
	}
	var p mcp.CreateMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	result, err := cs.client.opts.SamplingHandler(ctx, p)
	if err != nil {
		return nil, toClientMcpError(err)
	}
	return json.Marshal(result)
}

func (cs *ClientSession) handleListRoots(ctx context.Context, _ *mcp.RequestExtra, _ json.RawMessage) (json.RawMessage, error) {
	if cs.client.opts.RootsHandler == nil {
		return json.Marshal(mcp.ListRootsResult{})
	}
	roots, err := cs.client.opts.RootsHandler(ctx)
	if err != nil {
		return nil, toClientMcpError(err)
	}
	return json.Marshal(mcp.ListRootsResult{Roots: roots})
}

func (cs *ClientSession) handleElicit(ctx context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	if cs.client.opts.ElicitationHandler == nil {
		return nil, mcp.NewMcpError(mcp.CodeMethodNotFound, "client: no elicitation handler configured", nil)
	}
	var p mcp.ElicitParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	result, err := cs.client.opts.ElicitationHandler(ctx, p)
	if err != nil {
		return nil, toClientMcpError(err)
	}
	if result.Action == "accept" && p.Mode == mcp.ElicitForm && p.RequestedSchema != nil {
		if result.Content == nil {
			result.Content = map[string]any{}
		}
		applySchemaDefaults(p.RequestedSchema, result.Content)
	}
	return json.Marshal(result)
}

func (cs *ClientSession) handleTaskStatus(ctx context.Context, params json.RawMessage) {
	if cs.client.opts.TaskStatusHandler == nil {
		return
	}
	var p struct {
		TaskID string         `json:"taskId"`
		Status mcp.TaskStatus `json:"status"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		obs.Log().Debug("client: malformed tasks/status notification", "error", err)
		return
	}
	cs.client.opts.TaskStatusHandler(ctx, p.TaskID, p.Status)
}

// applySchemaDefaults fills content with any "default" values declared in
// requestedSchema's top-level properties that content left unset, per
// spec.md §4.6's "form mode may optionally apply schema defaults" note.
func applySchemaDefaults(requestedSchema any, content map[string]any) {
	schema, ok := requestedSchema.(map[string]any)
	if !ok {
		return
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}
	for name, raw := range props {
		if _, set := content[name]; set {
			continue
		}
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if def, ok := prop["default"]; ok {
			content[name] = def
		}
	}
}

func toClientMcpError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*mcp.McpError); ok {
		return err
	}
	return mcp.NewMcpError(mcp.CodeInternalError, err.Error(), nil)
}
