// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/relaymcp/mcp-go/internal/urimatch"
	"github.com/relaymcp/mcp-go/mcp"
)

// ResourceReadHandler reads one statically-registered resource.
type ResourceReadHandler func(ctx context.Context, ss *ServerSession, uri string) (*mcp.EmbeddedResource, error)

// TemplateReadHandler reads one resource matched against a URI template;
// vars holds the values bound from the template's {name} expressions.
type TemplateReadHandler func(ctx context.Context, ss *ServerSession, uri string, vars map[string]string) (*mcp.EmbeddedResource, error)

// ServerResource binds a statically-addressable resource's metadata to its
// read handler.
type ServerResource struct {
	Resource *mcp.Resource
	Handler  ResourceReadHandler
}

// ServerResourceTemplate binds a URI-template-addressable resource family
// to its read handler.
type ServerResourceTemplate struct {
	Template *mcp.ResourceTemplate
	Handler  TemplateReadHandler
	Complete map[string]CompletionHandler

	compiled *urimatch.Template
	seq      int64
}

// templateSeq stamps each registered template with its registration order.
var templateSeq atomic.Int64

// AddResources registers resources, replacing any with the same URI, and
// notifies sessions via notifications/resources/list_changed.
func (s *Server) AddResources(resources ...*ServerResource) {
	if len(resources) == 0 {
		return
	}
	s.changeAndNotify(mcp.NotificationResourcesListChanged, func() bool {
		s.resources.add(resources...)
		return true
	})
}

// RemoveResources removes resources by URI. Removing an unregistered URI is
// not an error.
func (s *Server) RemoveResources(uris ...string) {
	s.changeAndNotify(mcp.NotificationResourcesListChanged, func() bool {
		return s.resources.remove(uris...)
	})
}

// AddResourceTemplates registers resource templates, compiling each
// URITemplate with package urimatch. Templates are matched against an
// incoming resources/read URI in registration order (spec.md §4.5), so
// callers should register more specific templates first.
func (s *Server) AddResourceTemplates(templates ...*ServerResourceTemplate) error {
	if len(templates) == 0 {
		return nil
	}
	for _, t := range templates {
		compiled, err := urimatch.Compile(t.Template.URITemplate)
		if err != nil {
			return fmt.Errorf("server: resource template %q: %w", t.Template.URITemplate, err)
		}
		t.compiled = compiled
		t.seq = templateSeq.Add(1)
	}
	s.changeAndNotify(mcp.NotificationResourcesListChanged, func() bool {
		s.resourceTemplates.add(templates...)
		return true
	})
	return nil
}

type listResourcesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listResourcesResult struct {
	Resources  []*mcp.Resource `json:"resources"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

func (ss *ServerSession) handleListResources(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p listResourcesParams
	if len(params) > 0 {
		json.Unmarshal(params, &p)
	}
	s := ss.server
	s.mu.Lock()
	page, next, err := paginate(s.resources, s.opts.pageSize(), p.Cursor)
	s.mu.Unlock()
	if err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, "invalid cursor", nil)
	}
	out := make([]*mcp.Resource, 0, len(page))
	for _, r := range page {
		out = append(out, r.Resource)
	}
	return json.Marshal(listResourcesResult{Resources: out, NextCursor: next})
}

type listResourceTemplatesResult struct {
	ResourceTemplates []*mcp.ResourceTemplate `json:"resourceTemplates"`
	NextCursor        string                  `json:"nextCursor,omitempty"`
}

func (ss *ServerSession) handleListResourceTemplates(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p listResourcesParams
	if len(params) > 0 {
		json.Unmarshal(params, &p)
	}
	s := ss.server
	s.mu.Lock()
	page, next, err := paginate(s.resourceTemplates, s.opts.pageSize(), p.Cursor)
	s.mu.Unlock()
	if err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, "invalid cursor", nil)
	}
	out := make([]*mcp.ResourceTemplate, 0, len(page))
	for _, t := range page {
		out = append(out, t.Template)
	}
	return json.Marshal(listResourceTemplatesResult{ResourceTemplates: out, NextCursor: next})
}

type readResourceParams struct {
	URI string `json:"uri"`
}

type readResourceResult struct {
	Contents []mcp.EmbeddedResource `json:"contents"`
}

func (ss *ServerSession) handleReadResource(ctx context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p readResourceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	s := ss.server
	s.mu.Lock()
	res, ok := s.resources.get(p.URI)
	s.mu.Unlock()
	if ok {
		content, err := res.Handler(ctx, ss, p.URI)
		if err != nil {
			return nil, toMcpError(err)
		}
		return json.Marshal(readResourceResult{Contents: []mcp.EmbeddedResource{*content}})
	}

	s.mu.Lock()
	templates := make([]*ServerResourceTemplate, 0, s.resourceTemplates.len())
	for t := range s.resourceTemplates.all() {
		templates = append(templates, t)
	}
	s.mu.Unlock()
	slices.SortFunc(templates, func(a, b *ServerResourceTemplate) int { return cmp.Compare(a.seq, b.seq) })
	for _, t := range templates {
		vars, ok := t.compiled.Match(p.URI)
		if !ok {
			continue
		}
		content, err := t.Handler(ctx, ss, p.URI, vars)
		if err != nil {
			return nil, toMcpError(err)
		}
		return json.Marshal(readResourceResult{Contents: []mcp.EmbeddedResource{*content}})
	}
	return nil, mcp.NewMcpError(mcp.CodeResourceNotFound, fmt.Sprintf("resource not found: %s", p.URI), nil)
}

// resourceSubscriptions tracks, per server, which sessions are subscribed to
// which resource URIs, so NotifyResourceUpdated can target just them.
type resourceSubscriptions struct {
	mu   sync.Mutex
	subs map[string]map[*ServerSession]bool // uri -> sessions
}

func (s *Server) subs() *resourceSubscriptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscriptions == nil {
		s.subscriptions = &resourceSubscriptions{subs: make(map[string]map[*ServerSession]bool)}
	}
	return s.subscriptions
}

type subscribeParams struct {
	URI string `json:"uri"`
}

func (ss *ServerSession) handleSubscribeResource(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p subscribeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	subs := ss.server.subs()
	subs.mu.Lock()
	if subs.subs[p.URI] == nil {
		subs.subs[p.URI] = make(map[*ServerSession]bool)
	}
	subs.subs[p.URI][ss] = true
	subs.mu.Unlock()
	return json.RawMessage("{}"), nil
}

func (ss *ServerSession) handleUnsubscribeResource(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p subscribeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	subs := ss.server.subs()
	subs.mu.Lock()
	delete(subs.subs[p.URI], ss)
	subs.mu.Unlock()
	return json.RawMessage("{}"), nil
}

// NotifyResourceUpdated sends notifications/resources/updated to every
// session subscribed to uri.
func (s *Server) NotifyResourceUpdated(uri string) {
	subs := s.subs()
	subs.mu.Lock()
	sessions := make([]*ServerSession, 0, len(subs.subs[uri]))
	for ss := range subs.subs[uri] {
		sessions = append(sessions, ss)
	}
	subs.mu.Unlock()
	payload, _ := json.Marshal(map[string]string{"uri": uri})
	for _, ss := range sessions {
		ss.notifyIfAble(mcp.NotificationResourcesUpdated, payload)
	}
}

func toMcpError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*mcp.McpError); ok {
		return err
	}
	return mcp.NewMcpError(mcp.CodeInternalError, err.Error(), nil)
}
