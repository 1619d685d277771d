// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"

	"github.com/relaymcp/mcp-go/mcp"
)

// maxCompletionValues caps a single completion/complete response, per
// spec.md §4.5/§7: "Completion returns ≤ 100 values; hasMore=true iff more
// exist."
const maxCompletionValues = 100

// CompletionHandler proposes completions for one argument given its
// partial value so far.
type CompletionHandler func(ctx context.Context, value string) ([]string, error)

type completeRef struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"` // ref/prompt
	URI  string `json:"uri,omitempty"`  // ref/resource: the template's uriTemplate string
}

type completeArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type completeParams struct {
	Ref      completeRef      `json:"ref"`
	Argument completeArgument `json:"argument"`
}

type completionPayload struct {
	Values  []string `json:"values"`
	Total   int      `json:"total"`
	HasMore bool     `json:"hasMore"`
}

type completeResult struct {
	Completion completionPayload `json:"completion"`
}

func (ss *ServerSession) handleComplete(ctx context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p completeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}

	var handler CompletionHandler
	s := ss.server
	switch p.Ref.Type {
	case "ref/prompt":
		s.mu.Lock()
		sp, ok := s.prompts.get(p.Ref.Name)
		s.mu.Unlock()
		if !ok {
			return json.Marshal(completeResult{})
		}
		handler = sp.Complete[p.Argument.Name]
	case "ref/resource":
		s.mu.Lock()
		st, ok := s.resourceTemplates.get(p.Ref.URI)
		s.mu.Unlock()
		if !ok {
			return json.Marshal(completeResult{})
		}
		handler = st.Complete[p.Argument.Name]
	default:
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, "unknown completion ref type: "+p.Ref.Type, nil)
	}
	if handler == nil {
		return json.Marshal(completeResult{})
	}

	all, err := handler(ctx, p.Argument.Value)
	if err != nil {
		return nil, toMcpError(err)
	}
	payload := completionPayload{Total: len(all), HasMore: len(all) > maxCompletionValues}
	if len(all) > maxCompletionValues {
		payload.Values = all[:maxCompletionValues]
	} else {
		payload.Values = all
	}
	return json.Marshal(completeResult{Completion: payload})
}
