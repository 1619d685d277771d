// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/internal/validate"
	"github.com/relaymcp/mcp-go/mcp"
)

// request is the shared capability-gated send path every typed wrapper
// below uses, implementing the Strict/Warn enforcement spec.md §4.4
// describes for the client side (gated on the server's negotiated
// capabilities, the mirror image of server.ServerSession.Request).
func (cs *ClientSession) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	cs.mu.Lock()
	caps := cs.serverCaps
	cs.mu.Unlock()
	if !mcp.ServerCanReceive(method, caps) {
		if cs.client.opts.Enforcement != mcp.Warn {
			return nil, mcp.NewCapabilityError(method, mcp.CapabilityName(method))
		}
		obs.Log().Warn("client: sending request peer didn't advertise", "method", method)
	}
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = b
	} else {
		raw = json.RawMessage("{}")
	}
	return cs.session.Request(ctx, method, raw, nil)
}

// Ping issues a ping, the one method either peer may send regardless of
// negotiated capabilities.
func (cs *ClientSession) Ping(ctx context.Context) error {
	_, err := cs.session.Request(ctx, mcp.MethodPing, json.RawMessage("{}"), nil)
	return err
}

type listToolsResponse struct {
	Tools      []*mcp.Tool `json:"tools"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// ListTools fetches one page of tools and caches each tool's output
// schema and required-task status for later use by CallTool, per spec.md
// §4.6.
func (cs *ClientSession) ListTools(ctx context.Context, cursor string) ([]*mcp.Tool, string, error) {
	raw, err := cs.request(ctx, mcp.MethodToolsList, map[string]string{"cursor": cursor})
	if err != nil {
		return nil, "", err
	}
	var resp listToolsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, "", err
	}
	cs.mu.Lock()
	for _, t := range resp.Tools {
		entry := toolCacheEntry{}
		if t.OutputSchema != nil {
			if schema, err := validate.Compile(t.OutputSchema); err == nil {
				entry.outputSchema = schema
			}
		}
		if t.Execution != nil && t.Execution.TaskSupport == mcp.TaskSupportRequired {
			entry.requiredTask = true
		}
		cs.toolCache[t.Name] = entry
	}
	cs.mu.Unlock()
	return resp.Tools, resp.NextCursor, nil
}

// CallTool invokes a tool directly (non-task). Per spec.md §4.6, it
// refuses — with invalidRequest, before sending anything — a tool that
// ListTools cached as execution.taskSupport="required": such a tool must
// be driven through the task-augmented path instead (see taskstream.go).
// After a successful call it validates structuredContent against the
// tool's cached output schema, if any.
func (cs *ClientSession) CallTool(ctx context.Context, name string, arguments any) (*mcp.CallToolResult, error) {
	cs.mu.Lock()
	entry, cached := cs.toolCache[name]
	cs.mu.Unlock()
	if cached && entry.requiredTask {
		return nil, mcp.NewMcpError(mcp.CodeInvalidRequest, fmt.Sprintf("tool %q requires task-augmented invocation; use CallToolStream", name), nil)
	}

	argsRaw, err := json.Marshal(arguments)
	if err != nil {
		return nil, err
	}
	raw, err := cs.request(ctx, mcp.MethodToolsCall, map[string]json.RawMessage{"name": mustJSON(name), "arguments": argsRaw})
	if err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if cached && entry.outputSchema != nil && result.StructuredContent != nil {
		if err := entry.outputSchema.Validate(result.StructuredContent); err != nil {
			return &result, fmt.Errorf("client: tool %q structuredContent failed output schema: %w", name, err)
		}
	}
	return &result, nil
}

func mustJSON(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

type listResourcesResponse struct {
	Resources  []*mcp.Resource `json:"resources"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

func (cs *ClientSession) ListResources(ctx context.Context, cursor string) ([]*mcp.Resource, string, error) {
	raw, err := cs.request(ctx, mcp.MethodResourcesList, map[string]string{"cursor": cursor})
	if err != nil {
		return nil, "", err
	}
	var resp listResourcesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, "", err
	}
	return resp.Resources, resp.NextCursor, nil
}

type readResourceResponse struct {
	Contents []mcp.EmbeddedResource `json:"contents"`
}

func (cs *ClientSession) ReadResource(ctx context.Context, uri string) ([]mcp.EmbeddedResource, error) {
	raw, err := cs.request(ctx, mcp.MethodResourcesRead, map[string]string{"uri": uri})
	if err != nil {
		return nil, err
	}
	var resp readResourceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return resp.Contents, nil
}

func (cs *ClientSession) SubscribeResource(ctx context.Context, uri string) error {
	_, err := cs.request(ctx, mcp.MethodResourcesSubscribe, map[string]string{"uri": uri})
	return err
}

func (cs *ClientSession) UnsubscribeResource(ctx context.Context, uri string) error {
	_, err := cs.request(ctx, mcp.MethodResourcesUnsubscribe, map[string]string{"uri": uri})
	return err
}

type listPromptsResponse struct {
	Prompts    []*mcp.Prompt `json:"prompts"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func (cs *ClientSession) ListPrompts(ctx context.Context, cursor string) ([]*mcp.Prompt, string, error) {
	raw, err := cs.request(ctx, mcp.MethodPromptsList, map[string]string{"cursor": cursor})
	if err != nil {
		return nil, "", err
	}
	var resp listPromptsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, "", err
	}
	return resp.Prompts, resp.NextCursor, nil
}

type getPromptResponse struct {
	Description string              `json:"description,omitempty"`
	Messages    []mcp.PromptMessage `json:"messages"`
}

func (cs *ClientSession) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*getPromptResponse, error) {
	raw, err := cs.request(ctx, mcp.MethodPromptsGet, map[string]any{"name": name, "arguments": arguments})
	if err != nil {
		return nil, err
	}
	var resp getPromptResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complete requests completions for one prompt or resource-template
// argument. refType is "ref/prompt" or "ref/resource"; refValue is the
// prompt name or the template's uriTemplate string, respectively.
func (cs *ClientSession) Complete(ctx context.Context, refType, refValue, argName, argValue string) (values []string, total int, hasMore bool, err error) {
	ref := map[string]string{"type": refType}
	switch refType {
	case "ref/prompt":
		ref["name"] = refValue
	case "ref/resource":
		ref["uri"] = refValue
	}
	raw, err := cs.request(ctx, mcp.MethodCompletionComplete, map[string]any{
		"ref":      ref,
		"argument": map[string]string{"name": argName, "value": argValue},
	})
	if err != nil {
		return nil, 0, false, err
	}
	var resp struct {
		Completion struct {
			Values  []string `json:"values"`
			Total   int      `json:"total"`
			HasMore bool     `json:"hasMore"`
		} `json:"completion"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, false, err
	}
	return resp.Completion.Values, resp.Completion.Total, resp.Completion.HasMore, nil
}

func (cs *ClientSession) SetLoggingLevel(ctx context.Context, level mcp.LoggingLevel) error {
	_, err := cs.request(ctx, mcp.MethodLoggingSetLevel, map[string]mcp.LoggingLevel{"level": level})
	return err
}

// SendRootsListChanged notifies the server that this client's root set
// changed, per spec.md §4.6.
func (cs *ClientSession) SendRootsListChanged(ctx context.Context) error {
	return cs.session.Notify(ctx, mcp.NotificationRootsListChanged, json.RawMessage("{}"))
}
