// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/relaymcp/mcp-go/mcp"
)

// PromptHandler renders a prompt's messages given its arguments, already
// checked against the prompt's declared required arguments.
type PromptHandler func(ctx context.Context, ss *ServerSession, args map[string]string) ([]mcp.PromptMessage, error)

// ServerPrompt binds a Prompt's metadata to its rendering handler and,
// per argument name, an optional completion callback for completable
// arguments (spec.md §4.5).
type ServerPrompt struct {
	Prompt   *mcp.Prompt
	Handler  PromptHandler
	Complete map[string]CompletionHandler
}

// AddPrompts registers prompts, replacing any with the same name, and
// notifies sessions via notifications/prompts/list_changed.
func (s *Server) AddPrompts(prompts ...*ServerPrompt) {
	if len(prompts) == 0 {
		return
	}
	s.changeAndNotify(mcp.NotificationPromptsListChanged, func() bool {
		s.prompts.add(prompts...)
		return true
	})
}

// RemovePrompts removes prompts by name. Removing an unregistered name is
// not an error.
func (s *Server) RemovePrompts(names ...string) {
	s.changeAndNotify(mcp.NotificationPromptsListChanged, func() bool {
		return s.prompts.remove(names...)
	})
}

type listPromptsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listPromptsResult struct {
	Prompts    []*mcp.Prompt `json:"prompts"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func (ss *ServerSession) handleListPrompts(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p listPromptsParams
	if len(params) > 0 {
		json.Unmarshal(params, &p)
	}
	s := ss.server
	s.mu.Lock()
	page, next, err := paginate(s.prompts, s.opts.pageSize(), p.Cursor)
	s.mu.Unlock()
	if err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, "invalid cursor", nil)
	}
	out := make([]*mcp.Prompt, 0, len(page))
	for _, sp := range page {
		out = append(out, sp.Prompt)
	}
	return json.Marshal(listPromptsResult{Prompts: out, NextCursor: next})
}

type getPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

type getPromptResult struct {
	Description string              `json:"description,omitempty"`
	Messages    []mcp.PromptMessage `json:"messages"`
}

func (ss *ServerSession) handleGetPrompt(ctx context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p getPromptParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	s := ss.server
	s.mu.Lock()
	sp, ok := s.prompts.get(p.Name)
	s.mu.Unlock()
	if !ok {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, fmt.Sprintf("unknown prompt %q", p.Name), nil)
	}
	for _, arg := range sp.Prompt.Arguments {
		value, ok := p.Arguments[arg.Name]
		if !ok {
			if arg.Required {
				return nil, mcp.NewMcpError(mcp.CodeInvalidParams, fmt.Sprintf("prompt %q missing required argument %q", p.Name, arg.Name), nil)
			}
			continue
		}
		if err := checkArgumentType(arg, value); err != nil {
			return nil, mcp.NewMcpError(mcp.CodeInvalidParams, fmt.Sprintf("prompt %q argument %q: %s", p.Name, arg.Name, err), nil)
		}
	}
	messages, err := sp.Handler(ctx, ss, p.Arguments)
	if err != nil {
		return nil, toMcpError(err)
	}
	return json.Marshal(getPromptResult{Description: sp.Prompt.Description, Messages: messages})
}

// checkArgumentType validates value against arg's declared Type. Prompt
// arguments travel the wire as strings regardless of logical type, so
// "number"/"integer"/"boolean" are checked by whether value parses as one.
func checkArgumentType(arg mcp.PromptArgument, value string) error {
	switch arg.Type {
	case "", "string":
		return nil
	case "number":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("want a number, got %q", value)
		}
	case "integer":
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("want an integer, got %q", value)
		}
	case "boolean":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("want a boolean, got %q", value)
		}
	}
	return nil
}
