// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/internal/validate"
	"github.com/relaymcp/mcp-go/mcp"
	"github.com/relaymcp/mcp-go/tasks"
)

// ToolHandler handles a direct (non-task) tools/call invocation.
type ToolHandler func(ctx context.Context, ss *ServerSession, args json.RawMessage) (*mcp.CallToolResult, error)

// TaskToolHandler handles a task-augmented tools/call invocation. It runs
// on its own goroutine for the lifetime of the task and may block on
// tsess.Elicit/CreateMessage/ListRoots; its return value becomes the task's
// stored result.
type TaskToolHandler func(ctx context.Context, tsess *tasks.Session, args json.RawMessage) (*mcp.CallToolResult, error)

// ServerTool binds a Tool's metadata to the handler(s) that implement it.
// Per spec.md §4.7, a tool whose Execution.TaskSupport is "required" must
// supply TaskHandler, an "optional" tool must supply at least one of
// Handler and TaskHandler, and any other tool must supply Handler and no
// TaskHandler; AddTools rejects registrations that violate this.
type ServerTool struct {
	Tool        *mcp.Tool
	Handler     ToolHandler
	TaskHandler TaskToolHandler

	inputSchema  *validate.Schema
	outputSchema *validate.Schema
}

func (st *ServerTool) taskSupport() mcp.TaskSupport {
	if st.Tool.Execution == nil {
		return mcp.TaskSupportForbidden
	}
	return st.Tool.Execution.TaskSupport
}

func (st *ServerTool) resolve() error {
	schema, err := validate.Compile(st.Tool.InputSchema)
	if err != nil {
		return fmt.Errorf("server: tool %q: %w", st.Tool.Name, err)
	}
	st.inputSchema = schema
	if st.Tool.OutputSchema != nil {
		outSchema, err := validate.Compile(st.Tool.OutputSchema)
		if err != nil {
			return fmt.Errorf("server: tool %q: output schema: %w", st.Tool.Name, err)
		}
		st.outputSchema = outSchema
	}
	switch st.taskSupport() {
	case mcp.TaskSupportRequired:
		if st.TaskHandler == nil {
			return fmt.Errorf("server: tool %q has execution.taskSupport=required but no TaskHandler", st.Tool.Name)
		}
	case mcp.TaskSupportOptional:
		if st.TaskHandler == nil && st.Handler == nil {
			return fmt.Errorf("server: tool %q has execution.taskSupport=optional but neither Handler nor TaskHandler", st.Tool.Name)
		}
	default: // forbidden
		if st.Handler == nil {
			return fmt.Errorf("server: tool %q has no Handler", st.Tool.Name)
		}
		if st.TaskHandler != nil {
			return fmt.Errorf("server: tool %q sets TaskHandler but execution.taskSupport is not optional/required", st.Tool.Name)
		}
	}
	return nil
}

// AddTools registers tools, replacing any with the same name, and notifies
// connected sessions that support it via notifications/tools/list_changed.
func (s *Server) AddTools(tools ...*ServerTool) error {
	if len(tools) == 0 {
		return nil
	}
	for _, t := range tools {
		if err := t.resolve(); err != nil {
			return err
		}
	}
	s.changeAndNotify(mcp.NotificationToolsListChanged, func() bool {
		s.tools.add(tools...)
		return true
	})
	return nil
}

// RemoveTools removes tools by name. Removing an unregistered name is not
// an error.
func (s *Server) RemoveTools(names ...string) {
	s.changeAndNotify(mcp.NotificationToolsListChanged, func() bool {
		return s.tools.remove(names...)
	})
}

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listToolsResult struct {
	Tools      []*mcp.Tool `json:"tools"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

func (ss *ServerSession) handleListTools(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p listToolsParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
		}
	}
	s := ss.server
	s.mu.Lock()
	page, next, err := paginate(s.tools, s.opts.pageSize(), p.Cursor)
	s.mu.Unlock()
	if err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, "invalid cursor", nil)
	}
	tools := make([]*mcp.Tool, 0, len(page))
	for _, t := range page {
		tools = append(tools, t.Tool)
	}
	return json.Marshal(listToolsResult{Tools: tools, NextCursor: next})
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (ss *ServerSession) handleCallTool(ctx context.Context, extra *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p callToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	s := ss.server
	s.mu.Lock()
	tool, ok := s.tools.get(p.Name)
	s.mu.Unlock()
	if !ok {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, fmt.Sprintf("unknown tool %q", p.Name), nil)
	}

	var argMap map[string]any
	if len(p.Arguments) > 0 {
		if err := json.Unmarshal(p.Arguments, &argMap); err != nil {
			return nil, mcp.NewMcpError(mcp.CodeInvalidParams, "arguments: "+err.Error(), nil)
		}
		if err := tool.inputSchema.Validate(argMap); err != nil {
			return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
		}
	}

	meta := extractRequestMeta(params)
	taskMeta, hasTask := meta.TaskMeta()
	support := tool.taskSupport()

	switch {
	case support == mcp.TaskSupportRequired && !hasTask:
		return nil, mcp.NewMcpError(mcp.CodeMethodNotFound, fmt.Sprintf("tool %q requires task-augmented invocation", p.Name), nil)
	case hasTask && support == mcp.TaskSupportForbidden:
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, fmt.Sprintf("tool %q does not support tasks", p.Name), nil)
	case hasTask:
		task := s.taskStore.CreateTask(mcp.CreateTaskParams{TTLMillis: taskMeta.TTLMillis}, extra.ID, extra.SessionID, ss)
		go ss.runTask(task.TaskID, tool, p.Arguments)
		return json.Marshal(mcp.TaskHandleResult{Task: task})
	case support == mcp.TaskSupportOptional:
		// Optional support, no task meta on this request: create the task
		// anyway, then poll it to completion locally and return the
		// underlying CallToolResult as if the call had been synchronous.
		task := s.taskStore.CreateTask(mcp.CreateTaskParams{}, extra.ID, extra.SessionID, ss)
		go ss.runTask(task.TaskID, tool, p.Arguments)
		return ss.pollTaskResult(ctx, task.TaskID)
	default:
		if tool.Handler == nil {
			return nil, mcp.NewMcpError(mcp.CodeInternalError, fmt.Sprintf("tool %q has no direct handler", p.Name), nil)
		}
		res, err := tool.Handler(ctx, ss, p.Arguments)
		if err != nil {
			obs.RecordToolCall(p.Name, "error")
			return json.Marshal(mcp.ErrorResult(err))
		}
		if err := tool.validateResult(res); err != nil {
			obs.RecordToolCall(p.Name, "error")
			return nil, mcp.NewMcpError(mcp.CodeInvalidParams, fmt.Sprintf("tool %q: %s", p.Name, err), nil)
		}
		obs.RecordToolCall(p.Name, "ok")
		return json.Marshal(res)
	}
}

// pollTaskResult blocks, waking on task.pollInterval, until taskID reaches
// a terminal status, then returns its stored CallToolResult (or propagates
// its stored error), for the optional-task-support/not-task-augmented
// call path of handleCallTool.
func (ss *ServerSession) pollTaskResult(ctx context.Context, taskID string) (json.RawMessage, error) {
	t, ok := ss.server.taskStore.GetTask(taskID)
	if !ok {
		return nil, mcp.NewMcpError(mcp.CodeInvalidRequest, fmt.Sprintf("unknown task %q", taskID), nil)
	}
	interval := time.Duration(t.PollInterval) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	for !t.Status.Terminal() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		t, ok = ss.server.taskStore.GetTask(taskID)
		if !ok {
			return nil, mcp.NewMcpError(mcp.CodeInvalidRequest, fmt.Sprintf("unknown task %q", taskID), nil)
		}
	}
	result, rpcErr, err := ss.server.taskStore.GetResult(taskID)
	if err != nil {
		return nil, toMcpError(err)
	}
	if rpcErr != nil {
		return nil, rpcErr
	}
	return json.Marshal(result)
}

// runTask drives a task-augmented tool call to completion on its own
// goroutine, per spec.md §4.7's task session contract. Tools registered
// with only a direct Handler (execution.taskSupport=optional, no
// TaskHandler) run that Handler instead, so the optional/not-augmented
// path in handleCallTool can still drive them through the task machinery.
func (ss *ServerSession) runTask(taskID string, tool *ServerTool, args json.RawMessage) {
	var result *mcp.CallToolResult
	var err error
	if tool.TaskHandler != nil {
		tsess := tasks.NewSession(ss.server.taskStore, taskID)
		result, err = tool.TaskHandler(context.Background(), tsess, args)
	} else {
		result, err = tool.Handler(context.Background(), ss, args)
	}
	if err == nil {
		if verr := tool.validateResult(result); verr != nil {
			err = mcp.NewMcpError(mcp.CodeInvalidParams, fmt.Sprintf("tool %q: %s", tool.Tool.Name, verr), nil)
		}
	}
	if err != nil {
		me, ok := err.(*mcp.McpError)
		if !ok {
			me = mcp.NewMcpError(mcp.CodeInternalError, err.Error(), nil)
		}
		ss.server.taskStore.StoreResult(taskID, mcp.TaskFailed, nil, me)
		obs.RecordToolCall(tool.Tool.Name, "error")
		return
	}
	ss.server.taskStore.StoreResult(taskID, mcp.TaskCompleted, result, nil)
	obs.RecordToolCall(tool.Tool.Name, "ok")
}

// validateResult checks a non-error CallToolResult's structuredContent
// against the tool's declared output schema, per spec.md §4.5. A tool
// with no output schema, or a result with no structuredContent or that
// already signals isError, is not checked.
func (st *ServerTool) validateResult(res *mcp.CallToolResult) error {
	if st.outputSchema == nil || res == nil || res.IsError || res.StructuredContent == nil {
		return nil
	}
	return st.outputSchema.Validate(res.StructuredContent)
}

// extractRequestMeta pulls "_meta" out of a tools/call request's raw
// params, independent of the callToolParams struct (which doesn't declare
// the field, since Meta is a cross-cutting concern handled uniformly here).
func extractRequestMeta(params json.RawMessage) mcp.Meta {
	var wrapper struct {
		Meta mcp.Meta `json:"_meta"`
	}
	if err := json.Unmarshal(params, &wrapper); err != nil {
		return nil
	}
	return wrapper.Meta
}
