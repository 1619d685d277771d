// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relaymcp/mcp-go/mcp"
)

type listTasksParams struct {
	Cursor   string `json:"cursor,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
}

type listTasksResult struct {
	Tasks      []*mcp.Task `json:"tasks"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

func (ss *ServerSession) handleTasksList(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p listTasksParams
	if len(params) > 0 {
		json.Unmarshal(params, &p)
	}
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = ss.server.opts.pageSize()
	}
	tasks, next, err := ss.server.taskStore.ListTasks(p.Cursor, pageSize)
	if err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	return json.Marshal(listTasksResult{Tasks: tasks, NextCursor: next})
}

type taskIDParams struct {
	TaskID string `json:"taskId"`
}

func (ss *ServerSession) handleTasksGet(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p taskIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	t, ok := ss.server.taskStore.GetTask(p.TaskID)
	if !ok {
		return nil, mcp.NewMcpError(mcp.CodeInvalidRequest, fmt.Sprintf("unknown task %q", p.TaskID), nil)
	}
	return json.Marshal(t)
}

func (ss *ServerSession) handleTasksCancel(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p taskIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	ss.server.taskStore.Cancel(p.TaskID)
	t, ok := ss.server.taskStore.GetTask(p.TaskID)
	if !ok {
		return nil, mcp.NewMcpError(mcp.CodeInvalidRequest, fmt.Sprintf("unknown task %q", p.TaskID), nil)
	}
	return json.Marshal(t)
}

// handleTasksResult implements the tasks/result side channel from spec.md
// §4.7: it blocks, alternately relaying queued nested server→client
// requests and waiting for status updates, until the task reaches a
// terminal status, then returns its stored CallToolResult (or the stored
// error, as a JSON-RPC Error).
func (ss *ServerSession) handleTasksResult(ctx context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p taskIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	result, err := ss.server.taskStore.RunResultHandler(ctx, p.TaskID, ss)
	if err != nil {
		return nil, toMcpError(err)
	}
	return json.Marshal(result)
}
