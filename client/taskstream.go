// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/relaymcp/mcp-go/mcp"
)

// TaskEventKind discriminates one step of a CallToolStream sequence.
type TaskEventKind string

const (
	TaskEventCreated TaskEventKind = "taskCreated"
	TaskEventStatus  TaskEventKind = "taskStatus"
	TaskEventResult  TaskEventKind = "result"
	TaskEventError   TaskEventKind = "error"
)

// TaskEvent is one item of a CallToolStream sequence, per spec.md §4.6:
// "a lazy sequence of messages {taskCreated, taskStatus*,
// (inputRequired→)result, error}".
type TaskEvent struct {
	Kind   TaskEventKind
	Task   *mcp.Task
	Result *mcp.CallToolResult
	Err    error
}

// CallToolStream drives a task-augmented tools/call to completion,
// yielding a TaskEventCreated once the task is minted, a TaskEventStatus
// for each tasks/get poll, and a terminal TaskEventResult or
// TaskEventError. The range stops as soon as a terminal event is
// produced; an early `break` from the range loop simply stops iteration
// without cancelling the task server-side.
//
// Internally: issues tools/call with "_meta.task" set, recognizes whether
// the reply carries a "task" handle or a direct CallToolResult, polls
// tasks/get at the task-advised interval, and on seeing "inputRequired"
// calls tasks/result — which blocks until the task reaches a terminal
// status while the server relays any nested requests over this same
// session (answered by the reverse-request handlers installed in
// client.go).
func (cs *ClientSession) CallToolStream(ctx context.Context, name string, arguments any, ttlMillis int64) iter.Seq[TaskEvent] {
	return func(yield func(TaskEvent) bool) {
		argsRaw, err := json.Marshal(arguments)
		if err != nil {
			yield(TaskEvent{Kind: TaskEventError, Err: err})
			return
		}
		base, err := json.Marshal(map[string]json.RawMessage{"name": mustJSON(name), "arguments": argsRaw})
		if err != nil {
			yield(TaskEvent{Kind: TaskEventError, Err: err})
			return
		}
		tagged, err := mcp.WithMeta(base, mcp.Meta{"task": mcp.TaskRequestMeta{TTLMillis: ttlMillis}})
		if err != nil {
			yield(TaskEvent{Kind: TaskEventError, Err: err})
			return
		}

		raw, err := cs.request(ctx, mcp.MethodToolsCall, json.RawMessage(tagged))
		if err != nil {
			yield(TaskEvent{Kind: TaskEventError, Err: err})
			return
		}

		var taskWrapper mcp.TaskHandleResult
		if err := json.Unmarshal(raw, &taskWrapper); err != nil {
			yield(TaskEvent{Kind: TaskEventError, Err: err})
			return
		}
		if taskWrapper.Task == nil {
			var result mcp.CallToolResult
			if err := json.Unmarshal(raw, &result); err != nil {
				yield(TaskEvent{Kind: TaskEventError, Err: err})
				return
			}
			yield(TaskEvent{Kind: TaskEventResult, Result: &result})
			return
		}

		if !yield(TaskEvent{Kind: TaskEventCreated, Task: taskWrapper.Task}) {
			return
		}

		taskID := taskWrapper.Task.TaskID
		poll := time.Duration(taskWrapper.Task.PollInterval) * time.Millisecond
		if poll <= 0 {
			poll = 500 * time.Millisecond
		}

		for {
			select {
			case <-time.After(poll):
			case <-ctx.Done():
				yield(TaskEvent{Kind: TaskEventError, Err: ctx.Err()})
				return
			}

			t, err := cs.GetTask(ctx, taskID)
			if err != nil {
				yield(TaskEvent{Kind: TaskEventError, Err: err})
				return
			}
			if !yield(TaskEvent{Kind: TaskEventStatus, Task: t}) {
				return
			}

			if t.Status.Terminal() || t.Status == mcp.TaskInputRequired {
				result, err := cs.TaskResult(ctx, taskID)
				if err != nil {
					yield(TaskEvent{Kind: TaskEventError, Err: err})
					return
				}
				yield(TaskEvent{Kind: TaskEventResult, Result: result})
				return
			}
		}
	}
}

type taskIDParams struct {
	TaskID string `json:"taskId"`
}

// GetTask fetches a task's current metadata (tasks/get).
func (cs *ClientSession) GetTask(ctx context.Context, taskID string) (*mcp.Task, error) {
	raw, err := cs.request(ctx, mcp.MethodTasksGet, taskIDParams{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	var t mcp.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskResult blocks until the task reaches a terminal status, relaying
// any nested requests the server sends meanwhile, then returns its final
// CallToolResult (tasks/result).
func (cs *ClientSession) TaskResult(ctx context.Context, taskID string) (*mcp.CallToolResult, error) {
	raw, err := cs.request(ctx, mcp.MethodTasksResult, taskIDParams{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type listTasksResponse struct {
	Tasks      []*mcp.Task `json:"tasks"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// ListTasks is a thin wrapper over tasks/list.
func (cs *ClientSession) ListTasks(ctx context.Context, cursor string) ([]*mcp.Task, string, error) {
	raw, err := cs.request(ctx, mcp.MethodTasksList, map[string]string{"cursor": cursor})
	if err != nil {
		return nil, "", err
	}
	var resp listTasksResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, "", err
	}
	return resp.Tasks, resp.NextCursor, nil
}

// CancelTask is a thin wrapper over tasks/cancel.
func (cs *ClientSession) CancelTask(ctx context.Context, taskID string) (*mcp.Task, error) {
	raw, err := cs.request(ctx, mcp.MethodTasksCancel, taskIDParams{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	var t mcp.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
