// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relaymcp/mcp-go/mcp"
)

// Session is passed to a task-aware tool handler in place of a plain
// request context. It lets the handler issue nested server→client requests
// (elicitation, sampling, roots) that are actually sent over the wire by
// whichever tasks/result call is currently servicing this task — the
// handler itself never touches the transport.
type Session struct {
	taskID string
	store  *Store
}

// NewSession wraps store's bookkeeping for a single task's handler
// invocation.
func NewSession(store *Store, taskID string) *Session {
	return &Session{taskID: taskID, store: store}
}

// TaskID returns the id of the task this session was created for.
func (s *Session) TaskID() string { return s.taskID }

// Elicit issues a nested elicitation/create request, blocking until the
// client answers (via the tasks/result loop) or ctx is done. While the
// request is outstanding the task's status is "inputRequired".
func (s *Session) Elicit(ctx context.Context, params mcp.ElicitParams) (*mcp.ElicitResult, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	payload, err := s.nestedRequest(ctx, mcp.MethodElicitationCreate, raw)
	if err != nil {
		return nil, err
	}
	var result mcp.ElicitResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateMessage issues a nested sampling/createMessage request.
func (s *Session) CreateMessage(ctx context.Context, params mcp.CreateMessageParams) (*mcp.CreateMessageResult, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	payload, err := s.nestedRequest(ctx, mcp.MethodSamplingCreateMessage, raw)
	if err != nil {
		return nil, err
	}
	var result mcp.CreateMessageResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRoots issues a nested roots/list request.
func (s *Session) ListRoots(ctx context.Context) ([]mcp.Root, error) {
	payload, err := s.nestedRequest(ctx, mcp.MethodRootsList, json.RawMessage("{}"))
	if err != nil {
		return nil, err
	}
	var result mcp.ListRootsResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return result.Roots, nil
}

// nestedRequest implements spec.md §4.7's task-session contract: set
// status to inputRequired, enqueue the request (tagged with
// "_meta.relatedTask" per spec.md §4.7's elicitForTask/createMessageForTask
// convention) with a fresh resolver, await it, then restore status to
// working.
func (s *Session) nestedRequest(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	tagged, err := mcp.WithMeta(params, mcp.Meta{"relatedTask": mcp.TaskRequestMeta{TaskID: s.taskID}})
	if err != nil {
		return nil, err
	}

	s.store.UpdateStatus(s.taskID, mcp.TaskInputRequired, "waiting on "+method)
	qm := &QueuedMessage{
		Kind:      MessageRequest,
		Method:    method,
		Params:    tagged,
		Timestamp: time.Now(),
		resultCh:  make(chan nestedResult, 1),
	}
	q := s.store.Queue(s.taskID)
	if q == nil {
		return nil, mcp.NewMcpError(mcp.CodeInternalError, "tasks: task has no queue", nil)
	}
	q.enqueue(qm)

	select {
	case res := <-qm.resultCh:
		s.store.UpdateStatus(s.taskID, mcp.TaskWorking, "")
		if res.err != nil {
			return nil, res.err
		}
		return res.payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
