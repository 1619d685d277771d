// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import (
	"context"
	"encoding/json"

	"github.com/relaymcp/mcp-go/mcp"
)

// Sender is the narrow part of the protocol engine the result handler loop
// needs: the ability to make an outbound request on the session that owns
// this task, so a queued nested request can actually be sent to the
// client. Implemented by the server package's ServerSession, which layers
// capability gating on top of *mcp.Session.Request.
type Sender interface {
	Request(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

// RunResultHandler implements the tasks/result service loop from spec.md
// §4.7: while the task is non-terminal, it waits for either a queued
// nested request or a status update. A queued request is sent to the
// client via sender and its response fed back to the waiting task-session
// call; an update is just a wakeup to re-check terminality. Once the task
// reaches a terminal status, the stored result (or error) is returned.
func (s *Store) RunResultHandler(ctx context.Context, taskID string, sender Sender) (*mcp.CallToolResult, error) {
	for {
		updated := s.updateSignal(taskID)
		t, ok := s.GetTask(taskID)
		if !ok {
			return nil, mcp.NewMcpError(mcp.CodeInvalidRequest, "unknown task", nil)
		}
		if t.Status.Terminal() {
			result, rpcErr, err := s.GetResult(taskID)
			if err != nil {
				return nil, err
			}
			if rpcErr != nil {
				return nil, rpcErr
			}
			return result, nil
		}

		q := s.Queue(taskID)
		var queueSig <-chan struct{}
		if q != nil {
			queueSig = q.signal()
			// Serve anything queued before queueSig was taken.
			if msg, ok := q.dequeue(); ok {
				if msg.Kind == MessageRequest {
					payload, err := sender.Request(ctx, msg.Method, msg.Params)
					if err != nil {
						msg.resultCh <- nestedResult{err: err}
					} else {
						msg.resultCh <- nestedResult{payload: payload}
					}
				}
				continue
			}
		}

		select {
		case <-updated:
			// Just re-check terminality on the next loop iteration.
		case <-queueSig:
			// The new message is dequeued on the next loop iteration.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
