// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/relaymcp/mcp-go/mcp"
)

// fakeSender answers every nested request with a canned elicitation
// accept, recording the methods it was asked to send.
type fakeSender struct {
	methods []string
}

func (f *fakeSender) Request(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	f.methods = append(f.methods, method)
	result := mcp.ElicitResult{Action: "accept", Content: map[string]any{"answer": "yes"}}
	return json.Marshal(result)
}

func TestRunResultHandlerDrivesNestedElicitationToCompletion(t *testing.T) {
	store := NewStore()
	task := store.CreateTask(mcp.CreateTaskParams{}, mcp.RequestID{}, "sess-1", nil)
	sender := &fakeSender{}

	// The task's own handler, running as spec.md §4.7 describes: it calls
	// Elicit, which blocks until RunResultHandler (driven concurrently,
	// as tasks/result would be) delivers an answer.
	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		tsess := NewSession(store, task.TaskID)
		result, err := tsess.Elicit(context.Background(), mcp.ElicitParams{Message: "confirm?"})
		if err != nil {
			t.Errorf("Elicit: %v", err)
			store.StoreResult(task.TaskID, mcp.TaskFailed, nil, mcp.NewMcpError(mcp.CodeInternalError, err.Error(), nil))
			return
		}
		if result.Action != "accept" {
			t.Errorf("result.Action = %q, want accept", result.Action)
		}
		store.StoreResult(task.TaskID, mcp.TaskCompleted, &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("confirmed")}}, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := store.RunResultHandler(ctx, task.TaskID, sender)
	if err != nil {
		t.Fatalf("RunResultHandler: %v", err)
	}
	<-handlerDone

	if len(result.Content) != 1 || result.Content[0].Text != "confirmed" {
		t.Errorf("result.Content = %+v", result.Content)
	}
	if len(sender.methods) != 1 || sender.methods[0] != mcp.MethodElicitationCreate {
		t.Errorf("sender.methods = %v, want [%s]", sender.methods, mcp.MethodElicitationCreate)
	}
}

func TestRunResultHandlerUnknownTask(t *testing.T) {
	store := NewStore()
	_, err := store.RunResultHandler(context.Background(), "nonexistent", &fakeSender{})
	if err == nil {
		t.Fatal("expected an error for an unknown task")
	}
}
