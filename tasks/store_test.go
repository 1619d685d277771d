// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/relaymcp/mcp-go/mcp"
)

type fakeNotifier struct {
	statuses []mcp.TaskStatus
}

func (f *fakeNotifier) NotifyTaskStatus(taskID string, status mcp.TaskStatus) {
	f.statuses = append(f.statuses, status)
}

func TestCreateTaskStartsWorking(t *testing.T) {
	s := NewStore()
	task := s.CreateTask(mcp.CreateTaskParams{}, mcp.IntID(1), "sess-1", nil)
	if task.Status != mcp.TaskWorking {
		t.Errorf("Status = %q, want working", task.Status)
	}
	if task.TTLMillis != DefaultTTL.Milliseconds() {
		t.Errorf("TTLMillis = %d, want default %d", task.TTLMillis, DefaultTTL.Milliseconds())
	}
	got, ok := s.GetTask(task.TaskID)
	if !ok {
		t.Fatalf("GetTask(%q): not found", task.TaskID)
	}
	if got.TaskID != task.TaskID {
		t.Errorf("GetTask returned a different task: %+v", got)
	}
}

func TestUpdateStatusNotifies(t *testing.T) {
	s := NewStore()
	n := &fakeNotifier{}
	task := s.CreateTask(mcp.CreateTaskParams{}, mcp.RequestID{}, "sess-1", n)
	s.UpdateStatus(task.TaskID, mcp.TaskInputRequired, "waiting on elicitation")
	got, _ := s.GetTask(task.TaskID)
	if got.Status != mcp.TaskInputRequired {
		t.Errorf("Status = %q, want inputRequired", got.Status)
	}
	if got.StatusMessage != "waiting on elicitation" {
		t.Errorf("StatusMessage = %q", got.StatusMessage)
	}
	if len(n.statuses) != 1 || n.statuses[0] != mcp.TaskInputRequired {
		t.Errorf("notifier saw %v, want [inputRequired]", n.statuses)
	}
}

func TestStoreResultThenGetResult(t *testing.T) {
	s := NewStore()
	task := s.CreateTask(mcp.CreateTaskParams{}, mcp.RequestID{}, "sess-1", nil)
	result := &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("done")}}
	s.StoreResult(task.TaskID, mcp.TaskCompleted, result, nil)

	got, rpcErr, err := s.GetResult(task.TaskID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if rpcErr != nil {
		t.Fatalf("rpcErr = %v, want nil", rpcErr)
	}
	if len(got.Content) != 1 || got.Content[0].Text != "done" {
		t.Errorf("got.Content = %+v", got.Content)
	}
}

func TestGetResultBeforeTerminalFails(t *testing.T) {
	s := NewStore()
	task := s.CreateTask(mcp.CreateTaskParams{}, mcp.RequestID{}, "sess-1", nil)
	_, _, err := s.GetResult(task.TaskID)
	if err == nil {
		t.Fatal("expected an error for a non-terminal task")
	}
}

func TestCancelNonTerminalSucceedsOnce(t *testing.T) {
	s := NewStore()
	task := s.CreateTask(mcp.CreateTaskParams{}, mcp.RequestID{}, "sess-1", nil)
	if !s.Cancel(task.TaskID) {
		t.Fatal("Cancel on a working task should succeed")
	}
	if s.Cancel(task.TaskID) {
		t.Error("Cancel on an already-cancelled task should report false")
	}
	got, _ := s.GetTask(task.TaskID)
	if got.Status != mcp.TaskCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}
}

func TestListTasksPaginates(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.CreateTask(mcp.CreateTaskParams{}, mcp.RequestID{}, "sess-1", nil)
	}
	page1, cursor, err := s.ListTasks("", 2)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("len(page1) = %d, want 2", len(page1))
	}
	if cursor == "" {
		t.Fatal("expected a non-empty next cursor with more results remaining")
	}
	page2, _, err := s.ListTasks(cursor, 2)
	if err != nil {
		t.Fatalf("ListTasks page2: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("len(page2) = %d, want 2", len(page2))
	}
	for _, t1 := range page1 {
		for _, t2 := range page2 {
			if t1.TaskID == t2.TaskID {
				t.Errorf("task %q appeared in both pages", t1.TaskID)
			}
		}
	}
}

func TestWaitForUpdateWakesOnStatusChange(t *testing.T) {
	s := NewStore()
	task := s.CreateTask(mcp.CreateTaskParams{}, mcp.RequestID{}, "sess-1", nil)
	done := make(chan error, 1)
	go func() {
		done <- s.WaitForUpdate(context.Background(), task.TaskID)
	}()
	time.Sleep(10 * time.Millisecond)
	s.UpdateStatus(task.TaskID, mcp.TaskInputRequired, "")
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForUpdate returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForUpdate did not wake on status change")
	}
}
