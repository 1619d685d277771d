// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import "time"

// TaskStatus is a task's place in the lifecycle described by spec.md §3:
// working -> {inputRequired <-> working} -> one of the three terminal
// states. No task transitions out of a terminal state.
type TaskStatus string

const (
	TaskWorking       TaskStatus = "working"
	TaskInputRequired TaskStatus = "inputRequired"
	TaskCompleted     TaskStatus = "completed"
	TaskFailed        TaskStatus = "failed"
	TaskCancelled     TaskStatus = "cancelled"
)

// Terminal reports whether status is one from which no further
// transition is possible.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Task is the wire shape of a long-running operation handle, returned
// from a task-augmented tools/call and by tasks/get and tasks/list.
type Task struct {
	TaskID        string     `json:"taskId"`
	Status        TaskStatus `json:"status"`
	StatusMessage string     `json:"statusMessage,omitempty"`
	TTLMillis     int64      `json:"ttl,omitempty"`
	PollInterval  int64      `json:"pollInterval,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"`
	Meta          Meta       `json:"_meta,omitempty"`
}

// CreateTaskParams is what a tool-call's "_meta.task" carries, and what a
// handler's CreateTask(params) receives to mint a task.
type CreateTaskParams struct {
	TTLMillis int64 `json:"ttl,omitempty"`
}

// TaskHandleResult is what tools/call returns in place of a direct
// CallToolResult when it was task-augmented.
type TaskHandleResult struct {
	Task *Task `json:"task"`
}
