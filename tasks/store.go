// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tasks implements the long-running-operation model of spec.md
// §4.7: an in-memory task store, a per-task message queue for nested
// server→client requests, a task session handed to task-aware tool
// handlers, and the tasks/result service loop that drives it all.
package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/mcp"
)

// DefaultPageSize bounds a single tasks/list response, mirroring the
// tools/resources/prompts list methods' pagination convention.
const DefaultPageSize = 1000

// DefaultTTL is used when CreateTaskParams carries no TTL.
const DefaultTTL = 10 * time.Minute

type entry struct {
	mu     sync.Mutex
	task   mcp.Task
	result *mcp.CallToolResult
	rpcErr *mcp.McpError

	sessionID         string
	originalRequestID mcp.RequestID

	queue    *messageQueue
	updated  *broadcaster
	expireAt time.Time
	notifier Notifier
}

// Notifier lets the store tell the owning session's transport about status
// changes (notifications/tasks/status), without this package depending on
// the server package. A nil Notifier is fine; changes simply go unnotified
// (the client can still observe them by polling tasks/get).
type Notifier interface {
	NotifyTaskStatus(taskID string, status mcp.TaskStatus)
}

// Store is the in-memory reference task store from spec.md §4.7.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	reaper *cron.Cron
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// CreateTask mints a task in status "working" and stores it, owned by
// sessionID and correlated to the tools/call request that spawned it.
func (s *Store) CreateTask(params mcp.CreateTaskParams, originalRequestID mcp.RequestID, sessionID string, notifier Notifier) *mcp.Task {
	ttl := params.TTLMillis
	if ttl <= 0 {
		ttl = DefaultTTL.Milliseconds()
	}
	now := time.Now()
	e := &entry{
		task: mcp.Task{
			TaskID:        uuid.NewString(),
			Status:        mcp.TaskWorking,
			TTLMillis:     ttl,
			PollInterval:  500,
			CreatedAt:     &now,
			LastUpdatedAt: &now,
		},
		sessionID:         sessionID,
		originalRequestID: originalRequestID,
		queue:             newMessageQueue(),
		updated:           newBroadcaster(),
		expireAt:          now.Add(time.Duration(ttl) * time.Millisecond),
		notifier:          notifier,
	}
	s.mu.Lock()
	s.entries[e.task.TaskID] = e
	s.mu.Unlock()
	obs.TasksActive.WithLabelValues(string(mcp.TaskWorking)).Inc()
	t := e.task
	return &t
}

func (s *Store) get(taskID string) (*entry, bool) {
	s.mu.Lock()
	e, ok := s.entries[taskID]
	s.mu.Unlock()
	return e, ok
}

// GetTask returns a snapshot of the task's current metadata.
func (s *Store) GetTask(taskID string) (*mcp.Task, bool) {
	e, ok := s.get(taskID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	t := e.task
	e.mu.Unlock()
	return &t, true
}

// ListTasks returns a page of tasks in ascending taskId order.
func (s *Store) ListTasks(cursor string, pageSize int) ([]*mcp.Task, string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	// Sort for stable pagination, matching the server registry's
	// sorted-unique-ID convention (server/registry.go).
	slices.Sort(ids)

	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id > cursor {
				start = i
				break
			}
			start = i + 1
		}
	}
	end := start + pageSize
	var next string
	if end < len(ids) {
		next = ids[end-1]
	} else {
		end = len(ids)
	}
	var out []*mcp.Task
	for _, id := range ids[start:end] {
		if t, ok := s.GetTask(id); ok {
			out = append(out, t)
		}
	}
	return out, next, nil
}

// UpdateStatus transitions a non-terminal task to status, touching
// lastUpdatedAt and waking any waiters. A no-op for an unknown task.
func (s *Store) UpdateStatus(taskID string, status mcp.TaskStatus, statusMessage string) {
	e, ok := s.get(taskID)
	if !ok {
		return
	}
	e.mu.Lock()
	now := time.Now()
	e.task.Status = status
	e.task.StatusMessage = statusMessage
	e.task.LastUpdatedAt = &now
	notifier := e.notifier
	e.mu.Unlock()
	e.updated.broadcast()
	if notifier != nil {
		notifier.NotifyTaskStatus(taskID, status)
	}
}

// StoreResult transitions a task to a terminal status and persists its
// result (a CallToolResult for "completed", an McpError for "failed" or
// "cancelled"), waking any waiters.
func (s *Store) StoreResult(taskID string, status mcp.TaskStatus, result *mcp.CallToolResult, rpcErr *mcp.McpError) {
	e, ok := s.get(taskID)
	if !ok {
		return
	}
	e.mu.Lock()
	now := time.Now()
	prev := e.task.Status
	e.task.Status = status
	e.task.LastUpdatedAt = &now
	e.result = result
	e.rpcErr = rpcErr
	notifier := e.notifier
	e.mu.Unlock()
	e.updated.broadcast()
	if !prev.Terminal() {
		obs.RecordTaskTerminal(string(prev), string(status))
	}
	if notifier != nil {
		notifier.NotifyTaskStatus(taskID, status)
	}
}

// GetResult returns the stored terminal result. If the task hasn't reached
// a terminal status, or doesn't exist, it returns an McpError{invalidRequest}.
func (s *Store) GetResult(taskID string) (*mcp.CallToolResult, *mcp.McpError, error) {
	e, ok := s.get(taskID)
	if !ok {
		return nil, nil, mcp.NewMcpError(mcp.CodeInvalidRequest, fmt.Sprintf("unknown task %q", taskID), nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.task.Status.Terminal() {
		return nil, nil, mcp.NewMcpError(mcp.CodeInvalidRequest, fmt.Sprintf("task %q has not completed", taskID), nil)
	}
	return e.result, e.rpcErr, nil
}

// Cancel marks a non-terminal task cancelled and wakes waiters. It reports
// whether the task was actually transitioned (false if already terminal or
// unknown).
func (s *Store) Cancel(taskID string) bool {
	e, ok := s.get(taskID)
	if !ok {
		return false
	}
	e.mu.Lock()
	if e.task.Status.Terminal() {
		e.mu.Unlock()
		return false
	}
	prev := e.task.Status
	now := time.Now()
	e.task.Status = mcp.TaskCancelled
	e.task.LastUpdatedAt = &now
	notifier := e.notifier
	e.mu.Unlock()
	e.updated.broadcast()
	obs.RecordTaskTerminal(string(prev), string(mcp.TaskCancelled))
	if notifier != nil {
		notifier.NotifyTaskStatus(taskID, mcp.TaskCancelled)
	}
	return true
}

// WaitForUpdate blocks until the next status update/result/cancellation for
// taskID, or until ctx is done. Multiple concurrent waiters are supported.
func (s *Store) WaitForUpdate(ctx context.Context, taskID string) error {
	e, ok := s.get(taskID)
	if !ok {
		return fmt.Errorf("tasks: unknown task %q", taskID)
	}
	select {
	case <-e.updated.wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Queue returns the per-task nested-request queue, creating nothing (the
// queue is allocated at CreateTask time).
func (s *Store) Queue(taskID string) *messageQueue {
	e, ok := s.get(taskID)
	if !ok {
		return nil
	}
	return e.queue
}

// updateSignal exposes the task's broadcaster for the result handler loop
// to select on alongside the queue's signal.
func (s *Store) updateSignal(taskID string) <-chan struct{} {
	e, ok := s.get(taskID)
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.updated.wait()
}

// StartReaper runs a cron-scheduled sweep (expression, e.g. "@every 1m")
// that evicts tasks past their TTL, regardless of status. Grounded on
// HyphaGroup-oubliette/internal/schedule/cron.go's use of
// github.com/robfig/cron/v3.
func (s *Store) StartReaper(expr string) error {
	s.reaper = cron.New()
	_, err := s.reaper.AddFunc(expr, s.reapExpired)
	if err != nil {
		return fmt.Errorf("tasks: invalid reaper schedule %q: %w", expr, err)
	}
	s.reaper.Start()
	return nil
}

func (s *Store) reapExpired() {
	now := time.Now()
	s.mu.Lock()
	var expired []string
	for id, e := range s.entries {
		e.mu.Lock()
		if now.After(e.expireAt) {
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}
	for _, id := range expired {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	for range expired {
		obs.TasksReapedTotal.Inc()
	}
}

// Stop halts the TTL reaper, if running.
func (s *Store) Stop() {
	if s.reaper != nil {
		s.reaper.Stop()
	}
}
