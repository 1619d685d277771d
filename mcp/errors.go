// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// McpError wraps a JSON-RPC error response or a locally-synthesized
// protocol error of the same shape (e.g. a timeout). It is the error type
// returned from Session.Request and from handler callbacks that want to
// surface a wire-level error rather than a CallToolResult with isError.
type McpError struct {
	Code int
	Msg  string
	Data json.RawMessage
}

// NewMcpError constructs an McpError. data may be nil.
func NewMcpError(code int, msg string, data json.RawMessage) *McpError {
	return &McpError{Code: code, Msg: msg, Data: data}
}

func (e *McpError) Error() string {
	return fmt.Sprintf("mcp: %s (code %d)", e.Msg, e.Code)
}

// Is reports two McpErrors equal if they share a code; this lets callers
// write errors.Is(err, &McpError{Code: mcp.CodeInvalidParams}).
func (e *McpError) Is(target error) bool {
	t, ok := target.(*McpError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func errInvalidParams(format string, args ...any) *McpError {
	return NewMcpError(CodeInvalidParams, fmt.Sprintf(format, args...), nil)
}

func errMethodNotFound(method string) *McpError {
	return NewMcpError(CodeMethodNotFound, fmt.Sprintf("method not found: %s", method), nil)
}

func errInternal(format string, args ...any) *McpError {
	return NewMcpError(CodeInternalError, fmt.Sprintf(format, args...), nil)
}

// ErrConnectionClosed is returned by pending awaiters when the session's
// transport closes before their response arrives.
var ErrConnectionClosed = NewMcpError(CodeConnectionClosed, "connection closed", nil)

// ErrRequestTimeout is returned by pending awaiters whose deadline elapses.
var ErrRequestTimeout = NewMcpError(CodeRequestTimeout, "request timeout", nil)

// NewCapabilityError is raised locally, before anything is written to the
// wire, when an outbound request/notification would violate the peer's
// (or our own) negotiated capabilities. Per spec.md §8 scenario S6, this
// is an McpError{invalidRequest} like any other wire-level refusal, so
// errors.As(err, &McpError{}) and errors.Is(err, &McpError{Code:
// CodeInvalidRequest}) both work for a caller that never sent anything.
func NewCapabilityError(method, capability string) *McpError {
	return NewMcpError(CodeInvalidRequest, fmt.Sprintf("method %q requires capability %q, which the peer did not advertise", method, capability), nil)
}

// ErrAlreadyConnected is returned by Session.Connect on a session that has
// already completed a connect.
var ErrAlreadyConnected = errors.New("mcp: session already connected")

// ErrSessionClosed is returned by operations attempted after Session.Close.
var ErrSessionClosed = errors.New("mcp: session closed")

// ErrAlreadyRegistered is returned when a tool/resource/prompt/template is
// registered under a key that already exists.
type ErrAlreadyRegistered struct {
	Kind string
	Key  string
}

func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("mcp: %s %q is already registered", e.Kind, e.Key)
}
