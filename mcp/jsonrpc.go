// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"encoding/json"
	"fmt"
)

// jsonrpcVersion is the protocol version string for every message on the wire.
const jsonrpcVersion = "2.0"

// JSON-RPC 2.0 and MCP-specific error codes.
//
// The standard codes match the JSON-RPC 2.0 spec exactly; the MCP-specific
// codes below -32000 are reserved by this protocol.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeConnectionClosed is returned to every pending awaiter when the
	// underlying transport closes before a response arrives.
	CodeConnectionClosed = -32000
	// CodeRequestTimeout is returned when a request's deadline elapses
	// before a response arrives.
	CodeRequestTimeout = -32001
	// CodeURLElicitationRequired is returned when a tool call cannot
	// proceed until the caller resolves one or more pending URL-mode
	// elicitations; Data carries the list of pending elicitation IDs.
	CodeURLElicitationRequired = -32042

	// CodeResourceNotFound mirrors the MCP resources/read contract.
	// It intentionally avoids -32002, which this package reserves
	// (following the JSON-RPC "server closing" convention some peers use).
	CodeResourceNotFound = -31002
	// CodeUnsupportedMethod denotes a method that is well-formed and
	// routable but unsupported by the peer's negotiated capabilities. This
	// package's own capability refusals (NewCapabilityError) use
	// CodeInvalidRequest instead.
	CodeUnsupportedMethod = -31001
)

// RequestID is the JSON-RPC id: a string, an integer, or absent.
// It round-trips through JSON without coercing numeric types, so a
// server-minted integer id and a client-minted string id never collide.
type RequestID struct {
	s       string
	n       int64
	isStr   bool
	isSet   bool
	numeric bool
}

// StringID builds a string-valued RequestID.
func StringID(s string) RequestID { return RequestID{s: s, isStr: true, isSet: true} }

// IntID builds an integer-valued RequestID.
func IntID(n int64) RequestID { return RequestID{n: n, isSet: true, numeric: true} }

// IsValid reports whether the id was actually set on the wire
// (as opposed to the zero RequestID, used for notifications).
func (id RequestID) IsValid() bool { return id.isSet }

// Raw returns the id as a string or int64, whichever it holds, or nil.
func (id RequestID) Raw() any {
	switch {
	case !id.isSet:
		return nil
	case id.isStr:
		return id.s
	default:
		return id.n
	}
}

func (id RequestID) String() string {
	if !id.isSet {
		return "<none>"
	}
	if id.isStr {
		return id.s
	}
	return fmt.Sprintf("%d", id.n)
}

// key returns a value suitable for use as a map key uniquely identifying
// this id regardless of whether it arrived as a JSON string or number.
func (id RequestID) key() string {
	if id.isStr {
		return "s:" + id.s
	}
	return fmt.Sprintf("n:%d", id.n)
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	if !id.isSet {
		return []byte("null"), nil
	}
	if id.isStr {
		return json.Marshal(id.s)
	}
	return json.Marshal(id.n)
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*id = RequestID{}
	case string:
		*id = StringID(t)
	case float64:
		*id = IntID(int64(t))
	default:
		return fmt.Errorf("mcp: invalid request id %v (%T)", v, v)
	}
	return nil
}

// Meta is the free-form bag piggy-backed inside params/result under the
// wire key "_meta". The two reserved keys this package understands are
// "progressToken" (echoed in progress notifications) and "task" (present
// on a tools/call request to request task augmentation, or on nested
// requests issued from inside a task handler to correlate them with their
// owning task).
type Meta map[string]any

// ProgressToken returns the progress token carried in this bag, if any.
// A progress token is a scalar (string or number); absence is reported as
// (nil, false).
func (m Meta) ProgressToken() (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m["progressToken"]
	return v, ok
}

// TaskMeta returns the "task" entry, decoded into a TaskRequestMeta.
func (m Meta) TaskMeta() (TaskRequestMeta, bool) {
	if m == nil {
		return TaskRequestMeta{}, false
	}
	raw, ok := m["task"]
	if !ok {
		return TaskRequestMeta{}, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return TaskRequestMeta{}, false
	}
	var tm TaskRequestMeta
	if err := json.Unmarshal(b, &tm); err != nil {
		return TaskRequestMeta{}, false
	}
	return tm, true
}

// TaskRequestMeta is the shape of "_meta.task" on a task-augmented
// tools/call request, or "_meta.relatedTask" on a nested request issued
// from inside a task handler.
type TaskRequestMeta struct {
	TTLMillis int64  `json:"ttl,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
}

// WithMeta merges m into the raw JSON object obj under "_meta", e.g. to
// attach "relatedTask" to a nested request issued from a task handler
// (spec.md §4.7). obj must marshal to a JSON object, or be nil.
func WithMeta(obj json.RawMessage, m Meta) (json.RawMessage, error) {
	return withMeta(obj, m)
}

// withMeta merges m into the raw JSON object obj under "_meta". obj must
// marshal to a JSON object (or be nil, in which case a fresh object is
// created holding only _meta).
func withMeta(obj json.RawMessage, m Meta) (json.RawMessage, error) {
	if len(m) == 0 {
		if obj == nil {
			return json.RawMessage("{}"), nil
		}
		return obj, nil
	}
	fields := map[string]json.RawMessage{}
	if len(obj) > 0 {
		if err := json.Unmarshal(obj, &fields); err != nil {
			return nil, fmt.Errorf("mcp: params/result is not a JSON object: %w", err)
		}
	}
	metaJSON, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	fields["_meta"] = metaJSON
	return json.Marshal(fields)
}

// extractMeta pulls the "_meta" key out of a raw JSON object, if present.
func extractMeta(obj json.RawMessage) Meta {
	if len(obj) == 0 {
		return nil
	}
	var wrapper struct {
		Meta Meta `json:"_meta"`
	}
	if err := json.Unmarshal(obj, &wrapper); err != nil {
		return nil
	}
	return wrapper.Meta
}

// Request is a JSON-RPC request: a method call expecting a Response or
// Error bearing the same id.
type Request struct {
	ID     RequestID
	Method string
	Params json.RawMessage
}

// Meta returns the _meta bag embedded in Params, if any.
func (r *Request) Meta() Meta { return extractMeta(r.Params) }

// Notification is a JSON-RPC request with no id: fire-and-forget.
type Notification struct {
	Method string
	Params json.RawMessage
}

func (n *Notification) Meta() Meta { return extractMeta(n.Params) }

// Response is a successful JSON-RPC reply.
type Response struct {
	ID     RequestID
	Result json.RawMessage
}

// ErrorMessage is a JSON-RPC error reply.
type ErrorMessage struct {
	ID    RequestID
	Code  int
	Msg   string
	Data  json.RawMessage
}

// Message is the tagged union of the four wire message shapes. Exactly one
// of the concrete types (*Request, *Notification, *Response, *ErrorMessage)
// satisfies it for any well-formed line on the wire.
type Message interface {
	isMessage()
}

func (*Request) isMessage()      {}
func (*Notification) isMessage() {}
func (*Response) isMessage()     {}
func (*ErrorMessage) isMessage() {}

// wireEnvelope is the on-the-wire shape used for both marshaling and the
// initial unmarshal pass that decides which variant a message is.
type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// EncodeMessage serializes a Message to its wire JSON form.
func EncodeMessage(msg Message) ([]byte, error) {
	env := wireEnvelope{JSONRPC: jsonrpcVersion}
	switch m := msg.(type) {
	case *Request:
		id := m.ID
		env.ID = &id
		env.Method = m.Method
		env.Params = m.Params
	case *Notification:
		env.Method = m.Method
		env.Params = m.Params
	case *Response:
		id := m.ID
		env.ID = &id
		env.Result = m.Result
	case *ErrorMessage:
		id := m.ID
		env.ID = &id
		env.Error = &wireError{Code: m.Code, Message: m.Msg, Data: m.Data}
	default:
		return nil, fmt.Errorf("mcp: unknown message type %T", msg)
	}
	return json.Marshal(env)
}

// ParseMessage parses one wire-format JSON object into its Message
// variant, applying the shape rule from the MCP wire spec: method+id is a
// Request, method without id is a Notification, result is a Response,
// error is an Error. Any other shape is a parse error.
func ParseMessage(data []byte) (Message, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("mcp: parse error: %w", err)
	}
	switch {
	case env.Method != "" && env.ID != nil:
		return &Request{ID: *env.ID, Method: env.Method, Params: env.Params}, nil
	case env.Method != "" && env.ID == nil:
		return &Notification{Method: env.Method, Params: env.Params}, nil
	case env.Error != nil:
		id := RequestID{}
		if env.ID != nil {
			id = *env.ID
		}
		return &ErrorMessage{ID: id, Code: env.Error.Code, Msg: env.Error.Message, Data: env.Error.Data}, nil
	case env.Result != nil:
		id := RequestID{}
		if env.ID != nil {
			id = *env.ID
		}
		return &Response{ID: id, Result: env.Result}, nil
	default:
		return nil, fmt.Errorf("mcp: malformed message: not a request, notification, response, or error")
	}
}
