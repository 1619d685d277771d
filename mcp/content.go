// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

// Content is the tagged union of message/result content blocks: text,
// image, audio, or an embedded resource. The Type field discriminates it
// on the wire.
type Content struct {
	Type string `json:"type"`

	// Type == "text"
	Text string `json:"text,omitempty"`

	// Type == "image" or "audio"
	Data     string `json:"data,omitempty"` // base64
	MimeType string `json:"mimeType,omitempty"`

	// Type == "resource"
	Resource *EmbeddedResource `json:"resource,omitempty"`

	Annotations any `json:"annotations,omitempty"`
}

// EmbeddedResource is the inline form of a Resource inside Content.
type EmbeddedResource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// TextContent builds a Content block of type "text".
func TextContent(s string) Content { return Content{Type: "text", Text: s} }

// CallToolResult is the result of tools/call (or the final result stored
// for a completed task). isError=true distinguishes "the tool ran and
// reported failure" from a JSON-RPC Error, per spec.md §7's propagation
// policy.
type CallToolResult struct {
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError,omitempty"`
	Meta              Meta      `json:"_meta,omitempty"`
}

// ErrorResult wraps an error message as a failed CallToolResult, the
// conversion spec.md §4.5 requires for uncaught tool-callback exceptions.
func ErrorResult(err error) *CallToolResult {
	return &CallToolResult{Content: []Content{TextContent(err.Error())}, IsError: true}
}

// TaskSupport describes a tool's relationship to the task subsystem; a
// Tool carries it in its ExecutionHint.
type TaskSupport string

const (
	TaskSupportForbidden TaskSupport = "forbidden"
	TaskSupportOptional  TaskSupport = "optional"
	TaskSupportRequired  TaskSupport = "required"
)

type ExecutionHint struct {
	TaskSupport TaskSupport `json:"taskSupport,omitempty"`
}

// Tool is the metadata half of a tool registration; the callback lives
// alongside it in the server package's ServerTool.
type Tool struct {
	Name         string         `json:"name"`
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	InputSchema  any            `json:"inputSchema"`
	OutputSchema any            `json:"outputSchema,omitempty"`
	Execution    *ExecutionHint `json:"execution,omitempty"`
	Annotations  any            `json:"annotations,omitempty"`
}

// Resource is a statically-addressable resource's metadata.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate is a URI-template-addressable family of resources.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PromptArgument declares one argument a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Completable bool   `json:"completable,omitempty"`
	Type        string `json:"type,omitempty"` // "string" unless noted
}

// Prompt is a named, parameterized prompt template's metadata.
type Prompt struct {
	Name        string           `json:"name"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptMessage is one message in a prompts/get result.
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}
