// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

// Root is one entry in a client's roots/list response: a URI the server
// may treat as a workspace boundary.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// ListRootsResult is roots/list's result shape.
type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

// SamplingMessage is one turn in a sampling/createMessage conversation.
type SamplingMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// ModelPreferences hints the client's model selection for a sampling
// request; all fields are advisory.
type ModelPreferences struct {
	Hints                []ModelHint `json:"hints,omitempty"`
	CostPriority         float64     `json:"costPriority,omitempty"`
	SpeedPriority        float64     `json:"speedPriority,omitempty"`
	IntelligencePriority float64     `json:"intelligencePriority,omitempty"`
}

// ModelHint names a preferred model family, e.g. "claude-3-sonnet".
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

// CreateMessageParams is sampling/createMessage's params.
type CreateMessageParams struct {
	Messages         []SamplingMessage `json:"messages"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	MaxTokens        int               `json:"maxTokens,omitempty"`
	Meta             Meta              `json:"_meta,omitempty"`
}

// CreateMessageResult is sampling/createMessage's result: a single
// assistant turn plus which model actually produced it.
type CreateMessageResult struct {
	Role       string  `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model,omitempty"`
	StopReason string  `json:"stopReason,omitempty"`
	Meta       Meta    `json:"_meta,omitempty"`
}

// ElicitMode distinguishes the two elicitation submodes spec.md §4.4/§12
// calls out: an in-band structured form, or an out-of-band URL the user
// must visit.
type ElicitMode string

const (
	ElicitForm ElicitMode = "form"
	ElicitURL  ElicitMode = "url"
)

// ElicitParams is elicitation/create's params.
type ElicitParams struct {
	Mode            ElicitMode `json:"mode"`
	Message         string     `json:"message"`
	RequestedSchema any        `json:"requestedSchema,omitempty"` // mode == form
	URL             string     `json:"url,omitempty"`             // mode == url
	Meta            Meta       `json:"_meta,omitempty"`
}

// ElicitResult is elicitation/create's result. Action is one of "accept",
// "decline", "cancel"; Content is populated only when Action == "accept"
// and Mode == form.
type ElicitResult struct {
	Action  string         `json:"action"`
	Content map[string]any `json:"content,omitempty"`
}
