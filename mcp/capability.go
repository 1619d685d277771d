// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import "strings"

// CapabilityName returns the capability that gates method, e.g. "tools"
// for both "tools/list" and "tools/call" — the leading path segment,
// which is what NewCapabilityError reports as the missing capability.
func CapabilityName(method string) string {
	if i := strings.IndexByte(method, '/'); i >= 0 {
		return method[:i]
	}
	return method
}

// ClientCapabilities is what a client advertises to a server during
// initialize. A nil sub-object means "not supported"; the zero value
// advertises nothing.
type ClientCapabilities struct {
	Roots        *RootsCapability        `json:"roots,omitempty"`
	Sampling     *SamplingCapability     `json:"sampling,omitempty"`
	Elicitation  *ElicitationCapability  `json:"elicitation,omitempty"`
	Tasks        *ClientTasksCapability  `json:"tasks,omitempty"`
	Experimental map[string]any          `json:"experimental,omitempty"`
}

type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type SamplingCapability struct {
	Tools bool `json:"tools,omitempty"`
}

type ElicitationCapability struct {
	Form bool `json:"form,omitempty"`
	URL  bool `json:"url,omitempty"`
}

type ClientTasksCapability struct {
	Cancel   bool                     `json:"cancel,omitempty"`
	List     bool                     `json:"list,omitempty"`
	Requests ClientTaskRequestsSupport `json:"requests,omitempty"`
}

type ClientTaskRequestsSupport struct {
	Elicitation *struct {
		Create bool `json:"create,omitempty"`
	} `json:"elicitation,omitempty"`
	Sampling *struct {
		CreateMessage bool `json:"createMessage,omitempty"`
	} `json:"sampling,omitempty"`
}

// ServerCapabilities is what a server advertises to a client during
// initialize.
type ServerCapabilities struct {
	Logging     *LoggingCapability     `json:"logging,omitempty"`
	Prompts     *PromptsCapability     `json:"prompts,omitempty"`
	Resources   *ResourcesCapability   `json:"resources,omitempty"`
	Tools       *ToolsCapability       `json:"tools,omitempty"`
	Completions *CompletionsCapability `json:"completions,omitempty"`
	Tasks       *ServerTasksCapability `json:"tasks,omitempty"`
	Elicitation *ElicitationCapability `json:"elicitation,omitempty"`
}

type LoggingCapability struct{}

type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type CompletionsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ServerTasksCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// MergeClientCapabilities recursively unions two ClientCapabilities: a
// sub-object present in either argument is present in the result, with
// boolean flags OR'd. Presence of a sub-object implies presence of its
// parent, matching spec.md §3's capability merge rule. Experimental is
// taken from a unchanged; b's Experimental entries are not merged in.
func MergeClientCapabilities(a, b ClientCapabilities) ClientCapabilities {
	out := a
	if b.Roots != nil {
		if out.Roots == nil {
			out.Roots = &RootsCapability{}
		}
		out.Roots.ListChanged = out.Roots.ListChanged || b.Roots.ListChanged
	}
	if b.Sampling != nil {
		if out.Sampling == nil {
			out.Sampling = &SamplingCapability{}
		}
		out.Sampling.Tools = out.Sampling.Tools || b.Sampling.Tools
	}
	if b.Elicitation != nil {
		if out.Elicitation == nil {
			out.Elicitation = &ElicitationCapability{}
		}
		out.Elicitation.Form = out.Elicitation.Form || b.Elicitation.Form
		out.Elicitation.URL = out.Elicitation.URL || b.Elicitation.URL
	}
	if b.Tasks != nil {
		if out.Tasks == nil {
			out.Tasks = &ClientTasksCapability{}
		}
		out.Tasks.Cancel = out.Tasks.Cancel || b.Tasks.Cancel
		out.Tasks.List = out.Tasks.List || b.Tasks.List
		if r := b.Tasks.Requests.Elicitation; r != nil {
			if out.Tasks.Requests.Elicitation == nil {
				c := *r
				out.Tasks.Requests.Elicitation = &c
			} else {
				out.Tasks.Requests.Elicitation.Create = out.Tasks.Requests.Elicitation.Create || r.Create
			}
		}
		if r := b.Tasks.Requests.Sampling; r != nil {
			if out.Tasks.Requests.Sampling == nil {
				c := *r
				out.Tasks.Requests.Sampling = &c
			} else {
				out.Tasks.Requests.Sampling.CreateMessage = out.Tasks.Requests.Sampling.CreateMessage || r.CreateMessage
			}
		}
	}
	return out
}

// Gating predicates implement the abridged table in spec.md §4.4. Each
// reports whether the named method is permitted given the peer's
// negotiated capabilities (for methods the peer must support to receive)
// or our own configured capabilities (for notifications we originate).

// ClientCanReceive reports whether a server may send the server→client
// method to a client advertising caps.
func ClientCanReceive(method string, caps ClientCapabilities) bool {
	switch method {
	case "sampling/createMessage":
		return caps.Sampling != nil
	case "roots/list":
		return caps.Roots != nil
	case "elicitation/create":
		return caps.Elicitation != nil
	default:
		return true
	}
}

// ServerCanReceive reports whether a client may send the client→server
// method to a server advertising caps.
func ServerCanReceive(method string, caps ServerCapabilities) bool {
	switch method {
	case "notifications/resources/updated":
		return caps.Resources != nil && caps.Resources.Subscribe
	case "notifications/tools/list_changed":
		return caps.Tools != nil && caps.Tools.ListChanged
	case "notifications/resources/list_changed":
		return caps.Resources != nil && caps.Resources.ListChanged
	case "notifications/prompts/list_changed":
		return caps.Prompts != nil && caps.Prompts.ListChanged
	case "notifications/tasks/list_changed":
		return caps.Tasks != nil && caps.Tasks.ListChanged
	case "tools/list", "tools/call":
		return caps.Tools != nil
	case "resources/list", "resources/read", "resources/subscribe", "resources/unsubscribe", "resources/templates/list":
		return caps.Resources != nil
	case "prompts/list", "prompts/get":
		return caps.Prompts != nil
	case "completion/complete":
		return caps.Completions != nil
	case "logging/setLevel":
		return caps.Logging != nil
	case "tasks/list", "tasks/cancel", "tasks/get", "tasks/result":
		return caps.Tasks != nil
	default:
		return true
	}
}

// EnforcementMode controls whether a capability-gating violation blocks
// the call (Strict, the spec.md default) or only logs a warning (Warn,
// the documented relaxation for implementers who need it).
type EnforcementMode int

const (
	Strict EnforcementMode = iota
	Warn
)
