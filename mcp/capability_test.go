// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import "testing"

func TestClientCanReceive(t *testing.T) {
	tests := []struct {
		method string
		caps   ClientCapabilities
		want   bool
	}{
		{"sampling/createMessage", ClientCapabilities{}, false},
		{"sampling/createMessage", ClientCapabilities{Sampling: &SamplingCapability{}}, true},
		{"roots/list", ClientCapabilities{}, false},
		{"roots/list", ClientCapabilities{Roots: &RootsCapability{}}, true},
		{"elicitation/create", ClientCapabilities{Elicitation: &ElicitationCapability{}}, true},
		{"ping", ClientCapabilities{}, true},
	}
	for _, tc := range tests {
		if got := ClientCanReceive(tc.method, tc.caps); got != tc.want {
			t.Errorf("ClientCanReceive(%q, %+v) = %v, want %v", tc.method, tc.caps, got, tc.want)
		}
	}
}

func TestServerCanReceive(t *testing.T) {
	tests := []struct {
		method string
		caps   ServerCapabilities
		want   bool
	}{
		{"tools/call", ServerCapabilities{}, false},
		{"tools/call", ServerCapabilities{Tools: &ToolsCapability{}}, true},
		{"resources/subscribe", ServerCapabilities{Resources: &ResourcesCapability{Subscribe: false}}, true},
		{"tasks/get", ServerCapabilities{}, false},
		{"tasks/get", ServerCapabilities{Tasks: &ServerTasksCapability{}}, true},
		{"ping", ServerCapabilities{}, true},
	}
	for _, tc := range tests {
		if got := ServerCanReceive(tc.method, tc.caps); got != tc.want {
			t.Errorf("ServerCanReceive(%q, %+v) = %v, want %v", tc.method, tc.caps, got, tc.want)
		}
	}
}

func TestMergeClientCapabilitiesUnionsFlags(t *testing.T) {
	a := ClientCapabilities{Roots: &RootsCapability{ListChanged: false}}
	b := ClientCapabilities{Roots: &RootsCapability{ListChanged: true}, Sampling: &SamplingCapability{}}
	merged := MergeClientCapabilities(a, b)
	if merged.Roots == nil || !merged.Roots.ListChanged {
		t.Errorf("merged.Roots = %+v, want ListChanged=true", merged.Roots)
	}
	if merged.Sampling == nil {
		t.Error("merged.Sampling should be present after merging b's Sampling capability")
	}
}
