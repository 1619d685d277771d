// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRequestIDRoundTrip(t *testing.T) {
	cases := []RequestID{StringID("abc"), IntID(42), IntID(0)}
	for _, id := range cases {
		data, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal %v: %v", id, err)
		}
		var got RequestID
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got.Raw() != id.Raw() {
			t.Errorf("round trip %v -> %s -> %v, want unchanged", id.Raw(), data, got.Raw())
		}
	}
}

func TestRequestIDStringVsIntDistinct(t *testing.T) {
	s := StringID("1")
	n := IntID(1)
	if s.key() == n.key() {
		t.Errorf("StringID(%q) and IntID(1) must not collide as map keys", "1")
	}
}

func TestParseMessageShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Message
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`, &Request{ID: IntID(1), Method: "ping", Params: json.RawMessage("{}")}},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, &Notification{Method: "notifications/initialized"}},
		{"response", `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`, &Response{ID: IntID(1), Result: json.RawMessage(`{"ok":true}`)}},
		{"error", `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`, &ErrorMessage{ID: IntID(1), Code: -32601, Msg: "nope"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMessage([]byte(tc.in))
			if err != nil {
				t.Fatalf("ParseMessage: %v", err)
			}
			if diff := cmp.Diff(tc.want, got, cmp.AllowUnexported(RequestID{})); diff != "" {
				t.Errorf("ParseMessage mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	req := &Request{ID: StringID("r1"), Method: "tools/call", Params: json.RawMessage(`{"name":"echo"}`)}
	data, err := EncodeMessage(req)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	got, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if diff := cmp.Diff(Message(req), got, cmp.AllowUnexported(RequestID{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWithMetaMergesIntoObject(t *testing.T) {
	base := json.RawMessage(`{"name":"echo"}`)
	tagged, err := WithMeta(base, Meta{"task": TaskRequestMeta{TaskID: "t1"}})
	if err != nil {
		t.Fatalf("WithMeta: %v", err)
	}
	meta := extractMeta(tagged)
	tm, ok := meta.TaskMeta()
	if !ok {
		t.Fatalf("expected task meta, got none in %s", tagged)
	}
	if tm.TaskID != "t1" {
		t.Errorf("TaskID = %q, want t1", tm.TaskID)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(tagged, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["name"]; !ok {
		t.Errorf("WithMeta dropped the original \"name\" field: %s", tagged)
	}
}

func TestWithMetaOnNilObject(t *testing.T) {
	tagged, err := WithMeta(nil, Meta{"progressToken": "pt-1"})
	if err != nil {
		t.Fatalf("WithMeta: %v", err)
	}
	meta := extractMeta(tagged)
	tok, ok := meta.ProgressToken()
	if !ok || tok != "pt-1" {
		t.Errorf("ProgressToken() = %v, %v; want pt-1, true", tok, ok)
	}
}
