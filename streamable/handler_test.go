// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package streamable_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relaymcp/mcp-go/client"
	"github.com/relaymcp/mcp-go/mcp"
	"github.com/relaymcp/mcp-go/server"
	"github.com/relaymcp/mcp-go/streamable"
)

func newTestServer(t *testing.T) (*httptest.Server, *server.Server) {
	t.Helper()
	srv := server.NewServer("streamable-test-server", "v0.0.0-test", &server.Options{
		Capabilities: mcp.ServerCapabilities{Logging: &mcp.LoggingCapability{}},
	})
	err := srv.AddTools(&server.ServerTool{
		Tool: &mcp.Tool{
			Name: "echo",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"message": map[string]any{"type": "string"}},
			},
		},
		Handler: func(_ context.Context, _ *server.ServerSession, args json.RawMessage) (*mcp.CallToolResult, error) {
			var p struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, err
			}
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(p.Message)}}, nil
		},
	})
	if err != nil {
		t.Fatalf("AddTools: %v", err)
	}
	h := streamable.NewHandler(srv)
	ts := httptest.NewServer(h.Routes())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts, srv
}

func TestStreamableHandshakeAndToolCall(t *testing.T) {
	ts, _ := newTestServer(t)
	transport := streamable.NewClientTransport(ts.URL, ts.Client())
	cli := client.NewClient("streamable-test-client", "v0.0.0-test", &client.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cs, err := cli.Connect(ctx, transport)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cs.Close()

	if transport.SessionID() == "" {
		t.Error("expected a session id to be assigned after the initialize handshake")
	}

	result, err := cs.CallTool(ctx, "echo", map[string]string{"message": "hello"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hello" {
		t.Errorf("result.Content = %+v", result.Content)
	}
}

func TestStreamableDeleteEndsSession(t *testing.T) {
	ts, _ := newTestServer(t)
	transport := streamable.NewClientTransport(ts.URL, ts.Client())
	cli := client.NewClient("streamable-test-client", "v0.0.0-test", &client.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cs, err := cli.Connect(ctx, transport)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := transport.Close(); err != nil {
		t.Fatalf("transport.Close: %v", err)
	}
	cs.Close()
}

func TestStreamableListenBeforeSessionIDFails(t *testing.T) {
	ts, _ := newTestServer(t)
	transport := streamable.NewClientTransport(ts.URL, ts.Client())

	// Listen before any session id is known must fail fast rather than hang.
	err := transport.Listen(context.Background())
	if err == nil {
		t.Fatal("expected Listen to fail before a session id is assigned")
	}
}
