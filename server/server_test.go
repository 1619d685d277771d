// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/relaymcp/mcp-go/client"
	"github.com/relaymcp/mcp-go/internal/mcptest"
	"github.com/relaymcp/mcp-go/mcp"
	"github.com/relaymcp/mcp-go/server"
	"github.com/relaymcp/mcp-go/tasks"
)

func echoTool() *server.ServerTool {
	return &server.ServerTool{
		Tool: &mcp.Tool{
			Name:        "echo",
			Description: "echoes its message argument",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"message": map[string]any{"type": "string"}},
				"required":   []any{"message"},
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
	}
}

func TestCallToolDirect(t *testing.T) {
	p := mcptest.New(t, &server.Options{Capabilities: mcp.ServerCapabilities{}}, &client.Options{})
	if err := p.Server.AddTools(echoTool()); err != nil {
		t.Fatalf("AddTools: %v", err)
	}

	ctx := context.Background()
	result, err := p.ClientSession.CallTool(ctx, "echo", map[string]string{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Errorf("result.Content = %+v", result.Content)
	}
}

func TestCallToolUnknownName(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	_, err := p.ClientSession.CallTool(context.Background(), "nonexistent", map[string]string{})
	if err == nil {
		t.Fatal("expected an error calling an unregistered tool")
	}
}

func TestCallToolInvalidArgumentsRejectedBySchema(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	if err := p.Server.AddTools(echoTool()); err != nil {
		t.Fatalf("AddTools: %v", err)
	}
	_, err := p.ClientSession.CallTool(context.Background(), "echo", map[string]string{})
	if err == nil {
		t.Fatal("expected a schema validation error for a missing required argument")
	}
}

func countdownTool() *server.ServerTool {
	return &server.ServerTool{
		Tool: &mcp.Tool{
			Name:      "countdown",
			Execution: &mcp.ExecutionHint{TaskSupport: mcp.TaskSupportRequired},
		},
		TaskHandler: func(_ context.Context, _ *tasks.Session, _ json.RawMessage) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("liftoff")}}, nil
		},
	}
}

func TestCallToolTaskRequiredRefusedWithoutTaskMeta(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{Capabilities: mcp.ClientCapabilities{Tasks: &mcp.ClientTasksCapability{}}})
	if err := p.Server.AddTools(countdownTool()); err != nil {
		t.Fatalf("AddTools: %v", err)
	}
	_, err := p.ClientSession.CallTool(context.Background(), "countdown", map[string]any{})
	if err == nil {
		t.Fatal("expected CallTool to refuse a task-required tool")
	}
}

func TestCallToolStreamDrivesTaskToCompletion(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{Capabilities: mcp.ClientCapabilities{Tasks: &mcp.ClientTasksCapability{}}})
	if err := p.Server.AddTools(countdownTool()); err != nil {
		t.Fatalf("AddTools: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var finalResult *mcp.CallToolResult
	var sawCreated bool
	for ev := range p.ClientSession.CallToolStream(ctx, "countdown", map[string]any{}, 0) {
		switch ev.Kind {
		case client.TaskEventCreated:
			sawCreated = true
		case client.TaskEventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		case client.TaskEventResult:
			finalResult = ev.Result
		}
	}
	if !sawCreated {
		t.Error("expected a TaskEventCreated event")
	}
	if finalResult == nil || len(finalResult.Content) != 1 || finalResult.Content[0].Text != "liftoff" {
		t.Errorf("finalResult = %+v", finalResult)
	}
}

func TestCallToolStreamForbiddenTaskRejectedAsInvalidParams(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{Capabilities: mcp.ClientCapabilities{Tasks: &mcp.ClientTasksCapability{}}})
	if err := p.Server.AddTools(echoTool()); err != nil {
		t.Fatalf("AddTools: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var gotErr error
	for ev := range p.ClientSession.CallToolStream(ctx, "echo", map[string]string{"message": "hi"}, 0) {
		if ev.Kind == client.TaskEventError {
			gotErr = ev.Err
		}
	}
	var mcpErr *mcp.McpError
	if !errors.As(gotErr, &mcpErr) {
		t.Fatalf("gotErr = %v (%T), want an *mcp.McpError", gotErr, gotErr)
	}
	if mcpErr.Code != mcp.CodeInvalidParams {
		t.Errorf("mcpErr.Code = %d, want %d (invalidParams)", mcpErr.Code, mcp.CodeInvalidParams)
	}
}

// optionalEchoTool declares execution.taskSupport=optional but registers
// only a direct Handler (no TaskHandler), as resolve() explicitly allows.
func optionalEchoTool() *server.ServerTool {
	t := echoTool()
	t.Tool.Name = "optional-echo"
	t.Tool.Execution = &mcp.ExecutionHint{TaskSupport: mcp.TaskSupportOptional}
	return t
}

// TestCallToolOptionalWithOnlyDirectHandlerStillWorksUnaugmented exercises
// spec.md §4.5's "optional + not-augmented" path for a tool that only
// implements Handler: the call must still go through the task machinery
// (create, poll, fetch) and come back with the same result a direct call
// would produce.
func TestCallToolOptionalWithOnlyDirectHandlerStillWorksUnaugmented(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	if err := p.Server.AddTools(optionalEchoTool()); err != nil {
		t.Fatalf("AddTools: %v", err)
	}
	result, err := p.ClientSession.CallTool(context.Background(), "optional-echo", map[string]string{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Errorf("result.Content = %+v", result.Content)
	}
}

// structuredTool returns a tool whose output schema requires a "count"
// number property; its Handler is parameterized by whatever
// structuredContent the test wants to return.
func structuredTool(structured any) *server.ServerTool {
	return &server.ServerTool{
		Tool: &mcp.Tool{
			Name:        "structured",
			InputSchema: map[string]any{"type": "object"},
			OutputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"count": map[string]any{"type": "number"}},
				"required":   []any{"count"},
			},
		},
		Handler: func(_ context.Context, _ *server.ServerSession, _ json.RawMessage) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				Content:           []mcp.Content{mcp.TextContent("done")},
				StructuredContent: structured,
			}, nil
		},
	}
}

func TestCallToolValidatesStructuredContentAgainstOutputSchema(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	if err := p.Server.AddTools(structuredTool(map[string]any{"count": 3})); err != nil {
		t.Fatalf("AddTools: %v", err)
	}
	result, err := p.ClientSession.CallTool(context.Background(), "structured", map[string]any{})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "done" {
		t.Errorf("result.Content = %+v", result.Content)
	}
}

func TestCallToolRejectsStructuredContentFailingOutputSchema(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	if err := p.Server.AddTools(structuredTool(map[string]any{"count": "not-a-number"})); err != nil {
		t.Fatalf("AddTools: %v", err)
	}
	_, err := p.ClientSession.CallTool(context.Background(), "structured", map[string]any{})
	if err == nil {
		t.Fatal("expected an error for structuredContent failing the output schema")
	}
	var mcpErr *mcp.McpError
	if !errors.As(err, &mcpErr) {
		t.Fatalf("err = %v (%T), want an *mcp.McpError", err, err)
	}
	if mcpErr.Code != mcp.CodeInvalidParams {
		t.Errorf("mcpErr.Code = %d, want %d (invalidParams)", mcpErr.Code, mcp.CodeInvalidParams)
	}
}

func TestListToolsPagination(t *testing.T) {
	p := mcptest.New(t, &server.Options{PageSize: 2}, &client.Options{})
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		tool := echoTool()
		tool.Tool.Name = name
		if err := p.Server.AddTools(tool); err != nil {
			t.Fatalf("AddTools(%s): %v", name, err)
		}
	}
	ctx := context.Background()
	page1, cursor, err := p.ClientSession.ListTools(ctx, "")
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("len(page1) = %d, want 2", len(page1))
	}
	if cursor == "" {
		t.Fatal("expected a next-page cursor")
	}
	page2, _, err := p.ClientSession.ListTools(ctx, cursor)
	if err != nil {
		t.Fatalf("ListTools page2: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("len(page2) = %d, want 2", len(page2))
	}
	for _, t1 := range page1 {
		for _, t2 := range page2 {
			if t1.Name == t2.Name {
				t.Errorf("tool %q appeared on both pages", t1.Name)
			}
		}
	}
}

func TestReadResourceStaticAndTemplate(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	p.Server.AddResources(&server.ServerResource{
		Resource: &mcp.Resource{URI: "demo://about", Name: "about"},
		Handler: func(_ context.Context, _ *server.ServerSession, uri string) (*mcp.EmbeddedResource, error) {
			return &mcp.EmbeddedResource{URI: uri, Text: "static resource"}, nil
		},
	})
	if err := p.Server.AddResourceTemplates(&server.ServerResourceTemplate{
		Template: &mcp.ResourceTemplate{URITemplate: "demo://items/{id}", Name: "item"},
		Handler: func(_ context.Context, _ *server.ServerSession, uri string, vars map[string]string) (*mcp.EmbeddedResource, error) {
			return &mcp.EmbeddedResource{URI: uri, Text: "item " + vars["id"]}, nil
		},
	}); err != nil {
		t.Fatalf("AddResourceTemplates: %v", err)
	}

	ctx := context.Background()
	contents, err := p.ClientSession.ReadResource(ctx, "demo://about")
	if err != nil {
		t.Fatalf("ReadResource(about): %v", err)
	}
	if len(contents) != 1 || contents[0].Text != "static resource" {
		t.Errorf("contents = %+v", contents)
	}

	contents, err = p.ClientSession.ReadResource(ctx, "demo://items/42")
	if err != nil {
		t.Fatalf("ReadResource(items/42): %v", err)
	}
	if len(contents) != 1 || contents[0].Text != "item 42" {
		t.Errorf("contents = %+v", contents)
	}
}

func TestReadResourceNotFound(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	_, err := p.ClientSession.ReadResource(context.Background(), "demo://missing")
	if err == nil {
		t.Fatal("expected an error for an unregistered resource")
	}
}

func TestGetPromptRequiresDeclaredArguments(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	p.Server.AddPrompts(&server.ServerPrompt{
		Prompt: &mcp.Prompt{Name: "greeting", Arguments: []mcp.PromptArgument{{Name: "name", Required: true}}},
		Handler: func(_ context.Context, _ *server.ServerSession, args map[string]string) ([]mcp.PromptMessage, error) {
			return []mcp.PromptMessage{{Role: "user", Content: mcp.TextContent("hello, " + args["name"])}}, nil
		},
	})

	ctx := context.Background()
	if _, err := p.ClientSession.GetPrompt(ctx, "greeting", nil); err == nil {
		t.Fatal("expected an error for a missing required argument")
	}
	resp, err := p.ClientSession.GetPrompt(ctx, "greeting", map[string]string{"name": "ada"})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Content.Text != "hello, ada" {
		t.Errorf("resp.Messages = %+v", resp.Messages)
	}
}

func TestGetPromptRejectsArgumentTypeMismatch(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	p.Server.AddPrompts(&server.ServerPrompt{
		Prompt: &mcp.Prompt{Name: "repeat", Arguments: []mcp.PromptArgument{{Name: "times", Type: "integer"}}},
		Handler: func(_ context.Context, _ *server.ServerSession, args map[string]string) ([]mcp.PromptMessage, error) {
			return []mcp.PromptMessage{{Role: "user", Content: mcp.TextContent(args["times"])}}, nil
		},
	})

	ctx := context.Background()
	if _, err := p.ClientSession.GetPrompt(ctx, "repeat", map[string]string{"times": "not-a-number"}); err == nil {
		t.Fatal("expected an error for an argument that doesn't parse as its declared type")
	}
	resp, err := p.ClientSession.GetPrompt(ctx, "repeat", map[string]string{"times": "3"})
	if err != nil {
		t.Fatalf("GetPrompt with a valid integer argument: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Content.Text != "3" {
		t.Errorf("resp.Messages = %+v", resp.Messages)
	}
}

func TestCompletePromptArgument(t *testing.T) {
	p := mcptest.New(t, &server.Options{Capabilities: mcp.ServerCapabilities{Completions: &mcp.CompletionsCapability{}}}, &client.Options{})
	p.Server.AddPrompts(&server.ServerPrompt{
		Prompt: &mcp.Prompt{Name: "greeting", Arguments: []mcp.PromptArgument{{Name: "name", Completable: true}}},
		Handler: func(_ context.Context, _ *server.ServerSession, args map[string]string) ([]mcp.PromptMessage, error) {
			return nil, nil
		},
		Complete: map[string]server.CompletionHandler{
			"name": func(_ context.Context, value string) ([]string, error) {
				return []string{"ada", "alan"}, nil
			},
		},
	})

	values, total, hasMore, err := p.ClientSession.Complete(context.Background(), "ref/prompt", "greeting", "name", "a")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if total != 2 || hasMore {
		t.Errorf("total=%d hasMore=%v, want 2 false", total, hasMore)
	}
	if len(values) != 2 {
		t.Errorf("values = %v", values)
	}
}

func TestSetLoggingLevelRoundTrip(t *testing.T) {
	p := mcptest.New(t, &server.Options{Capabilities: mcp.ServerCapabilities{Logging: &mcp.LoggingCapability{}}}, &client.Options{})
	if err := p.ClientSession.SetLoggingLevel(context.Background(), mcp.LogWarning); err != nil {
		t.Fatalf("SetLoggingLevel: %v", err)
	}
	// No observable side effect without a notification handler wired up;
	// this just exercises the round trip without error.
}

// TestListToolsRefusedWithoutToolsCapability exercises spec.md §8 scenario
// S6: against a server with no tools registered (and so no "tools"
// capability), the client must refuse tools/list locally with
// McpError{invalidRequest}, not silently proceed or fail some other way.
func TestListToolsRefusedWithoutToolsCapability(t *testing.T) {
	p := mcptest.New(t, &server.Options{}, &client.Options{})
	_, _, err := p.ClientSession.ListTools(context.Background(), "")
	if err == nil {
		t.Fatal("expected an error when the server advertises no tools capability")
	}
	var mcpErr *mcp.McpError
	if !errors.As(err, &mcpErr) {
		t.Fatalf("err = %v (%T), want an *mcp.McpError", err, err)
	}
	if mcpErr.Code != mcp.CodeInvalidRequest {
		t.Errorf("mcpErr.Code = %d, want %d (invalidRequest)", mcpErr.Code, mcp.CodeInvalidRequest)
	}
	if !strings.Contains(mcpErr.Msg, "tools") {
		t.Errorf("mcpErr.Msg = %q, want it to mention capability %q", mcpErr.Msg, "tools")
	}
}

func TestInitializeNegotiatesServerCapabilities(t *testing.T) {
	p := mcptest.New(t, &server.Options{Capabilities: mcp.ServerCapabilities{Logging: &mcp.LoggingCapability{}}}, &client.Options{})
	if err := p.Server.AddTools(echoTool()); err != nil {
		t.Fatalf("AddTools: %v", err)
	}
	// ListTools only succeeds if capability negotiation actually ran and
	// the client allowed tools/list through (ServerCanReceive gating, via
	// cs.request), so success here exercises the handshake end to end.
	if _, _, err := p.ClientSession.ListTools(context.Background(), ""); err != nil {
		t.Fatalf("ListTools after initialize: %v", err)
	}
}
