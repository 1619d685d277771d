// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mcp-example-server runs a demo MCP server over the Streamable
// HTTP transport, exposing one direct tool and one task-augmented tool,
// a static resource, and a prompt. It wires the full ambient stack
// (structured logging, Prometheus metrics, the cron-scheduled task
// reaper) alongside the chi-routed streamable endpoint, and is meant as
// a runnable reference for the packages above it rather than a
// production deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/mcp"
	"github.com/relaymcp/mcp-go/server"
	"github.com/relaymcp/mcp-go/streamable"
	"github.com/relaymcp/mcp-go/tasks"
)

func main() {
	addr := flag.String("addr", ":8765", "listen address for the streamable HTTP endpoint")
	jsonLogs := flag.Bool("json-logs", false, "emit structured logs as JSON instead of text")
	reaperSchedule := flag.String("reaper-schedule", "@every 1m", "cron schedule for the task TTL reaper")
	ratePerSecond := flag.Float64("rate", 20, "per-session requests/sec allowed on the streamable endpoint")
	flag.Parse()

	obs.InitSlog(os.Stderr, slog.LevelInfo, *jsonLogs)

	srv := server.NewServer("mcp-example-server", "0.1.0", &server.Options{
		Instructions:       "Reference server exercising tools, resources, prompts, and tasks.",
		Enforcement:        mcp.Warn,
		TaskReaperSchedule: *reaperSchedule,
		Capabilities: mcp.ServerCapabilities{
			Logging:     &mcp.LoggingCapability{},
			Completions: &mcp.CompletionsCapability{},
		},
	})
	defer srv.Close()

	if err := registerDemoFeatures(srv); err != nil {
		obs.Log().Error("registering demo features", "error", err)
		os.Exit(1)
	}

	h := streamable.NewHandler(srv)
	h.RatePerSecond = *ratePerSecond
	h.Burst = int(*ratePerSecond) * 2

	root := chi.NewRouter()
	root.Mount("/mcp", h.Routes())
	root.Handle("/metrics", obs.Handler())

	httpServer := &http.Server{Addr: *addr, Handler: root}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.Log().Info("mcp-example-server listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		obs.Log().Error("mcp-example-server exited with error", "error", err)
		os.Exit(1)
	}
}

// registerDemoFeatures wires a small, representative feature set: an
// "echo" tool (direct), a "countdown" tool (task-augmented, demonstrating
// the long-running-operation path), a static "about" resource, and a
// "greeting" prompt.
func registerDemoFeatures(srv *server.Server) error {
	echoSchema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"message": map[string]any{"type": "string"}},
		"required":   []string{"message"},
	}
	if err := srv.AddTools(&server.ServerTool{
		Tool: &mcp.Tool{
			Name:        "echo",
			Description: "Echoes the given message back as text content.",
			InputSchema: echoSchema,
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
	}); err != nil {
		return err
	}

	countdownSchema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"from": map[string]any{"type": "integer", "minimum": 1, "maximum": 20}},
		"required":   []string{"from"},
	}
	if err := srv.AddTools(&server.ServerTool{
		Tool: &mcp.Tool{
			Name:        "countdown",
			Description: "Counts down from N seconds, one per second, as a long-running task.",
			InputSchema: countdownSchema,
			Execution:   &mcp.ExecutionHint{TaskSupport: mcp.TaskSupportRequired},
		},
		TaskHandler: func(ctx context.Context, _ *tasks.Session, args json.RawMessage) (*mcp.CallToolResult, error) {
			var p struct {
				From int `json:"from"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, err
			}
			for n := p.From; n > 0; n-- {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Second):
				}
			}
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent("liftoff")}}, nil
		},
	}); err != nil {
		return err
	}

	srv.AddResources(&server.ServerResource{
		Resource: &mcp.Resource{URI: "demo://about", Name: "about", MimeType: "text/plain"},
		Handler: func(_ context.Context, _ *server.ServerSession, uri string) (*mcp.EmbeddedResource, error) {
			return &mcp.EmbeddedResource{URI: uri, MimeType: "text/plain", Text: "mcp-example-server: a reference MCP server."}, nil
		},
	})

	srv.AddPrompts(&server.ServerPrompt{
		Prompt: &mcp.Prompt{
			Name:        "greeting",
			Description: "Produces a friendly greeting prompt for the given name.",
			Arguments:   []mcp.PromptArgument{{Name: "name", Required: true}},
		},
		Handler: func(_ context.Context, _ *server.ServerSession, args map[string]string) ([]mcp.PromptMessage, error) {
			return []mcp.PromptMessage{{
				Role:    "user",
				Content: mcp.TextContent("Say hello to " + args["name"] + "."),
			}}, nil
		},
	})

	return nil
}
