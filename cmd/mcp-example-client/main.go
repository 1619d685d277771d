// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mcp-example-client connects to mcp-example-server over the
// Streamable HTTP transport, lists its tools, calls the direct "echo"
// tool, and drives the task-augmented "countdown" tool to completion
// through the CallToolStream façade, printing each event as it arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/relaymcp/mcp-go/client"
	"github.com/relaymcp/mcp-go/internal/obs"
	"github.com/relaymcp/mcp-go/mcp"
	"github.com/relaymcp/mcp-go/streamable"
)

func main() {
	url := flag.String("url", "http://localhost:8765/mcp", "streamable HTTP endpoint of mcp-example-server")
	from := flag.Int("countdown", 3, "seconds to count down via the task-augmented tool")
	flag.Parse()

	obs.InitSlog(os.Stderr, slog.LevelInfo, false)

	ctx := context.Background()

	transport := streamable.NewClientTransport(*url, nil)
	cli := client.NewClient("mcp-example-client", "0.1.0", &client.Options{
		Capabilities: mcp.ClientCapabilities{
			Roots: &mcp.RootsCapability{},
			Tasks: &mcp.ClientTasksCapability{},
		},
		TaskStatusHandler: func(_ context.Context, taskID string, status mcp.TaskStatus) {
			fmt.Printf("task %s -> %s\n", taskID, status)
		},
	})

	cs, err := cli.Connect(ctx, transport)
	if err != nil {
		obs.Log().Error("connect", "error", err)
		os.Exit(1)
	}
	defer cs.Close()

	go func() {
		if err := transport.Listen(ctx); err != nil {
			obs.Log().Debug("standalone stream ended", "error", err)
		}
	}()

	tools, _, err := cs.ListTools(ctx, "")
	if err != nil {
		obs.Log().Error("list tools", "error", err)
		os.Exit(1)
	}
	for _, t := range tools {
		fmt.Printf("tool: %s — %s\n", t.Name, t.Description)
	}

	echoResult, err := cs.CallTool(ctx, "echo", map[string]string{"message": "hello from mcp-example-client"})
	if err != nil {
		obs.Log().Error("call echo", "error", err)
		os.Exit(1)
	}
	for _, c := range echoResult.Content {
		fmt.Println("echo:", c.Text)
	}

	for ev := range cs.CallToolStream(ctx, "countdown", map[string]int{"from": *from}, 60_000) {
		switch ev.Kind {
		case client.TaskEventCreated:
			fmt.Println("countdown task created:", ev.Task.TaskID)
		case client.TaskEventStatus:
			fmt.Println("countdown status:", ev.Task.Status)
		case client.TaskEventResult:
			for _, c := range ev.Result.Content {
				fmt.Println("countdown result:", c.Text)
			}
		case client.TaskEventError:
			obs.Log().Error("countdown failed", "error", ev.Err)
		}
	}
}
