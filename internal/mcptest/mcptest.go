// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mcptest provides an in-process client/server pair connected by
// mcp.Pipe(), for package tests (the server package's) that want to
// exercise the whole stack without a real transport. Grounded on
// golang-tools/internal/mcp's test helpers' use of NewInMemoryTransports.
package mcptest

import (
	"context"
	"testing"

	"github.com/relaymcp/mcp-go/client"
	"github.com/relaymcp/mcp-go/mcp"
	"github.com/relaymcp/mcp-go/server"
)

// Pair is a connected client/server session pair over an in-memory pipe.
type Pair struct {
	Server        *server.Server
	ServerSession *server.ServerSession
	Client        *client.Client
	ClientSession *client.ClientSession
}

// Close tears down both sides.
func (p *Pair) Close() {
	p.ClientSession.Close()
	p.ServerSession.Close()
	p.Server.Close()
}

// New builds a Server with srvOpts, a Client with cliOpts, connects them
// over mcp.Pipe(), and drives the initialize handshake to completion. It
// registers t.Cleanup to close both sessions.
func New(t *testing.T, srvOpts *server.Options, cliOpts *client.Options) *Pair {
	t.Helper()
	ctx := context.Background()

	srv := server.NewServer("mcptest-server", "v0.0.0-test", srvOpts)
	cli := client.NewClient("mcptest-client", "v0.0.0-test", cliOpts)

	serverTransport, clientTransport := mcp.Pipe()

	ss, err := srv.Connect(ctx, serverTransport)
	if err != nil {
		t.Fatalf("mcptest: server connect: %v", err)
	}
	cs, err := cli.Connect(ctx, clientTransport)
	if err != nil {
		t.Fatalf("mcptest: client connect: %v", err)
	}

	p := &Pair{Server: srv, ServerSession: ss, Client: cli, ClientSession: cs}
	t.Cleanup(p.Close)
	return p
}
