// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mcp implements the wire format and symmetric protocol engine of
// the Model Context Protocol: a JSON-RPC 2.0 based, bidirectional,
// session-oriented protocol over which a client discovers and uses
// capabilities (tools, resources, prompts) exposed by a server, and a
// server may in turn request sampling, root listings, or structured input
// from the client.
//
// This package holds the transport-agnostic core: wire message types
// (Request, Notification, Response, Error), the Transport contract, the
// Session engine that correlates outbound requests with responses and
// dispatches inbound ones, and the capability records negotiated at
// initialize time. Higher-level typed APIs live in the server and client
// subpackages; the long-running task model lives in the tasks subpackage;
// the HTTP+SSE transport lives in the streamable subpackage.
//
// A minimal round trip over an in-memory pipe:
//
//	c1, c2 := mcp.Pipe()
//	srv := mcp.NewSession(c1)
//	cli := mcp.NewSession(c2)
//	srv.SetRequestHandler(mcp.MethodPing, func(ctx context.Context, extra *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
//		return json.RawMessage(`{}`), nil
//	})
//	if err := srv.Connect(ctx); err != nil { ... }
//	if err := cli.Connect(ctx); err != nil { ... }
//	_, err := cli.Request(ctx, mcp.MethodPing, nil, nil)
package mcp
