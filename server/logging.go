// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"

	"github.com/relaymcp/mcp-go/mcp"
)

type setLevelParams struct {
	Level mcp.LoggingLevel `json:"level"`
}

func (ss *ServerSession) handleSetLevel(_ context.Context, _ *mcp.RequestExtra, params json.RawMessage) (json.RawMessage, error) {
	var p setLevelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewMcpError(mcp.CodeInvalidParams, err.Error(), nil)
	}
	ss.mu.Lock()
	ss.minLogLevel = p.Level
	ss.mu.Unlock()
	return json.RawMessage("{}"), nil
}

type logMessageParams struct {
	Level  mcp.LoggingLevel `json:"level"`
	Logger string           `json:"logger,omitempty"`
	Data   any              `json:"data"`
}

// Log sends notifications/message to the session if level is at or above
// the per-session minimum set by logging/setLevel (default: everything
// passes, per spec.md §4.5's "set a per-session minimum severity").
func (ss *ServerSession) Log(level mcp.LoggingLevel, logger string, data any) {
	ss.mu.Lock()
	min := ss.minLogLevel
	ss.mu.Unlock()
	if min != "" && !level.AtLeast(min) {
		return
	}
	payload, err := json.Marshal(logMessageParams{Level: level, Logger: logger, Data: data})
	if err != nil {
		return
	}
	ss.notifyIfAble(mcp.NotificationMessage, payload)
}
