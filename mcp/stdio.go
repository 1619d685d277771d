// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"context"
	"io"
)

// Start implements Transport. It launches a background goroutine reading
// newline-delimited JSON messages from r until EOF or a scan error,
// mirroring the read-loop idiom of dominicnunez-codex-sdk-go's
// StdioTransport.
func (t *lineTransport) Start(onMessage func(Message), onError func(error), onClose func()) error {
	go func() {
		scanner := bufio.NewScanner(t.r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			msg, err := ParseMessage(line)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onMessage(msg)
		}
		if err := scanner.Err(); err != nil && err != io.EOF && onError != nil {
			onError(err)
		}
		if onClose != nil {
			onClose()
		}
	}()
	return nil
}

func (t *lineTransport) Send(_ context.Context, msg Message, _ RequestID) error {
	b, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.w.Write(b)
	return err
}

func (t *lineTransport) Close() error {
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *lineTransport) SessionID() string { return "" }
