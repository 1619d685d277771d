// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestSessionRequestResponseRoundTrip(t *testing.T) {
	a, b := Pipe()
	client := NewSession(a)
	server := NewSession(b)

	server.SetRequestHandler("ping", func(ctx context.Context, extra *RequestExtra, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"pong":true}`), nil
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	if err := server.Connect(context.Background()); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	defer client.Close()
	defer server.Close()

	result, err := client.Request(context.Background(), "ping", json.RawMessage("{}"), nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	var got struct {
		Pong bool `json:"pong"`
	}
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !got.Pong {
		t.Errorf("got %s, want pong:true", result)
	}
}

func TestSessionRequestMethodNotFound(t *testing.T) {
	a, b := Pipe()
	client := NewSession(a)
	server := NewSession(b)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	if err := server.Connect(context.Background()); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	defer client.Close()
	defer server.Close()

	_, err := client.Request(context.Background(), "nonexistent", json.RawMessage("{}"), nil)
	if err == nil {
		t.Fatal("expected an error for an unregistered method")
	}
	me, ok := err.(*McpError)
	if !ok || me.Code != CodeMethodNotFound {
		t.Errorf("err = %v, want *McpError{Code: CodeMethodNotFound}", err)
	}
}

func TestSessionRequestTimesOut(t *testing.T) {
	a, b := Pipe()
	client := NewSession(a)
	server := NewSession(b)
	server.SetRequestHandler("slow", func(ctx context.Context, extra *RequestExtra, params json.RawMessage) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	if err := server.Connect(context.Background()); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	defer client.Close()
	defer server.Close()

	_, err := client.Request(context.Background(), "slow", json.RawMessage("{}"), &RequestOptions{Timeout: 20 * time.Millisecond})
	if err != ErrRequestTimeout {
		t.Errorf("err = %v, want ErrRequestTimeout", err)
	}
}

func TestSessionCloseResolvesPending(t *testing.T) {
	a, b := Pipe()
	client := NewSession(a)
	server := NewSession(b)
	blocked := make(chan struct{})
	server.SetRequestHandler("forever", func(ctx context.Context, extra *RequestExtra, params json.RawMessage) (json.RawMessage, error) {
		close(blocked)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	if err := server.Connect(context.Background()); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), "forever", json.RawMessage("{}"), nil)
		done <- err
	}()
	<-blocked
	if err := client.Close(); err != nil {
		t.Fatalf("client.Close: %v", err)
	}
	if err := <-done; err != ErrConnectionClosed {
		t.Errorf("err = %v, want ErrConnectionClosed", err)
	}
}

func TestNotifyDeliversToHandler(t *testing.T) {
	a, b := Pipe()
	client := NewSession(a)
	server := NewSession(b)

	received := make(chan json.RawMessage, 1)
	server.SetNotificationHandler("notifications/initialized", func(ctx context.Context, params json.RawMessage) {
		received <- params
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	if err := server.Connect(context.Background()); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	defer client.Close()
	defer server.Close()

	if err := client.Notify(context.Background(), "notifications/initialized", json.RawMessage("{}")); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}
