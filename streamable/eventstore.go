// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package streamable implements the Streamable HTTP transport (C8,
// spec.md §4.8): a single HTTP endpoint multiplexing POST-delivered
// JSON-RPC batches and GET-opened SSE streams over one negotiated
// Mcp-Session-Id, with Last-Event-ID resumption. Grounded on
// golang-tools/internal/mcp/streamable.go's StreamableHTTPHandler /
// StreamableServerTransport split, adapted to this module's Transport
// interface and event encoding (mcp.EncodeMessage/ParseMessage) rather
// than the teacher's bespoke wire structs.
package streamable

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// event is one appended, replayable SSE payload belonging to a logical
// stream within a session.
type event struct {
	index int64
	data  []byte
}

// eventStore is an append-only, per-stream log of already-sent message
// bytes, keyed by logical stream id, so a GET reconnect carrying
// Last-Event-ID can resume exactly where it left off (spec.md §4.8's
// resumability requirement). One eventStore belongs to one session.
//
// Entries are kept in memory only and bounded by streamBacklog per
// stream; a reconnect older than the retained backlog gets everything
// the store still has; true infinite-backlog durability is an external
// concern (a persistent store is a drop-in replacement for this type).
type eventStore struct {
	mu      sync.Mutex
	streams map[string][]event
	next    map[string]int64
}

// streamBacklog caps how many events each logical stream retains for
// resumption purposes.
const streamBacklog = 256

func newEventStore() *eventStore {
	return &eventStore{
		streams: make(map[string][]event),
		next:    make(map[string]int64),
	}
}

// append records data under streamID and returns its event id, a string
// of the form "streamID:index" written as SSE's "id:" field.
func (s *eventStore) append(streamID string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.next[streamID]
	s.next[streamID] = idx + 1
	buf := append(s.streams[streamID], event{index: idx, data: data})
	if len(buf) > streamBacklog {
		buf = buf[len(buf)-streamBacklog:]
	}
	s.streams[streamID] = buf
	return formatEventID(streamID, idx)
}

// since returns every retained event of streamID whose index is strictly
// greater than afterIndex (every retained event if afterIndex is -1).
func (s *eventStore) since(streamID string, afterIndex int64) []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.streams[streamID]
	out := make([]event, 0, len(all))
	for _, e := range all {
		if e.index > afterIndex {
			out = append(out, e)
		}
	}
	return out
}

// dropStream discards a stream's retained backlog once it has been fully
// drained to the client (e.g. a request-scoped stream that answered its
// last pending request).
func (s *eventStore) dropStream(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, streamID)
	delete(s.next, streamID)
}

func formatEventID(streamID string, index int64) string {
	return streamID + ":" + strconv.FormatInt(index, 10)
}

// parseEventID splits a Last-Event-ID header value into its stream id and
// index. An id that doesn't match the "streamID:index" shape this store
// mints is reported as not found, so callers fall back to the standalone
// stream and replay its whole retained backlog.
func parseEventID(id string) (streamID string, index int64, ok bool) {
	i := strings.LastIndex(id, ":")
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return id[:i], n, true
}

func validateStreamID(id string) error {
	if id == "" || strings.Contains(id, ":") {
		return fmt.Errorf("streamable: invalid stream id %q", id)
	}
	return nil
}
