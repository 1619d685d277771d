// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// featureSet is a collection of features (tools, resources, resource
// templates, prompts) keyed by a unique ID, with a stable sorted iteration
// order used to implement the list methods' cursor-based pagination.
//
// Grounded on golang-tools/internal/mcp/features.go's featureSet.
type featureSet[T any] struct {
	uniqueID   func(T) string
	features   map[string]T
	sortedKeys []string
}

func newFeatureSet[T any](uniqueID func(T) string) *featureSet[T] {
	return &featureSet[T]{uniqueID: uniqueID, features: make(map[string]T)}
}

func (s *featureSet[T]) add(fs ...T) {
	for _, f := range fs {
		s.features[s.uniqueID(f)] = f
	}
	s.sortedKeys = nil
}

func (s *featureSet[T]) remove(uids ...string) bool {
	changed := false
	for _, uid := range uids {
		if _, ok := s.features[uid]; ok {
			delete(s.features, uid)
			changed = true
		}
	}
	if changed {
		s.sortedKeys = nil
	}
	return changed
}

func (s *featureSet[T]) get(uid string) (T, bool) {
	t, ok := s.features[uid]
	return t, ok
}

func (s *featureSet[T]) len() int { return len(s.features) }

func (s *featureSet[T]) all() iter.Seq[T] {
	s.sortKeys()
	return func(yield func(T) bool) { s.yieldFrom(0, yield) }
}

func (s *featureSet[T]) above(uid string) iter.Seq[T] {
	s.sortKeys()
	index, found := slices.BinarySearch(s.sortedKeys, uid)
	if found {
		index++
	}
	return func(yield func(T) bool) { s.yieldFrom(index, yield) }
}

func (s *featureSet[T]) sortKeys() {
	if s.sortedKeys != nil {
		return
	}
	s.sortedKeys = slices.Sorted(maps.Keys(s.features))
}

func (s *featureSet[T]) yieldFrom(index int, yield func(T) bool) {
	for i := index; i < len(s.sortedKeys); i++ {
		if !yield(s.features[s.sortedKeys[i]]) {
			return
		}
	}
}

// pageToken is gob-encoded then base64-encoded into an opaque list cursor.
type pageToken struct {
	LastUID string
}

func encodeCursor(uid string) (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pageToken{LastUID: uid}); err != nil {
		return "", fmt.Errorf("server: encode cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeCursor(cursor string) (*pageToken, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("server: decode cursor: %w", err)
	}
	var tok pageToken
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&tok); err != nil {
		return nil, fmt.Errorf("server: decode cursor: %w", err)
	}
	return &tok, nil
}

// paginate returns up to pageSize items starting after cursor (empty for the
// first page), plus the cursor for the next page ("" if there is none).
func paginate[T any](fs *featureSet[T], pageSize int, cursor string) ([]T, string, error) {
	var seq iter.Seq[T]
	if cursor == "" {
		seq = fs.all()
	} else {
		tok, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		seq = fs.above(tok.LastUID)
	}
	var items []T
	count := 0
	for f := range seq {
		count++
		if count == pageSize+1 {
			break
		}
		items = append(items, f)
	}
	if count < pageSize+1 {
		return items, "", nil
	}
	next, err := encodeCursor(fs.uniqueID(items[len(items)-1]))
	if err != nil {
		return nil, "", err
	}
	return items, next, nil
}
