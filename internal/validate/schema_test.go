// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import "testing"

func TestCompileNilAcceptsAnything(t *testing.T) {
	s, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile(nil): %v", err)
	}
	if err := s.Validate(map[string]any{"anything": 1}); err != nil {
		t.Errorf("Validate on a nil schema should accept anything, got %v", err)
	}
}

func TestCompileAndValidateRequiredProperty(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []any{"name"},
	}
	s, err := Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := s.Validate(map[string]any{"name": "ada"}); err != nil {
		t.Errorf("Validate(valid instance): %v", err)
	}
	if err := s.Validate(map[string]any{}); err == nil {
		t.Error("expected an error for a missing required property")
	}
}

func TestCompileRejectsMalformedSchema(t *testing.T) {
	// "type" must be a string or array of strings; a number is invalid.
	if _, err := Compile(map[string]any{"type": 5}); err == nil {
		t.Error("expected an error compiling a malformed schema")
	}
}

func TestNilSchemaValidateIsNoop(t *testing.T) {
	var s *Schema
	if err := s.Validate(map[string]any{"x": 1}); err != nil {
		t.Errorf("nil *Schema.Validate should be a no-op, got %v", err)
	}
	if s.Raw() != nil {
		t.Errorf("nil *Schema.Raw() should return nil")
	}
}
