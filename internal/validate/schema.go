// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package validate adapts github.com/google/jsonschema-go to the
// Validator contract spec.md §1 calls out as external: its wire shape
// (tool input/output schema, a JSON-Schema subtree) is specified, its
// validator engine is not. This package is the concrete adapter the
// server package uses; tools register a plain `any` schema (typically
// decoded from the wire as map[string]any) and this package turns it into
// something that can check arguments and structured content against it.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema wraps a resolved jsonschema.Schema, ready to validate instances.
type Schema struct {
	resolved *jsonschema.Resolved
	raw      *jsonschema.Schema
}

// Compile turns an arbitrary schema value (as decoded from JSON, or a
// *jsonschema.Schema directly) into a Schema ready for Validate. A nil or
// empty schema compiles to one that accepts anything, matching the MCP
// convention that a tool with no declared input schema accepts arbitrary
// arguments.
func Compile(schema any) (*Schema, error) {
	if schema == nil {
		return &Schema{}, nil
	}
	s, ok := schema.(*jsonschema.Schema)
	if !ok {
		b, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("validate: marshal schema: %w", err)
		}
		s = &jsonschema.Schema{}
		if err := json.Unmarshal(b, s); err != nil {
			return nil, fmt.Errorf("validate: decode schema: %w", err)
		}
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("validate: resolve schema: %w", err)
	}
	return &Schema{resolved: resolved, raw: s}, nil
}

// Validate checks instance (typically a map[string]any decoded from a
// tool's "arguments" or "structuredContent") against the compiled schema.
// A nil receiver or one compiled from an empty schema accepts anything.
func (s *Schema) Validate(instance any) error {
	if s == nil || s.resolved == nil {
		return nil
	}
	if err := s.resolved.Validate(instance); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Raw returns the underlying jsonschema.Schema, e.g. for re-marshaling
// into a tools/list response.
func (s *Schema) Raw() *jsonschema.Schema {
	if s == nil {
		return nil
	}
	return s.raw
}
