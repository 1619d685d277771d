// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package urimatch adapts github.com/yosida95/uritemplate/v3 to the
// resources/read template-matching contract of spec.md §4.5: scan
// registered templates in registration order and return the first whose
// URI template matches the requested URI, along with the extracted
// variable bindings.
package urimatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// Template wraps a compiled RFC 6570 URI template for matching. It uses
// uritemplate/v3 only to parse and validate the template; it takes the
// variable names from its own scan of the template's expressions and does
// its own reverse-matching, since the library is built for expansion, not
// matching.
type Template struct {
	raw     string
	varRe   *regexp.Regexp
	varName []string
}

// Compile parses a URI template string (e.g. "file:///{+path}" or
// "repo://{owner}/{repo}/issues/{id}").
func Compile(uriTemplate string) (*Template, error) {
	parsed, err := uritemplate.New(uriTemplate)
	if err != nil {
		return nil, fmt.Errorf("urimatch: compile %q: %w", uriTemplate, err)
	}
	names := parsed.Varnames()

	var b strings.Builder
	b.WriteString("^")
	rest := uriTemplate
	var order []string
	exprRe := regexp.MustCompile(`\{(\+?)([A-Za-z0-9_]+)\}`)
	lastEnd := 0
	for _, loc := range exprRe.FindAllStringSubmatchIndex(rest, -1) {
		literal := rest[lastEnd:loc[0]]
		b.WriteString(regexp.QuoteMeta(literal))
		plus := rest[loc[2]:loc[3]] == "+"
		name := rest[loc[4]:loc[5]]
		order = append(order, name)
		if plus {
			b.WriteString("(.+)")
		} else {
			b.WriteString("([^/]+)")
		}
		lastEnd = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(rest[lastEnd:]))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("urimatch: derive matcher for %q: %w", uriTemplate, err)
	}
	_ = names // parsed purely for validation; order[] drives extraction.
	return &Template{raw: uriTemplate, varRe: re, varName: order}, nil
}

// Match reports whether uri matches the template, returning the bound
// variables on success.
func (t *Template) Match(uri string) (map[string]string, bool) {
	m := t.varRe.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	vars := make(map[string]string, len(t.varName))
	for i, name := range t.varName {
		vars[name] = m[i+1]
	}
	return vars, true
}

// String returns the original template text.
func (t *Template) String() string { return t.raw }
