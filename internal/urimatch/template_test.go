// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package urimatch

import "testing"

func TestMatchExtractsVariables(t *testing.T) {
	tmpl, err := Compile("repo://{owner}/{repo}/issues/{id}")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	vars, ok := tmpl.Match("repo://golang/go/issues/42")
	if !ok {
		t.Fatal("expected a match")
	}
	want := map[string]string{"owner": "golang", "repo": "go", "id": "42"}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("vars[%q] = %q, want %q", k, vars[k], v)
		}
	}
}

func TestMatchRejectsNonMatchingURI(t *testing.T) {
	tmpl, err := Compile("repo://{owner}/{repo}/issues/{id}")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := tmpl.Match("repo://golang/go/pulls/42"); ok {
		t.Error("expected no match for a differently-shaped URI")
	}
}

func TestMatchPlusModifierAllowsSlashes(t *testing.T) {
	tmpl, err := Compile("file:///{+path}")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	vars, ok := tmpl.Match("file:///a/b/c.txt")
	if !ok {
		t.Fatal("expected a match")
	}
	if vars["path"] != "a/b/c.txt" {
		t.Errorf("vars[path] = %q, want a/b/c.txt", vars["path"])
	}
}

func TestCompileInvalidTemplate(t *testing.T) {
	if _, err := Compile("repo://{unterminated"); err == nil {
		t.Fatal("expected an error compiling an unterminated template expression")
	}
}

func TestStringReturnsOriginal(t *testing.T) {
	const raw = "repo://{owner}/{repo}"
	tmpl, err := Compile(raw)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if tmpl.String() != raw {
		t.Errorf("String() = %q, want %q", tmpl.String(), raw)
	}
}
