// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import "testing"

type namedFeature struct{ name string }

func TestFeatureSetAddRemoveGet(t *testing.T) {
	fs := newFeatureSet(func(f *namedFeature) string { return f.name })
	fs.add(&namedFeature{"a"}, &namedFeature{"b"})
	if fs.len() != 2 {
		t.Fatalf("len() = %d, want 2", fs.len())
	}
	if _, ok := fs.get("a"); !ok {
		t.Error("get(a): not found")
	}
	if !fs.remove("a") {
		t.Error("remove(a) should report a change")
	}
	if fs.remove("a") {
		t.Error("removing an already-absent key should report no change")
	}
	if fs.len() != 1 {
		t.Errorf("len() after remove = %d, want 1", fs.len())
	}
}

func TestFeatureSetAllIsSorted(t *testing.T) {
	fs := newFeatureSet(func(f *namedFeature) string { return f.name })
	fs.add(&namedFeature{"c"}, &namedFeature{"a"}, &namedFeature{"b"})
	var order []string
	for f := range fs.all() {
		order = append(order, f.name)
	}
	want := []string{"a", "b", "c"}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestPaginateSplitsPagesAndEncodesCursor(t *testing.T) {
	fs := newFeatureSet(func(f *namedFeature) string { return f.name })
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		fs.add(&namedFeature{n})
	}
	page1, cursor, err := paginate(fs, 2, "")
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(page1) != 2 || page1[0].name != "a" || page1[1].name != "b" {
		t.Fatalf("page1 = %+v", page1)
	}
	if cursor == "" {
		t.Fatal("expected a non-empty cursor")
	}

	page2, cursor2, err := paginate(fs, 2, cursor)
	if err != nil {
		t.Fatalf("paginate page2: %v", err)
	}
	if len(page2) != 2 || page2[0].name != "c" || page2[1].name != "d" {
		t.Fatalf("page2 = %+v", page2)
	}
	if cursor2 == "" {
		t.Fatal("expected a non-empty cursor after page2")
	}

	page3, cursor3, err := paginate(fs, 2, cursor2)
	if err != nil {
		t.Fatalf("paginate page3: %v", err)
	}
	if len(page3) != 1 || page3[0].name != "e" {
		t.Fatalf("page3 = %+v", page3)
	}
	if cursor3 != "" {
		t.Errorf("cursor3 = %q, want empty (no more pages)", cursor3)
	}
}

func TestPaginateInvalidCursor(t *testing.T) {
	fs := newFeatureSet(func(f *namedFeature) string { return f.name })
	fs.add(&namedFeature{"a"})
	if _, _, err := paginate(fs, 10, "not-a-valid-cursor"); err == nil {
		t.Fatal("expected an error for a malformed cursor")
	}
}
