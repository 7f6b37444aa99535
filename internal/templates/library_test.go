package templates

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "custom.yaml", "header: H\nbeforePages: B\nfooter: F\n")

	lib := NewLibrary(dir)
	got := lib.Load("custom.yaml")
	if got.Header != "H" || got.BeforePages != "B" || got.Footer != "F" {
		t.Errorf("template = %+v", got)
	}
}

func TestLoadFillsBlankSectionsFromFallback(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "partial.yaml", "header: H\n")

	lib := NewLibrary(dir)
	got := lib.Load("partial.yaml")
	fb := Fallback()
	if got.Header != "H" {
		t.Errorf("header = %q", got.Header)
	}
	if got.BeforePages != fb.BeforePages || got.Footer != fb.Footer {
		t.Errorf("blank sections not filled: %+v", got)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	lib := NewLibrary(t.TempDir())
	if got := lib.Load("absent.yaml"); !reflect.DeepEqual(got, Fallback()) {
		t.Errorf("missing file = %+v, want fallback", got)
	}
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	lib := NewLibrary(t.TempDir())
	if got := lib.Load("../outside.yaml"); !reflect.DeepEqual(got, Fallback()) {
		t.Errorf("traversal name = %+v, want fallback", got)
	}
}

func TestLoadCachesUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "t.yaml", "header: one\n")

	lib := NewLibrary(dir)
	if got := lib.Load("t.yaml"); got.Header != "one" {
		t.Fatalf("header = %q", got.Header)
	}

	writeTemplate(t, dir, "t.yaml", "header: two\n")
	if got := lib.Load("t.yaml"); got.Header != "one" {
		t.Errorf("cache bypassed, header = %q", got.Header)
	}

	lib.Invalidate("t.yaml")
	if got := lib.Load("t.yaml"); got.Header != "two" {
		t.Errorf("after invalidate, header = %q", got.Header)
	}
}

func TestDefaultUsesLibraryEntry(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, DefaultTemplateFile, "header: custom default\n")

	lib := NewLibrary(dir)
	if got := lib.Default(); got.Header != "custom default" {
		t.Errorf("default header = %q", got.Header)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "a.yaml", "header: a\n")
	writeTemplate(t, dir, "b.yaml", "header: b\n")
	writeTemplate(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(dir)
	got, err := lib.List()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"a.yaml", "b.yaml"}) {
		t.Errorf("list = %v", got)
	}
}

func TestListMissingDir(t *testing.T) {
	lib := NewLibrary(filepath.Join(t.TempDir(), "nope"))
	got, err := lib.List()
	if err != nil || got != nil {
		t.Errorf("list = %v, %v", got, err)
	}
}
