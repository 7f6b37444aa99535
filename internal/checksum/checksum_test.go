package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSum(t *testing.T) {
	// sha256("") is a fixed vector.
	if got := Sum(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Sum(nil) = %q", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("distinct inputs hashed equal")
	}
	if Sum([]byte("same")) != Sum([]byte("same")) {
		t.Error("Sum is not deterministic")
	}
}

func TestETagFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f.bin")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	// md5("hello")
	got, err := ETagFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if got != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("ETagFile = %q", got)
	}
}

func TestETagFileMissing(t *testing.T) {
	if _, err := ETagFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}
