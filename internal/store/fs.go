package store

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// safeJoin resolves rel against base and rejects any result that escapes it.
func safeJoin(base, rel string) (string, error) {
	if rel == "" {
		return base, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("store: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(base, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("store: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, base+string(os.PathSeparator)) && abs != base {
		return "", fmt.Errorf("store: path escapes workspace: %s", rel)
	}
	return abs, nil
}

// writeAtomic writes content via a temp file in the target directory, fsync,
// then rename, so a crash mid-write never leaves a half-written file.
func writeAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".lectern-tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	success = true
	return nil
}

// copyFile copies src to dst, creating parent directories as needed.
// Existing destination files are left untouched.
func copyFile(src, dst string) (copied bool, err error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("store: mkdir for copy: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("store: open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return false, fmt.Errorf("store: create %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return false, fmt.Errorf("store: copy %s: %w", src, err)
	}
	return true, nil
}

// walkFiles returns the relative (slash-separated) paths of every regular
// file under dir. A missing dir yields an empty list.
func walkFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: walk %s: %w", dir, err)
	}
	return out, nil
}
