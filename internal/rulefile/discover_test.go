package rulefile

import (
	"os"
	"path/filepath"
	"testing"
)

// makeTree creates files (relative to root) with the given content.
func makeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

// TestDiscover tests recursive rule file discovery.
func TestDiscover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	makeTree(t, root, map[string]string{
		"a/x.rule":          "{}",
		"a/sub/deep/y.RULE": "{}",
		"a/b.rule":          "1234",
		"a/notes.txt":       "ignored",
		"c/z.json":          "{}",
	})

	dirA := filepath.Join(root, "a")
	dirC := filepath.Join(root, "c")
	missing := filepath.Join(root, "missing")

	d, err := Discover([]string{dirA, dirC, missing, " "}, Extension)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		filepath.Join(dirA, "b.rule"),
		filepath.Join(dirA, "sub", "deep", "y.RULE"),
		filepath.Join(dirA, "x.rule"),
	}
	if len(d.Files) != len(want) {
		t.Fatalf("expected %d files, got %d: %v", len(want), len(d.Files), d.Files)
	}
	for i := range want {
		if d.Files[i] != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], d.Files[i])
		}
	}

	infoA := d.Directories[dirA]
	if infoA.NumberOfFiles != 3 {
		t.Errorf("expected 3 files in %s, got %d", dirA, infoA.NumberOfFiles)
	}
	if infoA.Bytes != 2+2+4 {
		t.Errorf("expected 8 bytes, got %d", infoA.Bytes)
	}

	if len(d.Empty) != 2 || d.Empty[0] != dirC || d.Empty[1] != missing {
		t.Errorf("unexpected empty directories: %v", d.Empty)
	}
	if _, ok := d.Directories[" "]; ok {
		t.Error("blank directory should be ignored")
	}
}

// TestDiscoverOverlappingRoots tests that a file is scanned once.
func TestDiscoverOverlappingRoots(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	makeTree(t, root, map[string]string{
		"top.rule":       "{}",
		"nested/in.rule": "{}",
	})
	nested := filepath.Join(root, "nested")

	d, err := Discover([]string{root, nested}, Extension)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.Files) != 2 {
		t.Fatalf("expected 2 unique files, got %v", d.Files)
	}
	if d.Directories[nested].NumberOfFiles != 1 {
		t.Errorf("nested root should still report its own file, got %d", d.Directories[nested].NumberOfFiles)
	}
	if len(d.Empty) != 0 {
		t.Errorf("expected no empty directories, got %v", d.Empty)
	}
}
