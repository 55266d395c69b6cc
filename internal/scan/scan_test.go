package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalkSkipsDirsAndBinaries(t *testing.T) {
	root := t.TempDir()

	mustWrite(t, filepath.Join(root, "main.go"), "package main\n")
	mustWrite(t, filepath.Join(root, "README"), "hello\n")
	mustWrite(t, filepath.Join(root, "blob.txt"), "\x00\x01\x02not text")
	mustMkdir(t, filepath.Join(root, ".git"))
	mustWrite(t, filepath.Join(root, ".git", "config"), "[core]\n")
	mustMkdir(t, filepath.Join(root, "node_modules"))
	mustWrite(t, filepath.Join(root, "node_modules", "x.go"), "package x\n")

	s := New(DefaultOptions())

	var got []string
	err := s.Walk(root, func(path string, info os.FileInfo) error {
		rel, _ := filepath.Rel(root, path)
		got = append(got, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	want := map[string]bool{"main.go": true, "README": true}
	if len(got) != len(want) {
		t.Fatalf("Walk returned %v, want exactly %v", got, want)
	}
	for _, g := range got {
		if !want[g] {
			t.Errorf("Walk returned unexpected path %q", g)
		}
	}
}

func TestWalkSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 100)
	for i := range big {
		big[i] = 'a'
	}
	mustWrite(t, filepath.Join(root, "big.go"), string(big))

	s := New(Options{Extensions: []string{".go"}, MaxSize: 10})
	var got []string
	err := s.Walk(root, func(path string, info os.FileInfo) error {
		got = append(got, path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Walk returned %v, want none (file exceeds MaxSize)", got)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}
