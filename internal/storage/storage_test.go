package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoragePut(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(dir, "exports"), "http://localhost:8083/")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	url, err := s.Put(context.Background(), "submissions/abc/1.json", strings.NewReader(`{"ok":true}`), "application/json")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "http://localhost:8083/exports/submissions/abc/1.json" {
		t.Errorf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "exports", "submissions", "abc", "1.json"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("content = %q", data)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "exports", "submissions", "abc", ".tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"../x.json", "a/../../x.json", "/etc/passwd", "."} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), "text/plain"); err == nil {
			t.Errorf("Put(%q) accepted", key)
		}
	}
}
