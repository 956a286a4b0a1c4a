package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadRequests(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"array.json":   `[{"insertText": {"location": {"index": 1}, "text": "a"}}, {"replaceAllText": {}}]`,
		"wrapped.json": `{"requests": [{"insertText": {"location": {"index": 1}, "text": "a"}}, {"replaceAllText": {}}]}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			reqs, err := readRequests(path)
			if err != nil {
				t.Fatalf("readRequests: %v", err)
			}
			if len(reqs) != 2 {
				t.Fatalf("got %d requests, want 2", len(reqs))
			}
		})
	}
}

func TestReadRequestsErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte("  \n"), 0o600)
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("[{"), 0o600)

	for _, path := range []string{empty, bad, filepath.Join(dir, "absent.json")} {
		if _, err := readRequests(path); err == nil {
			t.Errorf("readRequests(%s): expected error", filepath.Base(path))
		}
	}
}
