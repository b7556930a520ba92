package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "key")
	if err := os.WriteFile(file, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("SMARTSTUDY_TEST_KEY", " from-env ")

	tests := []struct {
		name   string
		src    Source
		expect string
	}{
		{name: "file wins", src: Source{File: file, Env: []string{"SMARTSTUDY_TEST_KEY"}, Value: "inline"}, expect: "from-file"},
		{name: "env over value", src: Source{Env: []string{"SMARTSTUDY_UNSET_KEY", "SMARTSTUDY_TEST_KEY"}, Value: "inline"}, expect: "from-env"},
		{name: "inline value", src: Source{Env: []string{"SMARTSTUDY_UNSET_KEY"}, Value: " inline "}, expect: "inline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	if _, err := Load(Source{Name: "gemini api key"}); err == nil || !strings.Contains(err.Error(), "gemini api key is not configured") {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Load(Source{Name: "key", File: empty}); err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Load(Source{File: filepath.Join(dir, "missing")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
