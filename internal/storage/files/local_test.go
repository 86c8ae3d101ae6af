package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoreSaveAndRemove(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	if err != nil {
		t.Fatal(err)
	}

	rel, err := s.Save("Field North.JPG", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(rel, "drone_images/") || !strings.HasSuffix(rel, ".jpg") {
		t.Fatalf("unexpected path %q", rel)
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("stored content = %q, %v", data, err)
	}

	if err := s.Remove(rel); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(rel); err != nil {
		t.Fatalf("removing a missing file should be a no-op: %v", err)
	}
	if err := s.Remove("../outside.txt"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestCleanExt(t *testing.T) {
	tests := map[string]string{
		"a.PNG":         ".png",
		"noext":         "",
		"weird.p$g":     "",
		"../../etc.tif": ".tif",
		"x.verylongext": "",
	}
	for in, want := range tests {
		if got := cleanExt(in); got != want {
			t.Errorf("cleanExt(%q) = %q, want %q", in, got, want)
		}
	}
}
