package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want FileKind
	}{
		{"photo.JPG", KindImage},
		{"scan.tiff", KindImage},
		{"clip.webm", KindVideo},
		{"movie.MP4", KindVideo},
		{"doc.pdf", KindPDF},
		{"notes.txt", KindUnknown},
		{"noext", KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.name); got != tt.want {
			t.Errorf("KindOf(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFileExistsAndEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if FileExists(dir) {
		t.Error("Expected missing path")
	}
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if FileExists(dir) {
		t.Error("Directories are not files")
	}
	f := filepath.Join(dir, "x.png")
	if err := os.WriteFile(f, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(f) {
		t.Error("Expected file to exist")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(" a/b:c?.png. "); got != "a_b_c_.png" {
		t.Errorf("Unexpected %q", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range tests {
		if got := FormatFileSize(in); got != want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", in, got, want)
		}
	}
}
