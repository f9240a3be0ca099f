package batch

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.MOV", "c.mkv", "d.avi", "e.m4v", "notes.txt", "clip.webm", "noext"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}
	os.MkdirAll(filepath.Join(dir, "nested"), 0755)
	os.WriteFile(filepath.Join(dir, "nested", "deep.mp4"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(dir, "folder.mp4"), 0755)

	got, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	want := []string{"a.MOV", "b.mp4", "c.mkv", "d.avi", "e.m4v"}
	if !slices.Equal(names, want) {
		t.Errorf("Discover() = %v, want %v", names, want)
	}
}

func TestDiscover_Empty(t *testing.T) {
	got, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no videos, got %v", got)
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestDiscover_NotADir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.mp4")
	os.WriteFile(path, []byte("x"), 0644)
	if _, err := Discover(path); err == nil {
		t.Error("expected error for a file path")
	}
}

func TestIsVideo(t *testing.T) {
	for name, want := range map[string]bool{"a.MP4": true, "a.M4V": true, "a.mp3": false, "mp4": false} {
		if got := IsVideo(name); got != want {
			t.Errorf("IsVideo(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestStemClashes(t *testing.T) {
	videos := []string{"/in/a.mp4", "/in/clip.mkv", "/in/clip.mov", "/in/clip.mp4", "/in/z.avi"}

	got := StemClashes(videos)
	if len(got) != 3 {
		t.Fatalf("StemClashes() = %v, want the three clip videos", got)
	}
	if want := []string{"clip.mov", "clip.mp4"}; !slices.Equal(got["/in/clip.mkv"], want) {
		t.Errorf("clashes[clip.mkv] = %v, want %v", got["/in/clip.mkv"], want)
	}
	if _, ok := got["/in/a.mp4"]; ok {
		t.Error("a.mp4 should not clash")
	}
	if len(StemClashes([]string{"/in/a.mp4", "/in/b.mp4"})) != 0 {
		t.Error("distinct stems should not clash")
	}
}
