package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/heimdex/brushdetect/internal/detect"
)

func TestEncode(t *testing.T) {
	l, _ := detect.NewRange(3, 5)
	data, err := Encode(Record{
		Result: detect.Result{Left: &l, Notes: "오른쪽 없음 <ok>"},
		Video:  "mouse_01.mp4",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := `{
  "L": [
    3,
    5
  ],
  "R": null,
  "notes": "오른쪽 없음 <ok>",
  "video": "mouse_01.mp4"
}`
	if string(data) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", data, want)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mouse_01")
	l, _ := detect.NewRange(3, 5)
	r, _ := detect.NewRange(10, 12)

	path, err := Save(dir, Record{
		Result: detect.Result{Left: &l, Right: &r, Notes: "both clear"},
		Video:  "mouse_01.mp4",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(dir, "result.json") {
		t.Errorf("path = %q", path)
	}

	rec, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Video != "mouse_01.mp4" || rec.Result.Notes != "both clear" {
		t.Errorf("Load() = %+v", rec)
	}
	if rec.Result.String() != "L=[3, 5] R=[10, 12]" {
		t.Errorf("ranges = %s", rec.Result)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only result.json in %s, found %d entries", dir, len(entries))
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	if _, err := Save(dir, Record{Video: "a.mp4", Result: detect.Result{Notes: "first"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := Save(dir, Record{Video: "a.mp4", Result: detect.Result{Notes: "second"}}); err != nil {
		t.Fatal(err)
	}
	rec, err := Load(Path(dir))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Result.Notes != "second" {
		t.Errorf("Notes = %q, want second", rec.Result.Notes)
	}
}

func TestLoadRejectsInvalidRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	os.WriteFile(path, []byte(`{"L":[5,3],"R":null,"notes":"","video":"a.mp4"}`), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); !os.IsNotExist(err) {
		t.Errorf("Load() error = %v, want not-exist", err)
	}
}
