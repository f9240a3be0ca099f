// Package store persists per-video detection results as result.json.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/heimdex/brushdetect/internal/detect"
)

// ResultFilename is the name of the per-video result document.
const ResultFilename = "result.json"

// Record is one persisted detection outcome.
type Record struct {
	Result detect.Result
	Video  string // source file name, without directory
}

type recordJSON struct {
	L     *detect.Range `json:"L"`
	R     *detect.Range `json:"R"`
	Notes string        `json:"notes"`
	Video string        `json:"video"`
}

// Path returns where Save writes the record for dir.
func Path(dir string) string {
	return filepath.Join(dir, ResultFilename)
}

// Encode renders rec as 2-space indented JSON with non-ASCII kept verbatim.
func Encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(recordJSON{
		L:     rec.Result.Left,
		R:     rec.Result.Right,
		Notes: rec.Result.Notes,
		Video: rec.Video,
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Save writes rec to dir/result.json atomically and returns the path.
func Save(dir string, rec Record) (string, error) {
	data, err := Encode(rec)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}

	path := Path(dir)
	tmp, err := os.CreateTemp(dir, ".result-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp result: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close result: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return "", fmt.Errorf("chmod result: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename result: %w", err)
	}
	return path, nil
}

// Load reads a result document and validates its ranges again.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}

	var raw struct {
		L     json.RawMessage `json:"L"`
		R     json.RawMessage `json:"R"`
		Notes string          `json:"notes"`
		Video string          `json:"video"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	left, err := detect.DecodeRange(raw.L)
	if err != nil {
		return Record{}, fmt.Errorf("parse %s: L: %w", filepath.Base(path), err)
	}
	right, err := detect.DecodeRange(raw.R)
	if err != nil {
		return Record{}, fmt.Errorf("parse %s: R: %w", filepath.Base(path), err)
	}

	return Record{
		Result: detect.Result{Left: left, Right: right, Notes: raw.Notes},
		Video:  raw.Video,
	}, nil
}
