package detect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Response field names shared with the response schema and result.json.
const (
	FieldLeft  = "L"
	FieldRight = "R"
	FieldNotes = "notes"
)

// ParseResponse decodes and validates the JSON text returned by the service.
// Each side must be null/missing or exactly two non-negative integers with
// start <= end. Non-string notes are kept as their compact JSON text.
func ParseResponse(text string) (Result, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if fields == nil {
		return Result{}, errors.New("response is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return Result{}, errors.New("trailing data after JSON object")
	}

	left, err := DecodeRange(fields[FieldLeft])
	if err != nil {
		return Result{}, fmt.Errorf("field %q: %w", FieldLeft, err)
	}
	right, err := DecodeRange(fields[FieldRight])
	if err != nil {
		return Result{}, fmt.Errorf("field %q: %w", FieldRight, err)
	}

	return Result{Left: left, Right: right, Notes: coerceNotes(fields[FieldNotes])}, nil
}

// DecodeRange validates one side of a response: null (or missing) yields nil,
// anything else must be a [start, end] integer pair.
func DecodeRange(raw json.RawMessage) (*Range, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected [start, end] or null, got %s", raw)
	}
	if len(items) != 2 {
		return nil, fmt.Errorf("expected 2 elements, got %d", len(items))
	}

	var bounds [2]int
	for i, item := range items {
		n, err := decodeInt(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		bounds[i] = n
	}

	r, err := NewRange(bounds[0], bounds[1])
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeInt(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not an integer: %s", raw)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", raw)
	}
	return int(n), nil
}

func coerceNotes(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
