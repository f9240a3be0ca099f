// Package detect holds the detection domain types and the retrying client
// that wraps the remote detection service.
package detect

import (
	"encoding/json"
	"fmt"
)

// Side identifies one of the two tracked subjects by on-screen position.
type Side string

const (
	SideLeft  Side = "L"
	SideRight Side = "R"
)

// Range is a closed interval [Start, End] of frame indices.
type Range struct {
	start int
	end   int
}

// NewRange validates and constructs a Range.
func NewRange(start, end int) (Range, error) {
	if start < 0 || end < 0 {
		return Range{}, fmt.Errorf("range [%d, %d]: negative frame index", start, end)
	}
	if start > end {
		return Range{}, fmt.Errorf("range [%d, %d]: start after end", start, end)
	}
	return Range{start: start, end: end}, nil
}

func (r Range) Start() int { return r.start }
func (r Range) End() int   { return r.end }

// Len returns the number of frames covered by the range.
func (r Range) Len() int { return r.end - r.start + 1 }

func (r Range) Contains(n int) bool {
	return n >= r.start && n <= r.end
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.start, r.end)
}

func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.start, r.end})
}

// Result is the validated outcome of one detection call. A nil side means the
// service reported no single confident event for it.
type Result struct {
	Left  *Range
	Right *Range
	Notes string
}

// Side returns the range reported for s, or nil when absent.
func (r Result) Side(s Side) *Range {
	switch s {
	case SideLeft:
		return r.Left
	case SideRight:
		return r.Right
	default:
		return nil
	}
}

func formatSide(r *Range) string {
	if r == nil {
		return "null"
	}
	return r.String()
}

func (r Result) String() string {
	return fmt.Sprintf("L=%s R=%s", formatSide(r.Left), formatSide(r.Right))
}
