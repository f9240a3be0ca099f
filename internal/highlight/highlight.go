// Package highlight decides which normalized frames fall inside a detected
// range so the visualization pass can color them.
package highlight

import "github.com/heimdex/brushdetect/internal/detect"

// Predicate is true for frame n iff n lies inside one of its ranges. The zero
// value is the constant-false predicate.
type Predicate struct {
	ranges []detect.Range
}

// Build combines the ranges of both sides, skipping absent ones. The order of
// Ranges is always L then R.
func Build(left, right *detect.Range) Predicate {
	var p Predicate
	for _, r := range []*detect.Range{left, right} {
		if r != nil {
			p.ranges = append(p.ranges, *r)
		}
	}
	return p
}

// FromResult is Build applied to a detection result.
func FromResult(res detect.Result) Predicate {
	return Build(res.Left, res.Right)
}

func (p Predicate) Contains(n int) bool {
	for _, r := range p.ranges {
		if r.Contains(n) {
			return true
		}
	}
	return false
}

// Empty reports whether the predicate is constant false.
func (p Predicate) Empty() bool { return len(p.ranges) == 0 }

// Ranges returns a copy of the present ranges.
func (p Predicate) Ranges() []detect.Range {
	out := make([]detect.Range, len(p.ranges))
	copy(out, p.ranges)
	return out
}
