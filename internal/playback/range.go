package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// Span is an inclusive byte range of a file.
type Span struct {
	Start int64
	End   int64
}

func (s Span) Len() int64 {
	return s.End - s.Start + 1
}

func (s Span) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, total)
}

// ParseRange resolves a single-range Range header against a file of size
// bytes. ok is false when the header is empty. Only the first range of a
// multi-range request is honored.
func ParseRange(header string, size int64) (span Span, ok bool, err error) {
	if header == "" {
		return Span{}, false, nil
	}
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return Span{}, false, ErrInvalidRange
	}
	if first, _, multi := strings.Cut(spec, ","); multi {
		spec = strings.TrimSpace(first)
	}
	from, to, found := strings.Cut(spec, "-")
	if !found {
		return Span{}, false, ErrInvalidRange
	}

	if from == "" {
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return Span{}, false, ErrInvalidRange
		}
		span = Span{Start: max(size-n, 0), End: size - 1}
	} else {
		start, err := strconv.ParseInt(from, 10, 64)
		if err != nil || start < 0 {
			return Span{}, false, ErrInvalidRange
		}
		end := size - 1
		if to != "" {
			if end, err = strconv.ParseInt(to, 10, 64); err != nil {
				return Span{}, false, ErrInvalidRange
			}
		}
		span = Span{Start: start, End: end}
	}

	if span.Start > span.End || span.Start >= size {
		return Span{}, false, ErrUnsatisfiable
	}
	span.End = min(span.End, size-1)
	return span, true, nil
}
