package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/brushdetect/internal/highlight"
)

// FrameRate returns the native frame rate of the first video stream.
func (t *Transcoder) FrameRate(ctx context.Context, src string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ProbeTimeout)
	defer cancel()

	var stdout bytes.Buffer
	if _, err := t.run(ctx, "ffprobe", t.ffprobe, ProbeRateArgs(src), &stdout); err != nil {
		return 0, err
	}
	rate, err := ParseFrameRate(stdout.String())
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(src), err)
	}
	return rate, nil
}

// Normalize re-encodes src at 1 fps keeping every frame.
func (t *Transcoder) Normalize(ctx context.Context, src, dst string, srcRate float64) error {
	if srcRate <= 0 {
		return fmt.Errorf("normalize %s: invalid frame rate %v", filepath.Base(src), srcRate)
	}
	return t.transcode(ctx, dst, NormalizeArgs(src, dst, srcRate))
}

func (t *Transcoder) Label(ctx context.Context, src, dst string) error {
	return t.transcode(ctx, dst, LabelArgs(src, dst))
}

func (t *Transcoder) Visualize(ctx context.Context, src, dst string, hl highlight.Predicate, displayRate int) error {
	if displayRate < 1 {
		return fmt.Errorf("visualize %s: display rate must be positive, got %d", filepath.Base(src), displayRate)
	}
	return t.transcode(ctx, dst, VisualizeArgs(src, dst, hl, displayRate))
}

func (t *Transcoder) transcode(ctx context.Context, dst string, args []string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	_, err := t.run(ctx, "ffmpeg", t.ffmpeg, args, nil)
	return err
}

// ParseFrameRate parses ffprobe's r_frame_rate output, either a rational
// such as "30000/1001" or a plain number.
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return 0, fmt.Errorf("empty frame rate")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	if r.Sign() <= 0 {
		return 0, fmt.Errorf("non-positive frame rate %q", s)
	}
	f, _ := r.Float64()
	return f, nil
}
