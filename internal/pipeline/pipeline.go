// Package pipeline drives one video through probe, normalize, label,
// detect, persist and the optional visualize and export steps.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/heimdex/brushdetect/internal/detect"
	"github.com/heimdex/brushdetect/internal/highlight"
)

// Stage is a VideoJob state.
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageNormalized Stage = "normalized"
	StageLabeled    Stage = "labeled"
	StageDetected   Stage = "detected"
	StagePersisted  Stage = "persisted"
	StageVisualized Stage = "visualized"
	StageCleaned    Stage = "cleaned"
	StageFailed     Stage = "failed"
)

// Terminal reports whether no further transition follows s.
func (s Stage) Terminal() bool {
	return s == StageCleaned || s == StageFailed
}

// ErrVisualize marks a job whose result was persisted but whose
// visualization render failed.
var ErrVisualize = errors.New("visualization failed")

// Transcoder is the media port used by a job.
type Transcoder interface {
	FrameRate(ctx context.Context, src string) (float64, error)
	Normalize(ctx context.Context, src, dst string, srcRate float64) error
	Label(ctx context.Context, src, dst string) error
	Visualize(ctx context.Context, src, dst string, hl highlight.Predicate, displayRate int) error
}

// Detector returns validated ranges for a labeled asset.
type Detector interface {
	Detect(ctx context.Context, path string) (detect.Result, error)
}

// StageObserver is told about every transition of a job, in order.
type StageObserver func(stage Stage)

// Paths lists every file a job may touch for one source video.
type Paths struct {
	Dir           string
	Normalized    string
	Labeled       string
	Visualization string
	Result        string
	EDL           string
}

// Stem returns the file name of src without its extension.
func Stem(src string) string {
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PathsFor lays out the outputs of src under outputDir/<stem>/.
func PathsFor(outputDir, src string) Paths {
	stem := Stem(src)
	dir := filepath.Join(outputDir, stem)
	return Paths{
		Dir:           dir,
		Normalized:    filepath.Join(dir, stem+"_1fps_tmp.mp4"),
		Labeled:       filepath.Join(dir, stem+"_labeled.mp4"),
		Visualization: filepath.Join(dir, stem+"_vis.mp4"),
		Result:        filepath.Join(dir, "result.json"),
		EDL:           filepath.Join(dir, stem+".edl"),
	}
}
