package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/heimdex/brushdetect/internal/detect"
	"github.com/heimdex/brushdetect/internal/export"
	"github.com/heimdex/brushdetect/internal/highlight"
	"github.com/heimdex/brushdetect/internal/logging"
	"github.com/heimdex/brushdetect/internal/store"
)

const DefaultVisRate = 10

// Options configure every job of a run.
type Options struct {
	OutputDir string
	Visualize bool
	VisRate   int
	WriteEDL  bool
}

// Outcome is the terminal report of one job.
type Outcome struct {
	Video      string // source file name
	Source     string // source path
	Stage      Stage  // last stage reached before the terminal one
	SourceRate float64
	Result     *detect.Result
	ResultPath string
	VisPath    string
	EDLPath    string
	Err        error
	Duration   time.Duration
}

func (o Outcome) Succeeded() bool { return o.Err == nil }

// Runner executes jobs. It holds no per-job state and is safe for
// concurrent use.
type Runner struct {
	tc     Transcoder
	det    Detector
	opts   Options
	logger *slog.Logger
}

func NewRunner(tc Transcoder, det Detector, opts Options, logger *slog.Logger) *Runner {
	if opts.VisRate < 1 {
		opts.VisRate = DefaultVisRate
	}
	return &Runner{tc: tc, det: det, opts: opts, logger: logger}
}

// Run takes src to a terminal state. Intermediates are removed on every
// exit path; src itself is never touched.
func (r *Runner) Run(ctx context.Context, src string, observe StageObserver) (out Outcome) {
	start := time.Now()
	paths := PathsFor(r.opts.OutputDir, src)
	logger := logging.WithVideo(r.logger, filepath.Base(src))

	out = Outcome{Video: filepath.Base(src), Source: src, Stage: StageDiscovered}
	advance := func(s Stage) {
		out.Stage = s
		logger.Info("stage complete", "stage", string(s))
		if observe != nil {
			observe(s)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			out.Err = fmt.Errorf("panic: %v", rec)
		}
		r.cleanup(logger, src, paths)
		out.Duration = time.Since(start)
		if out.Err != nil {
			logger.Error("video failed", "stage", string(out.Stage), "error", out.Err)
			if observe != nil {
				observe(StageFailed)
			}
			return
		}
		if observe != nil {
			observe(StageCleaned)
		}
	}()

	if err := os.MkdirAll(paths.Dir, 0755); err != nil {
		out.Err = fmt.Errorf("prepare: %w", err)
		return out
	}

	rate, err := r.tc.FrameRate(ctx, src)
	if err != nil {
		out.Err = fmt.Errorf("probe: %w", err)
		return out
	}
	out.SourceRate = rate
	logger.Info("source frame rate", "fps", rate)

	asset := src
	if rate == 1 {
		logger.Info("source already 1 fps, skipping normalize")
	} else {
		if err := r.tc.Normalize(ctx, src, paths.Normalized, rate); err != nil {
			out.Err = fmt.Errorf("normalize: %w", err)
			return out
		}
		asset = paths.Normalized
	}
	advance(StageNormalized)

	if err := r.tc.Label(ctx, asset, paths.Labeled); err != nil {
		out.Err = fmt.Errorf("label: %w", err)
		return out
	}
	advance(StageLabeled)

	res, err := r.det.Detect(ctx, paths.Labeled)
	removeIntermediate(logger, src, paths.Labeled)
	if err != nil {
		out.Err = fmt.Errorf("detect: %w", err)
		return out
	}
	out.Result = &res
	logger.Info("detection result", "L", formatRange(res.Left), "R", formatRange(res.Right), "notes", res.Notes)
	advance(StageDetected)

	resultPath, err := store.Save(paths.Dir, store.Record{Result: res, Video: out.Video})
	if err != nil {
		out.Err = fmt.Errorf("persist: %w", err)
		return out
	}
	out.ResultPath = resultPath
	advance(StagePersisted)

	if r.opts.WriteEDL {
		if err := export.WriteEDL(paths.EDL, res, src, rate); err != nil {
			out.Err = fmt.Errorf("export: %w", err)
			return out
		}
		out.EDLPath = paths.EDL
	}

	if r.opts.Visualize {
		if err := r.tc.Visualize(ctx, asset, paths.Visualization, highlight.FromResult(res), r.opts.VisRate); err != nil {
			out.Err = fmt.Errorf("visualize: %w: %w", ErrVisualize, err)
			return out
		}
		out.VisPath = paths.Visualization
		advance(StageVisualized)
	}

	return out
}

func (r *Runner) cleanup(logger *slog.Logger, src string, paths Paths) {
	removeIntermediate(logger, src, paths.Normalized)
	removeIntermediate(logger, src, paths.Labeled)
}

// removeIntermediate deletes path unless it is the source video.
func removeIntermediate(logger *slog.Logger, src, path string) {
	if sameFile(src, path) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove intermediate", "path", logging.SanitizePath(path), "error", err)
	}
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func formatRange(r *detect.Range) string {
	if r == nil {
		return "null"
	}
	return r.String()
}
