package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/heimdex/brushdetect/internal/detect"
	"github.com/heimdex/brushdetect/internal/highlight"
	"github.com/heimdex/brushdetect/internal/store"
)

type fakeTranscoder struct {
	rate float64

	normalizeCalled atomic.Int32
	labelCalled     atomic.Int32
	visualizeCalled atomic.Int32

	mu           sync.Mutex
	labelSrc     string
	visualizeSrc string
	highlight    highlight.Predicate

	frameRateFn func(ctx context.Context, src string) (float64, error)
	normalizeFn func(ctx context.Context, src, dst string, rate float64) error
	labelFn     func(ctx context.Context, src, dst string) error
	visualizeFn func(ctx context.Context, src, dst string, hl highlight.Predicate, rate int) error
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("video"), 0644)
}

func (f *fakeTranscoder) FrameRate(ctx context.Context, src string) (float64, error) {
	if f.frameRateFn != nil {
		return f.frameRateFn(ctx, src)
	}
	if f.rate == 0 {
		return 30, nil
	}
	return f.rate, nil
}

func (f *fakeTranscoder) Normalize(ctx context.Context, src, dst string, rate float64) error {
	f.normalizeCalled.Add(1)
	if f.normalizeFn != nil {
		return f.normalizeFn(ctx, src, dst, rate)
	}
	return touch(dst)
}

func (f *fakeTranscoder) Label(ctx context.Context, src, dst string) error {
	f.labelCalled.Add(1)
	f.mu.Lock()
	f.labelSrc = src
	f.mu.Unlock()
	if f.labelFn != nil {
		return f.labelFn(ctx, src, dst)
	}
	return touch(dst)
}

func (f *fakeTranscoder) Visualize(ctx context.Context, src, dst string, hl highlight.Predicate, rate int) error {
	f.visualizeCalled.Add(1)
	f.mu.Lock()
	f.visualizeSrc = src
	f.highlight = hl
	f.mu.Unlock()
	if f.visualizeFn != nil {
		return f.visualizeFn(ctx, src, dst, hl, rate)
	}
	return touch(dst)
}

type fakeDetector struct {
	called   atomic.Int32
	detectFn func(ctx context.Context, path string) (detect.Result, error)
}

func (f *fakeDetector) Detect(ctx context.Context, path string) (detect.Result, error) {
	f.called.Add(1)
	if f.detectFn != nil {
		return f.detectFn(ctx, path)
	}
	l, _ := detect.NewRange(3, 5)
	return detect.Result{Left: &l, Notes: "ok"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupJob(t *testing.T) (src, outDir string) {
	t.Helper()
	inDir := t.TempDir()
	src = filepath.Join(inDir, "mouse_01.mp4")
	if err := touch(src); err != nil {
		t.Fatal(err)
	}
	return src, t.TempDir()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunSuccess(t *testing.T) {
	src, outDir := setupJob(t)
	tc := &fakeTranscoder{}
	det := &fakeDetector{}
	runner := NewRunner(tc, det, Options{OutputDir: outDir, Visualize: true, VisRate: 10}, testLogger())

	var stages []Stage
	out := runner.Run(context.Background(), src, func(s Stage) { stages = append(stages, s) })
	if out.Err != nil {
		t.Fatalf("Run error: %v", out.Err)
	}

	want := []Stage{StageNormalized, StageLabeled, StageDetected, StagePersisted, StageVisualized, StageCleaned}
	if !slices.Equal(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}

	paths := PathsFor(outDir, src)
	if !exists(paths.Result) || !exists(paths.Visualization) {
		t.Error("result.json and visualization should exist")
	}
	if exists(paths.Normalized) || exists(paths.Labeled) {
		t.Error("intermediates should be removed")
	}
	if !exists(src) {
		t.Error("source must never be removed")
	}
	if tc.visualizeSrc != paths.Normalized {
		t.Errorf("visualize source = %q, want unlabeled 1 fps asset", tc.visualizeSrc)
	}
	if !tc.highlight.Contains(4) || tc.highlight.Contains(6) {
		t.Error("visualize should receive the detected highlight")
	}

	rec, err := store.Load(paths.Result)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Video != "mouse_01.mp4" {
		t.Errorf("video = %q", rec.Video)
	}
}

func TestRunFastPathAtOneFPS(t *testing.T) {
	src, outDir := setupJob(t)
	tc := &fakeTranscoder{rate: 1}
	runner := NewRunner(tc, &fakeDetector{}, Options{OutputDir: outDir, Visualize: true}, testLogger())

	out := runner.Run(context.Background(), src, nil)
	if out.Err != nil {
		t.Fatalf("Run error: %v", out.Err)
	}
	if tc.normalizeCalled.Load() != 0 {
		t.Error("normalize should be skipped for 1 fps sources")
	}
	if tc.labelSrc != src || tc.visualizeSrc != src {
		t.Errorf("label/visualize sources = %q / %q, want the original", tc.labelSrc, tc.visualizeSrc)
	}
	if !exists(src) {
		t.Error("source must survive cleanup on the fast path")
	}
}

func TestRunCleanupOnEveryFailure(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		tc        *fakeTranscoder
		det       *fakeDetector
		wantStage Stage
	}{
		{
			name:      "probe",
			tc:        &fakeTranscoder{frameRateFn: func(ctx context.Context, src string) (float64, error) { return 0, boom }},
			det:       &fakeDetector{},
			wantStage: StageDiscovered,
		},
		{
			name: "normalize",
			tc: &fakeTranscoder{normalizeFn: func(ctx context.Context, src, dst string, rate float64) error {
				touch(dst)
				return boom
			}},
			det:       &fakeDetector{},
			wantStage: StageDiscovered,
		},
		{
			name: "label",
			tc: &fakeTranscoder{labelFn: func(ctx context.Context, src, dst string) error {
				touch(dst)
				return boom
			}},
			det:       &fakeDetector{},
			wantStage: StageNormalized,
		},
		{
			name: "detect",
			tc:   &fakeTranscoder{},
			det: &fakeDetector{detectFn: func(ctx context.Context, path string) (detect.Result, error) {
				return detect.Result{}, &detect.Error{Kind: detect.ErrService, Asset: path, Err: boom}
			}},
			wantStage: StageLabeled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, outDir := setupJob(t)
			runner := NewRunner(tt.tc, tt.det, Options{OutputDir: outDir, Visualize: true}, testLogger())

			var last Stage
			out := runner.Run(context.Background(), src, func(s Stage) { last = s })
			if !errors.Is(out.Err, boom) {
				t.Fatalf("Run error = %v, want boom", out.Err)
			}
			if out.Stage != tt.wantStage {
				t.Errorf("Stage = %s, want %s", out.Stage, tt.wantStage)
			}
			if last != StageFailed {
				t.Errorf("last observed stage = %s, want failed", last)
			}

			paths := PathsFor(outDir, src)
			if exists(paths.Normalized) || exists(paths.Labeled) {
				t.Error("intermediates should be removed after failure")
			}
			if exists(paths.Result) {
				t.Error("no result.json expected after failure")
			}
			if !exists(src) {
				t.Error("source must never be removed")
			}
		})
	}
}

func TestRunDetectErrorKeepsKind(t *testing.T) {
	src, outDir := setupJob(t)
	det := &fakeDetector{detectFn: func(ctx context.Context, path string) (detect.Result, error) {
		return detect.Result{}, &detect.Error{Kind: detect.ErrMalformedResponse, Asset: path}
	}}
	runner := NewRunner(&fakeTranscoder{}, det, Options{OutputDir: outDir}, testLogger())

	out := runner.Run(context.Background(), src, nil)
	if !errors.Is(out.Err, detect.ErrMalformedResponse) {
		t.Errorf("Run error = %v, want ErrMalformedResponse", out.Err)
	}
}

func TestRunLabeledRemovedBeforePersist(t *testing.T) {
	src, outDir := setupJob(t)
	paths := PathsFor(outDir, src)
	det := &fakeDetector{detectFn: func(ctx context.Context, path string) (detect.Result, error) {
		if path != paths.Labeled {
			t.Errorf("detect path = %q, want labeled asset", path)
		}
		return detect.Result{}, nil
	}}
	runner := NewRunner(&fakeTranscoder{}, det, Options{OutputDir: outDir}, testLogger())

	runner.Run(context.Background(), src, func(s Stage) {
		if s == StageDetected && exists(paths.Labeled) {
			t.Error("labeled asset should be gone once detection resolves")
		}
	})
}

func TestRunPersistBeforeVisualize(t *testing.T) {
	src, outDir := setupJob(t)
	paths := PathsFor(outDir, src)
	visErr := errors.New("drawtext missing")
	tc := &fakeTranscoder{visualizeFn: func(ctx context.Context, s, dst string, hl highlight.Predicate, rate int) error {
		if !exists(paths.Result) {
			t.Error("result.json must be persisted before visualization starts")
		}
		return visErr
	}}
	runner := NewRunner(tc, &fakeDetector{}, Options{OutputDir: outDir, Visualize: true}, testLogger())

	out := runner.Run(context.Background(), src, nil)
	if !errors.Is(out.Err, ErrVisualize) || !errors.Is(out.Err, visErr) {
		t.Fatalf("Run error = %v, want ErrVisualize wrapping the cause", out.Err)
	}
	if out.Stage != StagePersisted {
		t.Errorf("Stage = %s, want persisted", out.Stage)
	}
	if !exists(paths.Result) {
		t.Error("result.json must survive a visualization failure")
	}
	if exists(paths.Normalized) {
		t.Error("intermediates should be removed")
	}
}

func TestRunWithoutVisualize(t *testing.T) {
	src, outDir := setupJob(t)
	tc := &fakeTranscoder{}
	runner := NewRunner(tc, &fakeDetector{}, Options{OutputDir: outDir}, testLogger())

	out := runner.Run(context.Background(), src, nil)
	if out.Err != nil {
		t.Fatalf("Run error: %v", out.Err)
	}
	if tc.visualizeCalled.Load() != 0 || out.VisPath != "" {
		t.Error("visualize should not run")
	}
}

func TestRunWritesEDL(t *testing.T) {
	src, outDir := setupJob(t)
	runner := NewRunner(&fakeTranscoder{rate: 25}, &fakeDetector{}, Options{OutputDir: outDir, WriteEDL: true}, testLogger())

	out := runner.Run(context.Background(), src, nil)
	if out.Err != nil {
		t.Fatalf("Run error: %v", out.Err)
	}
	if out.EDLPath == "" || !exists(out.EDLPath) {
		t.Error("EDL should be written")
	}
	if out.SourceRate != 25 {
		t.Errorf("SourceRate = %v, want 25", out.SourceRate)
	}
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("/out", "/in/mouse.01.MOV")
	if p.Dir != filepath.Join("/out", "mouse.01") {
		t.Errorf("Dir = %q", p.Dir)
	}
	if filepath.Base(p.Normalized) != "mouse.01_1fps_tmp.mp4" || filepath.Base(p.Labeled) != "mouse.01_labeled.mp4" {
		t.Errorf("intermediates = %q, %q", p.Normalized, p.Labeled)
	}
	if filepath.Base(p.Visualization) != "mouse.01_vis.mp4" {
		t.Errorf("Visualization = %q", p.Visualization)
	}
}
