package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/brushdetect/internal/logging"
	"github.com/heimdex/brushdetect/internal/pipeline"
)

// JobRunner takes one video to a terminal state. *pipeline.Runner
// implements it.
type JobRunner interface {
	Run(ctx context.Context, src string, observe pipeline.StageObserver) pipeline.Outcome
}

// Meta is run-level information passed to observers.
type Meta struct {
	InputDir  string
	OutputDir string
	Model     string
}

type Orchestrator struct {
	jobs     JobRunner
	meta     Meta
	observer Observers
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

type Option func(*Orchestrator)

// WithObserver attaches run observers.
func WithObserver(obs ...Observer) Option {
	return func(o *Orchestrator) {
		o.observer = append(o.observer, obs...)
	}
}

func New(jobs JobRunner, meta Meta, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:     jobs,
		meta:     meta,
		observer: Observers{},
		logger:   logging.WithComponent(logger, "batch"),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Workers clamps the requested concurrency to [1, videos].
func Workers(concurrency, videos int) int {
	if concurrency > videos {
		concurrency = videos
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return concurrency
}

// Run processes every video with a fixed pool of workers. A failing video
// never stops the others; each one ends up in the summary. Videos not yet
// started when ctx is cancelled are reported as failed without running, as
// are videos that would share an output directory with another video.
func (o *Orchestrator) Run(ctx context.Context, videos []string, concurrency int) Summary {
	runID := o.newID()
	started := o.now()
	workers := Workers(concurrency, len(videos))
	logger := logging.WithRunID(o.logger, runID)

	o.observer.OnRunStart(RunInfo{
		ID:        runID,
		InputDir:  o.meta.InputDir,
		OutputDir: o.meta.OutputDir,
		Model:     o.meta.Model,
		Videos:    videos,
		Workers:   workers,
		StartedAt: started,
	})
	logger.Info("run started", "videos", len(videos), "workers", workers)

	type task struct {
		idx int
		src string
	}

	outcomes := make([]pipeline.Outcome, len(videos))
	finished := make([]bool, len(videos))
	var mu sync.Mutex

	clashes := StemClashes(videos)
	for i, src := range videos {
		others, ok := clashes[src]
		if !ok {
			continue
		}
		out := pipeline.Outcome{
			Video:  filepath.Base(src),
			Source: src,
			Stage:  pipeline.StageDiscovered,
			Err:    fmt.Errorf("%w with %s", ErrOutputClash, strings.Join(others, ", ")),
		}
		outcomes[i] = out
		finished[i] = true
		logger.Error("video skipped", "video", out.Video, "error", out.Err)
		o.observer.OnJobDone(runID, out)
	}

	tasks := make(chan task)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				video := filepath.Base(t.src)
				o.observer.OnJobStart(runID, video)
				out := o.jobs.Run(ctx, t.src, func(stage pipeline.Stage) {
					o.observer.OnStage(runID, video, stage)
				})

				mu.Lock()
				outcomes[t.idx] = out
				finished[t.idx] = true
				mu.Unlock()

				o.observer.OnJobDone(runID, out)
			}
		}()
	}

feed:
	for i, src := range videos {
		if _, clash := clashes[src]; clash {
			continue
		}
		// select does not prefer ctx.Done over a ready worker.
		if ctx.Err() != nil {
			break feed
		}
		select {
		case tasks <- task{idx: i, src: src}:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	for i, src := range videos {
		if finished[i] {
			continue
		}
		out := pipeline.Outcome{
			Video:  filepath.Base(src),
			Source: src,
			Stage:  pipeline.StageDiscovered,
			Err:    fmt.Errorf("not started: %w", context.Cause(ctx)),
		}
		outcomes[i] = out
		o.observer.OnJobDone(runID, out)
	}

	sum := summarize(runID, outcomes, started, o.now())
	logger.Info("run finished",
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"failed", len(sum.Failed),
		"duration_ms", sum.FinishedAt.Sub(started).Milliseconds(),
	)
	o.observer.OnRunDone(sum)
	return sum
}
