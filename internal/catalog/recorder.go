package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/heimdex/brushdetect/internal/batch"
	"github.com/heimdex/brushdetect/internal/pipeline"
)

const writeTimeout = 5 * time.Second

// Recorder mirrors batch events into the ledger. Write failures are logged
// and never reach the job.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger, now: time.Now}
}

func (r *Recorder) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), writeTimeout)
}

func (r *Recorder) OnRunStart(info batch.RunInfo) {
	ctx, cancel := r.ctx()
	defer cancel()

	run := &Run{
		ID:        info.ID,
		InputDir:  info.InputDir,
		OutputDir: info.OutputDir,
		Model:     info.Model,
		Workers:   info.Workers,
		Status:    RunStatusRunning,
		Total:     len(info.Videos),
		StartedAt: info.StartedAt,
	}
	if err := r.repo.CreateRun(ctx, run); err != nil {
		r.logger.Warn("ledger: failed to record run", "run_id", info.ID, "error", err)
		return
	}

	now := r.now()
	for _, src := range info.Videos {
		job := &Job{
			RunID:      info.ID,
			Video:      filepath.Base(src),
			SourcePath: src,
			Stage:      string(pipeline.StageDiscovered),
			Status:     JobStatusPending,
			UpdatedAt:  now,
		}
		if err := r.repo.CreateJob(ctx, job); err != nil {
			r.logger.Warn("ledger: failed to record job", "run_id", info.ID, "video", job.Video, "error", err)
		}
	}
}

func (r *Recorder) OnJobStart(runID, video string) {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.repo.StartJob(ctx, runID, video, r.now()); err != nil {
		r.logger.Warn("ledger: failed to start job", "run_id", runID, "video", video, "error", err)
	}
}

func (r *Recorder) OnStage(runID, video string, stage pipeline.Stage) {
	if stage.Terminal() {
		// OnJobDone writes the terminal row with its result fields.
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.repo.UpdateJobStage(ctx, runID, video, string(stage)); err != nil {
		r.logger.Warn("ledger: failed to update stage", "run_id", runID, "video", video, "stage", string(stage), "error", err)
	}
}

func (r *Recorder) OnJobDone(runID string, out pipeline.Outcome) {
	ctx, cancel := r.ctx()
	defer cancel()

	job := JobFromOutcome(runID, out)
	job.UpdatedAt = r.now()
	if err := r.repo.FinishJob(ctx, job); err != nil {
		r.logger.Warn("ledger: failed to finish job", "run_id", runID, "video", out.Video, "error", err)
	}
}

func (r *Recorder) OnRunDone(sum batch.Summary) {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.repo.FinishRun(ctx, sum.RunID, sum.Total, sum.Succeeded, len(sum.Failed), sum.FinishedAt); err != nil {
		r.logger.Warn("ledger: failed to finish run", "run_id", sum.RunID, "error", err)
	}
}

// JobFromOutcome converts a terminal outcome into a ledger row.
func JobFromOutcome(runID string, out pipeline.Outcome) *Job {
	job := &Job{
		RunID:      runID,
		Video:      out.Video,
		SourcePath: out.Source,
		Stage:      string(pipeline.StageCleaned),
		Status:     JobStatusCompleted,
		ResultPath: out.ResultPath,
		VisPath:    out.VisPath,
		EDLPath:    out.EDLPath,
		SourceFPS:  out.SourceRate,
		DurationMs: out.Duration.Milliseconds(),
	}
	if out.Err != nil {
		job.Stage = string(out.Stage)
		job.Status = JobStatusFailed
		job.Error = out.Err.Error()
	}
	if out.Result != nil {
		if l := out.Result.Left; l != nil {
			job.Left = &Span{Start: l.Start(), End: l.End()}
		}
		if rr := out.Result.Right; rr != nil {
			job.Right = &Span{Start: rr.Start(), End: rr.End()}
		}
		job.Notes = out.Result.Notes
	}
	return job
}
