package batch

import (
	"time"

	"github.com/heimdex/brushdetect/internal/pipeline"
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	ID        string
	InputDir  string
	OutputDir string
	Model     string
	Videos    []string
	Workers   int
	StartedAt time.Time
}

// Observer receives run events. Implementations must be safe for concurrent
// use: job and stage events arrive from every worker.
type Observer interface {
	OnRunStart(info RunInfo)
	OnJobStart(runID, video string)
	OnStage(runID, video string, stage pipeline.Stage)
	OnJobDone(runID string, out pipeline.Outcome)
	OnRunDone(sum Summary)
}

// Observers fans every event out to each member in order.
type Observers []Observer

func (m Observers) OnRunStart(info RunInfo) {
	for _, o := range m {
		o.OnRunStart(info)
	}
}

func (m Observers) OnJobStart(runID, video string) {
	for _, o := range m {
		o.OnJobStart(runID, video)
	}
}

func (m Observers) OnStage(runID, video string, stage pipeline.Stage) {
	for _, o := range m {
		o.OnStage(runID, video, stage)
	}
}

func (m Observers) OnJobDone(runID string, out pipeline.Outcome) {
	for _, o := range m {
		o.OnJobDone(runID, out)
	}
}

func (m Observers) OnRunDone(sum Summary) {
	for _, o := range m {
		o.OnRunDone(sum)
	}
}
