// Package catalog records runs and per-video jobs in the sqlite ledger.
package catalog

import "time"

const (
	RunStatusRunning     = "running"
	RunStatusCompleted   = "completed"
	RunStatusInterrupted = "interrupted"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Run struct {
	ID         string     `json:"id"`
	InputDir   string     `json:"input_dir"`
	OutputDir  string     `json:"output_dir"`
	Model      string     `json:"model"`
	Workers    int        `json:"workers"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Span is a persisted frame range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Job struct {
	RunID      string     `json:"run_id"`
	Video      string     `json:"video"`
	SourcePath string     `json:"source_path"`
	Stage      string     `json:"stage"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	ResultPath string     `json:"result_path,omitempty"`
	VisPath    string     `json:"vis_path,omitempty"`
	EDLPath    string     `json:"edl_path,omitempty"`
	SourceFPS  float64    `json:"source_fps,omitempty"`
	Left       *Span      `json:"left,omitempty"`
	Right      *Span      `json:"right,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Counts aggregates job statuses of one run.
type Counts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func (c Counts) Total() int {
	return c.Pending + c.Running + c.Completed + c.Failed
}
