package api

import (
	"time"

	"github.com/heimdex/brushdetect/internal/catalog"
	"github.com/heimdex/brushdetect/internal/ffmpeg"
)

type HealthResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	UptimeS int64           `json:"uptime_s"`
	FFmpeg  *FFmpegResponse `json:"ffmpeg,omitempty"`
}

type FFmpegResponse struct {
	FFmpegVersion  string `json:"ffmpeg_version"`
	FFprobeVersion string `json:"ffprobe_version"`
	HasDrawtext    bool   `json:"has_drawtext"`
	ProbedAt       string `json:"probed_at"`
}

type StatusResponse struct {
	State  string         `json:"state"`
	Run    RunResponse    `json:"run"`
	Counts catalog.Counts `json:"counts"`
	Active []string       `json:"active,omitempty"`
}

type RunResponse struct {
	ID         string `json:"id"`
	InputDir   string `json:"input_dir"`
	OutputDir  string `json:"output_dir"`
	Model      string `json:"model"`
	Workers    int    `json:"workers"`
	Status     string `json:"status"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type JobResponse struct {
	Video      string        `json:"video"`
	Stage      string        `json:"stage"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	SourceFPS  float64       `json:"source_fps,omitempty"`
	Left       *catalog.Span `json:"L"`
	Right      *catalog.Span `json:"R"`
	Notes      string        `json:"notes,omitempty"`
	HasResult  bool          `json:"has_result"`
	HasVis     bool          `json:"has_visualization"`
	DurationMs int64         `json:"duration_ms,omitempty"`
	StartedAt  string        `json:"started_at,omitempty"`
	UpdatedAt  string        `json:"updated_at"`
}

type JobsResponse struct {
	RunID string        `json:"run_id"`
	Jobs  []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RunToResponse(r *catalog.Run) RunResponse {
	resp := RunResponse{
		ID:        r.ID,
		InputDir:  r.InputDir,
		OutputDir: r.OutputDir,
		Model:     r.Model,
		Workers:   r.Workers,
		Status:    r.Status,
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		StartedAt: r.StartedAt.Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

func JobToResponse(j *catalog.Job) JobResponse {
	resp := JobResponse{
		Video:      j.Video,
		Stage:      j.Stage,
		Status:     j.Status,
		Error:      j.Error,
		SourceFPS:  j.SourceFPS,
		Left:       j.Left,
		Right:      j.Right,
		Notes:      j.Notes,
		HasResult:  j.ResultPath != "",
		HasVis:     j.VisPath != "",
		DurationMs: j.DurationMs,
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		resp.StartedAt = j.StartedAt.Format(time.RFC3339)
	}
	return resp
}

func CapabilitiesToResponse(c *ffmpeg.Capabilities) *FFmpegResponse {
	if c == nil {
		return nil
	}
	return &FFmpegResponse{
		FFmpegVersion:  c.FFmpegVersion,
		FFprobeVersion: c.FFprobeVersion,
		HasDrawtext:    c.HasDrawtext,
		ProbedAt:       c.ProbedAt.Format(time.RFC3339),
	}
}
