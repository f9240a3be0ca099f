package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/brushdetect/internal/catalog"
	"github.com/heimdex/brushdetect/internal/playback"
	"github.com/heimdex/brushdetect/internal/store"
)

const defaultRunsLimit = 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))
	r.Get("/runs", listRunsHandler(cfg))
	r.Get("/jobs", listJobsHandler(cfg))
	r.Get("/jobs/{video}", getJobHandler(cfg))
	r.Get("/jobs/{video}/result", resultHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())
		r.Get("/jobs/{video}/visualization", visualizationHandler(cfg))
		r.Head("/jobs/{video}/visualization", visualizationHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			FFmpeg:  CapabilitiesToResponse(cfg.Capabilities),
		})
	}
}

// resolveRun returns the run named by ?run=, or the latest one. It writes
// the error response itself and returns nil when there is nothing to show.
func resolveRun(cfg ServerConfig, w http.ResponseWriter, r *http.Request) *catalog.Run {
	ctx := r.Context()
	var (
		run *catalog.Run
		err error
	)
	if id := r.URL.Query().Get("run"); id != "" {
		run, err = cfg.Ledger.GetRun(ctx, id)
	} else {
		run, err = cfg.Ledger.LatestRun(ctx)
	}
	if err != nil {
		cfg.Logger.Error("ledger read failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to read ledger", "INTERNAL_ERROR")
		return nil
	}
	if run == nil {
		WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
		return nil
	}
	return run
}

// resolveJob looks up {video} in the selected run, writing the error
// response itself on failure.
func resolveJob(cfg ServerConfig, w http.ResponseWriter, r *http.Request) *catalog.Job {
	video := chi.URLParam(r, "video")
	if video == "" {
		WriteError(w, http.StatusBadRequest, "video is required", "BAD_REQUEST")
		return nil
	}
	run := resolveRun(cfg, w, r)
	if run == nil {
		return nil
	}
	job, err := cfg.Ledger.GetJob(r.Context(), run.ID, video)
	if err != nil {
		cfg.Logger.Error("ledger read failed", "error", err, "video", video)
		WriteError(w, http.StatusInternalServerError, "failed to read ledger", "INTERNAL_ERROR")
		return nil
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
		return nil
	}
	return job
}

func runState(run *catalog.Run) string {
	switch run.Status {
	case catalog.RunStatusRunning:
		return "running"
	case catalog.RunStatusInterrupted:
		return "interrupted"
	}
	if run.Failed > 0 {
		return "completed_with_failures"
	}
	return "completed"
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := resolveRun(cfg, w, r)
		if run == nil {
			return
		}

		counts, err := cfg.Ledger.CountJobs(r.Context(), run.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to count jobs", "INTERNAL_ERROR")
			return
		}

		resp := StatusResponse{
			State:  runState(run),
			Run:    RunToResponse(run),
			Counts: counts,
		}
		if counts.Running > 0 {
			jobs, err := cfg.Ledger.ListJobs(r.Context(), run.ID)
			if err == nil {
				for _, j := range jobs {
					if j.Status == catalog.JobStatusRunning {
						resp.Active = append(resp.Active, j.Video)
					}
				}
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		runs, err := cfg.Ledger.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := resolveRun(cfg, w, r)
		if run == nil {
			return
		}

		jobs, err := cfg.Ledger.ListJobs(r.Context(), run.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{RunID: run.ID, Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if job := resolveJob(cfg, w, r); job != nil {
			WriteJSON(w, http.StatusOK, JobToResponse(job))
		}
	}
}

func resultHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := resolveJob(cfg, w, r)
		if job == nil {
			return
		}
		if job.ResultPath == "" {
			WriteError(w, http.StatusNotFound, "no result recorded for this job", "NOT_FOUND")
			return
		}

		rec, err := store.Load(job.ResultPath)
		if errors.Is(err, fs.ErrNotExist) {
			WriteError(w, http.StatusNotFound, "result file is missing", "NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Error("failed to load result", "error", err, "video", job.Video)
			WriteError(w, http.StatusInternalServerError, "result file is unreadable", "INTERNAL_ERROR")
			return
		}

		data, err := store.Encode(rec)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to encode result", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func visualizationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := resolveJob(cfg, w, r)
		if job == nil {
			return
		}
		if job.VisPath == "" || cfg.Playback == nil {
			WriteError(w, http.StatusNotFound, "no visualization for this job", "NOT_FOUND")
			return
		}

		err := cfg.Playback.ServeVideo(w, r, job.VisPath)
		if errors.Is(err, playback.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "visualization file is missing", "NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Error("playback error", "error", err, "video", job.Video)
		}
	}
}
