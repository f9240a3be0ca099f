package catalog

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id string, total, succeeded, failed int, finishedAt time.Time) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, runID, video string) (*Job, error)
	ListJobs(ctx context.Context, runID string) ([]*Job, error)
	StartJob(ctx context.Context, runID, video string, startedAt time.Time) error
	UpdateJobStage(ctx context.Context, runID, video, stage string) error
	FinishJob(ctx context.Context, job *Job) error
	CountJobs(ctx context.Context, runID string) (Counts, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const runColumns = `id, input_dir, output_dir, model, workers, status, total, succeeded, failed, started_at, finished_at`

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, run.ID, run.InputDir, run.OutputDir, run.Model, run.Workers, run.Status,
		run.Total, run.Succeeded, run.Failed, formatTime(run.StartedAt))
	return err
}

func (r *SQLiteRepository) FinishRun(ctx context.Context, id string, total, succeeded, failed int, finishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, total = ?, succeeded = ?, failed = ?, finished_at = ?
		WHERE id = ?
	`, RunStatusCompleted, total, succeeded, failed, formatTime(finishedAt), id)
	return err
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

func (r *SQLiteRepository) LatestRun(ctx context.Context) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	return scanRun(row)
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString

	err := row.Scan(&run.ID, &run.InputDir, &run.OutputDir, &run.Model, &run.Workers, &run.Status,
		&run.Total, &run.Succeeded, &run.Failed, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseNullTime(finishedAt)
	return &run, nil
}

const jobColumns = `run_id, video, source_path, stage, status, error, result_path, vis_path, edl_path,
	source_fps, left_start, left_end, right_start, right_end, notes, duration_ms, started_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (run_id, video, source_path, stage, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, j.RunID, j.Video, j.SourcePath, j.Stage, j.Status, formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, runID, video string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE run_id = ? AND video = ?`, runID, video)
	return scanJob(row)
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, runID string) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE run_id = ? ORDER BY video`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) StartJob(ctx context.Context, runID, video string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE run_id = ? AND video = ?
	`, JobStatusRunning, formatTime(startedAt), formatTime(startedAt), runID, video)
	return err
}

func (r *SQLiteRepository) UpdateJobStage(ctx context.Context, runID, video, stage string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET stage = ?, updated_at = ? WHERE run_id = ? AND video = ?
	`, stage, formatTime(time.Now()), runID, video)
	return err
}

// FinishJob stores the terminal state and result fields of j.
func (r *SQLiteRepository) FinishJob(ctx context.Context, j *Job) error {
	var ls, le, rs, re sql.NullInt64
	if j.Left != nil {
		ls, le = nullInt(j.Left.Start), nullInt(j.Left.End)
	}
	if j.Right != nil {
		rs, re = nullInt(j.Right.Start), nullInt(j.Right.End)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET stage = ?, status = ?, error = ?, result_path = ?, vis_path = ?, edl_path = ?,
			source_fps = ?, left_start = ?, left_end = ?, right_start = ?, right_end = ?, notes = ?,
			duration_ms = ?, updated_at = ?
		WHERE run_id = ? AND video = ?
	`, j.Stage, j.Status, nullString(j.Error), nullString(j.ResultPath), nullString(j.VisPath), nullString(j.EDLPath),
		nullFloat(j.SourceFPS), ls, le, rs, re, nullString(j.Notes),
		j.DurationMs, formatTime(j.UpdatedAt),
		j.RunID, j.Video)
	return err
}

func (r *SQLiteRepository) CountJobs(ctx context.Context, runID string) (Counts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		switch status {
		case JobStatusPending:
			c.Pending = n
		case JobStatusRunning:
			c.Running = n
		case JobStatusCompleted:
			c.Completed = n
		case JobStatusFailed:
			c.Failed = n
		}
	}
	return c, rows.Err()
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var errMsg, resultPath, visPath, edlPath, notes, startedAt sql.NullString
	var fps sql.NullFloat64
	var ls, le, rs, re, durationMs sql.NullInt64
	var updatedAt string

	err := row.Scan(&j.RunID, &j.Video, &j.SourcePath, &j.Stage, &j.Status, &errMsg, &resultPath, &visPath, &edlPath,
		&fps, &ls, &le, &rs, &re, &notes, &durationMs, &startedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.Error = errMsg.String
	j.ResultPath = resultPath.String
	j.VisPath = visPath.String
	j.EDLPath = edlPath.String
	j.Notes = notes.String
	j.SourceFPS = fps.Float64
	j.DurationMs = durationMs.Int64
	j.Left = spanOf(ls, le)
	j.Right = spanOf(rs, re)
	j.StartedAt = parseNullTime(startedAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func spanOf(start, end sql.NullInt64) *Span {
	if !start.Valid || !end.Valid {
		return nil
	}
	return &Span{Start: int(start.Int64), End: int(end.Int64)}
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts RFC 3339 and the "YYYY-MM-DD HH:MM:SS" form written by
// sqlite's datetime('now').
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.DateTime, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func nullFloat(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
