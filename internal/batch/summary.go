package batch

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/heimdex/brushdetect/internal/pipeline"
)

// Failure is one failed video in a summary.
type Failure struct {
	Video   string
	Message string
}

func (f Failure) String() string {
	return f.Video + ": " + f.Message
}

// Summary is the result of a run. Failed and Outcomes follow discovery
// order.
type Summary struct {
	RunID      string
	Total      int
	Succeeded  int
	Failed     []Failure
	Outcomes   []pipeline.Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether every discovered video succeeded.
func (s Summary) OK() bool {
	return len(s.Failed) == 0 && s.Succeeded == s.Total
}

// ExitCode is 0 when every video succeeded and 1 otherwise.
func (s Summary) ExitCode() int {
	if s.OK() {
		return 0
	}
	return 1
}

func summarize(runID string, outcomes []pipeline.Outcome, started, finished time.Time) Summary {
	s := Summary{
		RunID:      runID,
		Total:      len(outcomes),
		Outcomes:   outcomes,
		StartedAt:  started,
		FinishedAt: finished,
	}
	for _, out := range outcomes {
		if out.Succeeded() {
			s.Succeeded++
			continue
		}
		s.Failed = append(s.Failed, Failure{Video: out.Video, Message: out.Err.Error()})
	}
	return s
}

// Print writes the human-readable end-of-run report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Done. %d/%d video(s) succeeded in %s.\n",
		s.Succeeded, s.Total, s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	if len(s.Failed) == 0 {
		return
	}
	fmt.Fprintln(w, "Failed:")
	for _, f := range s.Failed {
		fmt.Fprintf(w, "  - %s\n", f)
	}
}
