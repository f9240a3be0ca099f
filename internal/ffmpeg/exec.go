package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/heimdex/brushdetect/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	logStderrBytes = 512
)

// RunResult is the structured outcome of one subprocess.
type RunResult struct {
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// TranscodeError reports a subprocess that did not exit cleanly.
type TranscodeError struct {
	Tool       string
	Args       []string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *TranscodeError) Error() string {
	msg := lastLine(e.StderrTail)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, msg)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// IsTranscodeError reports whether err came from a failed subprocess.
func IsTranscodeError(err error) bool {
	var te *TranscodeError
	return errors.As(err, &te)
}

// run executes bin with args. stdout may be nil. A non-zero exit or a start
// failure is returned as *TranscodeError alongside the result.
func (t *Transcoder) run(ctx context.Context, tool, bin string, args []string, stdout io.Writer) (RunResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = io.Discard
	}

	t.cfg.Logger.Debug("executing command", "tool", tool, "args", t.safeArgs(args))

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		if ctx.Err() != nil {
			err = ctx.Err()
		}
	}

	result := RunResult{
		ExitCode:   exitCode,
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if err != nil || exitCode != 0 {
		t.cfg.Logger.Warn("command failed",
			"tool", tool,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(result.StderrTail, logStderrBytes),
		)
		return result, &TranscodeError{
			Tool:       tool,
			Args:       args,
			ExitCode:   exitCode,
			StderrTail: result.StderrTail,
			Err:        err,
		}
	}

	t.cfg.Logger.Debug("command succeeded", "tool", tool, "duration_ms", elapsed.Milliseconds())
	return result, nil
}

func (t *Transcoder) safeArgs(args []string) []string {
	if t.cfg.DebugPaths {
		return args
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = logging.SanitizePath(a)
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n\t ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return truncate(strings.TrimSpace(s), logStderrBytes)
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
