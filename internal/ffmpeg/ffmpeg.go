// Package ffmpeg runs the ffmpeg and ffprobe binaries as subprocesses to
// probe, normalize, label and visualize videos.
package ffmpeg

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Config holds the transcoder's configuration.
type Config struct {
	FFmpegPath   string        // empty = look up "ffmpeg" on PATH
	FFprobePath  string        // empty = look up "ffprobe" on PATH
	ProbeTimeout time.Duration // timeout for ffprobe calls
	Logger       *slog.Logger
	DebugPaths   bool // if true, log full file paths; otherwise sanitise
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		ProbeTimeout: 30 * time.Second,
		Logger:       logger,
	}
}

// Transcoder is the production media transcoder. It is safe for concurrent
// use; every call spawns its own subprocess.
type Transcoder struct {
	cfg     Config
	ffmpeg  string
	ffprobe string
}

// New resolves both binaries and returns a Transcoder.
func New(cfg Config) (*Transcoder, error) {
	ffmpegBin, err := resolveBinary(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobeBin, err := resolveBinary(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}

	cfg.Logger.Info("transcoder initialised", "ffmpeg", ffmpegBin, "ffprobe", ffprobeBin)
	return &Transcoder{cfg: cfg, ffmpeg: ffmpegBin, ffprobe: ffprobeBin}, nil
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("no %s binary found on PATH: %w", name, err)
	}
	return p, nil
}
