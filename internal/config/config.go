// Package config turns command-line settings and the environment into a
// validated run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/brushdetect/internal/detect"
	"github.com/heimdex/brushdetect/internal/logging"
)

const (
	// Default values
	DefaultModel        = "gemini-3.1-pro-preview"
	DefaultTemperature  = 0.0
	DefaultVisRate      = 10
	DefaultWorkers      = 4
	DefaultLogLevel     = "info"
	DefaultLogFormat    = logging.FormatJSON
	DefaultPollInterval = detect.DefaultPollInterval
	DefaultPollTimeout  = detect.DefaultPollTimeout

	// Environment variable names
	EnvAPIKey     = "GEMINI_API_KEY"
	EnvLogLevel   = "BRUSHDETECT_LOG_LEVEL"
	EnvStatusAddr = "BRUSHDETECT_STATUS_ADDR"
	EnvFFmpeg     = "BRUSHDETECT_FFMPEG"
	EnvFFprobe    = "BRUSHDETECT_FFPROBE"

	// LedgerDisabled as the ledger path turns the run ledger off.
	LedgerDisabled = "none"
	ledgerDir      = ".brushdetect"
	ledgerFilename = "ledger.db"

	maxTemperature = 2.0
)

var ErrMissingAPIKey = errors.New(EnvAPIKey + " is not set")

// Settings are the raw values collected from flags.
type Settings struct {
	InputDir     string
	OutputDir    string
	Model        string
	Temperature  float64
	Visualize    bool
	VisRate      int
	Workers      int
	RPM          int
	EDL          bool
	StatusAddr   string
	Ledger       string
	LogLevel     string
	LogFormat    string
	PollInterval time.Duration
	PollTimeout  time.Duration
	FFmpegPath   string
	FFprobePath  string
}

// EnvConfig is the validated configuration of one invocation.
type EnvConfig struct {
	s      Settings
	apiKey string
}

// New applies defaults to s, reads the API key from the environment and
// validates the result.
func New(s Settings) (*EnvConfig, error) {
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.VisRate == 0 {
		s.VisRate = DefaultVisRate
	}
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.LogFormat == "" {
		s.LogFormat = DefaultLogFormat
	}
	if s.PollInterval == 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.PollTimeout == 0 {
		s.PollTimeout = DefaultPollTimeout
	}

	if err := validate(&s); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	return &EnvConfig{s: s, apiKey: key}, nil
}

func validate(s *Settings) error {
	if s.InputDir == "" {
		return errors.New("input directory is required")
	}
	info, err := os.Stat(s.InputDir)
	if err != nil {
		return fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input directory %s is not a directory", s.InputDir)
	}
	if s.OutputDir == "" {
		return errors.New("output directory is required")
	}

	if s.Temperature < 0 || s.Temperature > maxTemperature {
		return fmt.Errorf("invalid temperature %g: must be between 0 and %g", s.Temperature, maxTemperature)
	}
	if s.VisRate < 1 {
		return fmt.Errorf("invalid visualization fps %d: must be at least 1", s.VisRate)
	}
	if s.Workers < 1 {
		return fmt.Errorf("invalid workers %d: must be at least 1", s.Workers)
	}
	if s.RPM < 0 {
		return fmt.Errorf("invalid rpm %d: must not be negative", s.RPM)
	}
	if s.PollInterval < 0 || s.PollTimeout < 0 {
		return errors.New("poll interval and timeout must be positive")
	}

	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(s.LogFormat) {
	case logging.FormatJSON, logging.FormatText:
	default:
		return fmt.Errorf("unknown log format %q", s.LogFormat)
	}

	if s.StatusAddr != "" && strings.EqualFold(s.Ledger, LedgerDisabled) {
		return errors.New("the status server reads the run ledger and cannot run with --ledger none")
	}
	return nil
}

func (c *EnvConfig) InputDir() string  { return c.s.InputDir }
func (c *EnvConfig) OutputDir() string { return c.s.OutputDir }
func (c *EnvConfig) Model() string     { return c.s.Model }

func (c *EnvConfig) Temperature() float64 { return c.s.Temperature }

// Visualize reports whether highlight videos are rendered.
func (c *EnvConfig) Visualize() bool { return c.s.Visualize }

func (c *EnvConfig) VisRate() int { return c.s.VisRate }
func (c *EnvConfig) Workers() int { return c.s.Workers }

// RPM returns the generate-call budget per minute. Zero means unlimited.
func (c *EnvConfig) RPM() int { return c.s.RPM }

func (c *EnvConfig) WriteEDL() bool      { return c.s.EDL }
func (c *EnvConfig) StatusAddr() string  { return c.s.StatusAddr }
func (c *EnvConfig) LogLevel() string    { return c.s.LogLevel }
func (c *EnvConfig) LogFormat() string   { return strings.ToLower(c.s.LogFormat) }
func (c *EnvConfig) APIKey() string      { return c.apiKey }
func (c *EnvConfig) FFmpegPath() string  { return c.s.FFmpegPath }
func (c *EnvConfig) FFprobePath() string { return c.s.FFprobePath }

// LedgerPath returns the sqlite ledger location, or "" when the ledger is
// disabled.
func (c *EnvConfig) LedgerPath() string {
	switch {
	case strings.EqualFold(c.s.Ledger, LedgerDisabled):
		return ""
	case c.s.Ledger != "":
		return c.s.Ledger
	default:
		return filepath.Join(c.s.OutputDir, ledgerDir, ledgerFilename)
	}
}

// DetectPolicy returns the poll settings from flags with the default retry
// budget.
func (c *EnvConfig) DetectPolicy() detect.Policy {
	p := detect.DefaultPolicy()
	p.PollInterval = c.s.PollInterval
	p.PollTimeout = c.s.PollTimeout
	return p
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
