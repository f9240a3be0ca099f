package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/heimdex/brushdetect/internal/api"
	"github.com/heimdex/brushdetect/internal/batch"
	"github.com/heimdex/brushdetect/internal/catalog"
	"github.com/heimdex/brushdetect/internal/cloud"
	"github.com/heimdex/brushdetect/internal/config"
	"github.com/heimdex/brushdetect/internal/db"
	"github.com/heimdex/brushdetect/internal/detect"
	"github.com/heimdex/brushdetect/internal/ffmpeg"
	"github.com/heimdex/brushdetect/internal/logging"
	"github.com/heimdex/brushdetect/internal/pipeline"
	"github.com/heimdex/brushdetect/internal/playback"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	cmd := newCommand(func(ctx context.Context, s config.Settings) error {
		code, err := runBatch(ctx, s, os.Stdout, os.Stderr)
		exitCode = code
		return err
	})
	if err := cmd.Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "brushdetect: %v\n", err)
		return 1
	}
	return exitCode
}

type action func(ctx context.Context, s config.Settings) error

func newCommand(act action) *cli.Command {
	return &cli.Command{
		Name:    "brushdetect",
		Usage:   "Find left and right brush-contact frame ranges in every video of a directory",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input-dir", Aliases: []string{"i"}, Usage: "directory containing source videos", Required: true},
			&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "directory receiving one subdirectory per video", Required: true},
			&cli.StringFlag{Name: "model", Usage: "detection model name", Value: config.DefaultModel},
			&cli.Float64Flag{Name: "temperature", Usage: "sampling temperature", Value: config.DefaultTemperature},
			&cli.BoolFlag{Name: "visualize", Usage: "render a highlight video per input"},
			&cli.IntFlag{Name: "vis-fps", Usage: "playback rate of highlight videos", Value: config.DefaultVisRate},
			&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: "videos processed concurrently", Value: config.DefaultWorkers},
			&cli.IntFlag{Name: "rpm", Usage: "detection requests per minute across workers (0 = unlimited)"},
			&cli.BoolFlag{Name: "edl", Usage: "write a CMX3600 EDL next to each result"},
			&cli.StringFlag{Name: "status-addr", Usage: "serve run status over HTTP on this address", Sources: cli.EnvVars(config.EnvStatusAddr)},
			&cli.StringFlag{Name: "ledger", Usage: "run ledger database path, or \"none\" (default <output-dir>/.brushdetect/ledger.db)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: config.DefaultLogLevel, Sources: cli.EnvVars(config.EnvLogLevel)},
			&cli.StringFlag{Name: "log-format", Usage: "json or text", Value: config.DefaultLogFormat},
			&cli.DurationFlag{Name: "poll-interval", Usage: "delay between remote readiness checks", Value: config.DefaultPollInterval},
			&cli.DurationFlag{Name: "poll-timeout", Usage: "give up waiting for remote readiness after this long", Value: config.DefaultPollTimeout},
			&cli.StringFlag{Name: "ffmpeg", Usage: "ffmpeg binary (default: looked up on PATH)", Sources: cli.EnvVars(config.EnvFFmpeg)},
			&cli.StringFlag{Name: "ffprobe", Usage: "ffprobe binary (default: looked up on PATH)", Sources: cli.EnvVars(config.EnvFFprobe)},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return act(ctx, settingsFrom(cmd))
		},
	}
}

func settingsFrom(cmd *cli.Command) config.Settings {
	return config.Settings{
		InputDir:     cmd.String("input-dir"),
		OutputDir:    cmd.String("output-dir"),
		Model:        cmd.String("model"),
		Temperature:  cmd.Float64("temperature"),
		Visualize:    cmd.Bool("visualize"),
		VisRate:      cmd.Int("vis-fps"),
		Workers:      cmd.Int("workers"),
		RPM:          cmd.Int("rpm"),
		EDL:          cmd.Bool("edl"),
		StatusAddr:   cmd.String("status-addr"),
		Ledger:       cmd.String("ledger"),
		LogLevel:     cmd.String("log-level"),
		LogFormat:    cmd.String("log-format"),
		PollInterval: cmd.Duration("poll-interval"),
		PollTimeout:  cmd.Duration("poll-timeout"),
		FFmpegPath:   cmd.String("ffmpeg"),
		FFprobePath:  cmd.String("ffprobe"),
	}
}

// runBatch wires every component and processes the input directory. The
// returned code is the process exit code when err is nil.
func runBatch(ctx context.Context, s config.Settings, stdout, stderr io.Writer) (int, error) {
	cfg, err := config.New(s)
	if err != nil {
		return 1, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(stderr, cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting brushdetect",
		"version", config.Version,
		"input_dir", logging.SanitizePath(cfg.InputDir()),
		"output_dir", logging.SanitizePath(cfg.OutputDir()),
		"model", cfg.Model(),
		"workers", cfg.Workers(),
	)

	videos, err := batch.Discover(cfg.InputDir())
	if err != nil {
		return 1, err
	}
	if len(videos) == 0 {
		return 1, fmt.Errorf("no videos found in %s", cfg.InputDir())
	}

	ffCfg := ffmpeg.DefaultConfig(logger)
	ffCfg.FFmpegPath = cfg.FFmpegPath()
	ffCfg.FFprobePath = cfg.FFprobePath()
	tc, err := ffmpeg.New(ffCfg)
	if err != nil {
		return 1, err
	}
	caps, err := tc.Doctor(ctx)
	if err != nil {
		return 1, fmt.Errorf("ffmpeg check failed: %w", err)
	}
	if err := caps.Ready(); err != nil {
		return 1, err
	}
	logger.Info("ffmpeg ready", "ffmpeg", caps.FFmpegVersion, "ffprobe", caps.FFprobeVersion)

	if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
		return 1, fmt.Errorf("failed to create output dir: %w", err)
	}

	svc, err := cloud.New(ctx, cloud.Config{
		APIKey: cfg.APIKey(),
		RPM:    cfg.RPM(),
		Logger: logger,
	})
	if err != nil {
		return 1, err
	}
	det := detect.NewClient(svc, detect.Request{
		Model:       cfg.Model(),
		Temperature: cfg.Temperature(),
	}, logging.WithComponent(logger, "detect"), detect.WithPolicy(cfg.DetectPolicy()))

	jobs := pipeline.NewRunner(tc, det, pipeline.Options{
		OutputDir: cfg.OutputDir(),
		Visualize: cfg.Visualize(),
		VisRate:   cfg.VisRate(),
		WriteEDL:  cfg.WriteEDL(),
	}, logger)

	var observers []batch.Observer
	if path := cfg.LedgerPath(); path != "" {
		database, err := db.New(path, logger)
		if err != nil {
			return 1, fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer database.Close()

		repo := catalog.NewRepository(database.Conn())
		observers = append(observers, catalog.NewRecorder(repo, logging.WithComponent(logger, "ledger")))

		if addr := cfg.StatusAddr(); addr != "" {
			srv := api.NewServer(api.ServerConfig{
				Addr:         addr,
				Ledger:       repo,
				Playback:     playback.NewServer(logger),
				Capabilities: caps,
				Logger:       logging.WithComponent(logger, "api"),
				StartTime:    time.Now(),
				Version:      config.Version,
			})
			if err := srv.Start(); err != nil {
				return 1, fmt.Errorf("failed to start status server: %w", err)
			}
			defer shutdown(srv, logger)
		}
	}

	orch := batch.New(jobs, batch.Meta{
		InputDir:  cfg.InputDir(),
		OutputDir: cfg.OutputDir(),
		Model:     cfg.Model(),
	}, logger, batch.WithObserver(observers...))

	sum := orch.Run(ctx, videos, cfg.Workers())
	sum.Print(stdout)

	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		logger.Warn("run interrupted", "succeeded", sum.Succeeded, "total", sum.Total)
	}
	return sum.ExitCode(), nil
}

func shutdown(srv *api.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown status server", "error", err)
	}
}
