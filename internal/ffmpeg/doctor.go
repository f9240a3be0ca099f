package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// Capabilities describes the installed ffmpeg toolchain.
type Capabilities struct {
	FFmpegVersion  string
	FFprobeVersion string
	HasDrawtext    bool
	ProbedAt       time.Time
}

// Ready returns an error naming the first missing capability.
func (c *Capabilities) Ready() error {
	if !c.HasDrawtext {
		return fmt.Errorf("ffmpeg %s was built without the drawtext filter (needs libfreetype)", c.FFmpegVersion)
	}
	return nil
}

// Doctor probes both binaries once so a broken toolchain is reported before
// any video is processed.
func (t *Transcoder) Doctor(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ProbeTimeout)
	defer cancel()

	caps := &Capabilities{ProbedAt: time.Now()}

	var out bytes.Buffer
	if _, err := t.run(ctx, "ffmpeg", t.ffmpeg, []string{"-hide_banner", "-version"}, &out); err != nil {
		return nil, err
	}
	caps.FFmpegVersion = parseVersion(out.String())

	out.Reset()
	if _, err := t.run(ctx, "ffprobe", t.ffprobe, []string{"-hide_banner", "-version"}, &out); err != nil {
		return nil, err
	}
	caps.FFprobeVersion = parseVersion(out.String())

	out.Reset()
	if _, err := t.run(ctx, "ffmpeg", t.ffmpeg, []string{"-hide_banner", "-filters"}, &out); err != nil {
		return nil, err
	}
	caps.HasDrawtext = hasFilter(out.String(), "drawtext")

	t.cfg.Logger.Info("ffmpeg probe complete",
		"ffmpeg", caps.FFmpegVersion,
		"ffprobe", caps.FFprobeVersion,
		"drawtext", caps.HasDrawtext,
	)
	return caps, nil
}

// parseVersion extracts "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}

// hasFilter scans `ffmpeg -filters` output, whose rows look like
// " T.C drawtext          V->V       Draw text on top of video frames".
func hasFilter(out, name string) bool {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}
