package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/heimdex/brushdetect/internal/highlight"
)

const (
	ColorNormal    = "white"
	ColorHighlight = "red"
)

// drawtextBase is the frame label shared by the labeled and visualization
// renders. %{n} expands to the zero-based output frame number.
const drawtextBase = "drawtext=text='Frame %{n}'" +
	":start_number=0" +
	":x=W-tw-20:y=20" +
	":fontsize=48" +
	":box=1:boxcolor=black@0.6:boxborderw=8"

var preamble = []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}

func ffmpegArgs(src, filter string, extra []string, dst string) []string {
	args := make([]string, 0, len(preamble)+len(extra)+5)
	args = append(args, preamble...)
	args = append(args, "-i", src, "-vf", filter)
	args = append(args, extra...)
	return append(args, dst)
}

// NormalizeArgs stretches presentation timestamps by srcRate and re-encodes
// at 1 fps, so every source frame survives as one output frame.
func NormalizeArgs(src, dst string, srcRate float64) []string {
	filter := "setpts=" + formatRate(srcRate) + "*PTS"
	return ffmpegArgs(src, filter, []string{"-r", "1"}, dst)
}

// LabelArgs burns a white "Frame N" label into every frame.
func LabelArgs(src, dst string) []string {
	return ffmpegArgs(src, drawtext(ColorNormal, ""), nil, dst)
}

// VisualizeArgs speeds the 1 fps asset up to displayRate and labels frames
// white or red depending on the highlight predicate.
func VisualizeArgs(src, dst string, hl highlight.Predicate, displayRate int) []string {
	rate := strconv.Itoa(displayRate)
	filter := "setpts=PTS/" + rate + "," + VisualizeFilter(hl)
	return ffmpegArgs(src, filter, []string{"-r", rate}, dst)
}

// VisualizeFilter returns the drawtext chain for hl. A constant-false
// predicate yields the single white pass.
func VisualizeFilter(hl highlight.Predicate) string {
	expr := EnableExpr(hl)
	if expr == "" {
		return drawtext(ColorNormal, "")
	}
	return drawtext(ColorNormal, "not("+expr+")") + "," + drawtext(ColorHighlight, expr)
}

// EnableExpr renders hl as an ffmpeg expression that is non-zero on
// highlighted frames. Commas are escaped for the filtergraph parser.
func EnableExpr(hl highlight.Predicate) string {
	ranges := hl.Ranges()
	if len(ranges) == 0 {
		return ""
	}
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = fmt.Sprintf(`between(n\,%d\,%d)`, r.Start(), r.End())
	}
	return strings.Join(parts, "+")
}

func drawtext(color, enable string) string {
	s := drawtextBase + ":fontcolor=" + color
	if enable != "" {
		s += ":enable=" + enable
	}
	return s
}

// ProbeRateArgs asks ffprobe for the first video stream's r_frame_rate.
func ProbeRateArgs(src string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	}
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
