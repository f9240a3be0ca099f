// Package export renders detected ranges as a CMX3600 edit decision list.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/brushdetect/internal/detect"
)

const maxClipNameLen = 64

// Clip is one EDL event in source time.
type Clip struct {
	ClipName  string
	MediaPath string
	StartMs   int
	EndMs     int
}

// ClipsFromResult converts the detected ranges of res into clips on the
// source video. Frame n of the normalized asset is source frame n, so the
// range [s, e] covers s/rate up to (e+1)/rate seconds.
func ClipsFromResult(res detect.Result, mediaPath string, frameRate float64) []Clip {
	if frameRate <= 0 {
		return nil
	}
	base := SanitizeName(strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath)), maxClipNameLen)

	var clips []Clip
	for _, side := range []detect.Side{detect.SideLeft, detect.SideRight} {
		r := res.Side(side)
		if r == nil {
			continue
		}
		clips = append(clips, Clip{
			ClipName:  string(side) + " " + base,
			MediaPath: mediaPath,
			StartMs:   frameToMs(r.Start(), frameRate),
			EndMs:     frameToMs(r.End()+1, frameRate),
		})
	}
	return clips
}

func frameToMs(frame int, frameRate float64) int {
	return int(math.Round(float64(frame) * 1000.0 / frameRate))
}

func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffsetMs := 0
	for i, clip := range clips {
		srcIn := msToTimecode(clip.StartMs, fps)
		srcOut := msToTimecode(clip.EndMs, fps)
		recIn := msToTimecode(recordOffsetMs, fps)
		durationMs := clip.EndMs - clip.StartMs
		recOut := msToTimecode(recordOffsetMs+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)

		recordOffsetMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL writes the EDL for res next to the other per-video outputs.
func WriteEDL(path string, res detect.Result, mediaPath string, frameRate float64) error {
	title := SanitizeName(strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath)), maxClipNameLen)
	edl := GenerateEDL(ClipsFromResult(res, mediaPath, frameRate), title, frameRate)
	if err := os.WriteFile(path, []byte(edl), 0644); err != nil {
		return fmt.Errorf("write edl: %w", err)
	}
	return nil
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
