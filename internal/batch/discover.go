// Package batch discovers input videos and runs them through a bounded
// worker pool, collecting one outcome per video.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/heimdex/brushdetect/internal/pipeline"
)

// ErrOutputClash marks a video whose output directory would be shared with
// another video of the same batch.
var ErrOutputClash = errors.New("output directory clash")

// Supported video file extensions (lowercase, with leading dot).
var videoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
	".m4v": true,
}

// IsVideo reports whether name has a supported extension, case-insensitively.
func IsVideo(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// Discover lists the regular files directly inside inputDir whose extension
// is supported, sorted by name. Subdirectories are not descended into.
func Discover(inputDir string) ([]string, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input dir %s is not a directory", inputDir)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var videos []string
	for _, e := range entries {
		if !IsVideo(e.Name()) {
			continue
		}
		path := filepath.Join(inputDir, e.Name())
		// Stat follows symlinks, so a link to a regular file counts.
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		videos = append(videos, path)
	}
	sort.Strings(videos)
	return videos, nil
}

// StemClashes maps each video whose stem is shared with another video of
// the batch to the base names of the videos it clashes with. Such videos
// would share one output directory.
func StemClashes(videos []string) map[string][]string {
	byStem := make(map[string][]string)
	for _, v := range videos {
		stem := pipeline.Stem(v)
		byStem[stem] = append(byStem[stem], v)
	}

	clashes := make(map[string][]string)
	for _, group := range byStem {
		if len(group) < 2 {
			continue
		}
		for _, v := range group {
			for _, other := range group {
				if other != v {
					clashes[v] = append(clashes[v], filepath.Base(other))
				}
			}
		}
	}
	return clashes
}
