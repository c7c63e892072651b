package transcribe

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// FFmpeg extracts and splits audio with the ffmpeg command line tool.
type FFmpeg struct {
	// Path is the ffmpeg binary.
	Path   string
	Runner CommandRunner

	// Format is the audio container and codec, e.g. "flac".
	Format     string
	SampleRate int
	Channels   int
}

// Extract writes the audio track of video to <audioDir>/<stem>.<format> and
// returns that path.
func (f *FFmpeg) Extract(ctx context.Context, video, audioDir string) (string, error) {
	if _, err := os.Stat(video); err != nil {
		return "", fmt.Errorf("video %s: %w", video, err)
	}
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio directory: %w", err)
	}

	out := filepath.Join(audioDir, stem(video)+"."+f.Format)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", video,
		"-vn",
		"-ac", strconv.Itoa(f.Channels),
		"-ar", strconv.Itoa(f.SampleRate),
		out,
	}
	if _, err := f.Runner.Run(ctx, f.Path, args...); err != nil {
		return "", fmt.Errorf("extracting audio from %s: %w", video, err)
	}
	return out, nil
}

// Split cuts audio into segments of the given length. Segments are written to
// a directory named after the audio file without its extension, as
// <stem>_partNN.<ext> numbered from 01, and returned in order.
func (f *FFmpeg) Split(ctx context.Context, audio string, segment time.Duration) ([]string, error) {
	if segment <= 0 {
		return nil, fmt.Errorf("segment length must be positive, got %v", segment)
	}
	ext := filepath.Ext(audio)
	dir := strings.TrimSuffix(audio, ext)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating segment directory: %w", err)
	}

	// Stale parts from an earlier, longer split would be picked up below.
	old, err := filepath.Glob(filepath.Join(dir, stem(audio)+"_part*"+ext))
	if err != nil {
		return nil, err
	}
	for _, p := range old {
		if err := os.Remove(p); err != nil {
			return nil, fmt.Errorf("removing stale segment: %w", err)
		}
	}

	pattern := filepath.Join(dir, stem(audio)+"_part%02d"+ext)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", audio,
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(segment.Seconds(), 'f', -1, 64),
		"-segment_start_number", "1",
		"-reset_timestamps", "1",
		"-c", "copy",
		pattern,
	}
	if _, err := f.Runner.Run(ctx, f.Path, args...); err != nil {
		return nil, fmt.Errorf("splitting %s: %w", audio, err)
	}

	parts, err := filepath.Glob(filepath.Join(dir, stem(audio)+"_part*"+ext))
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("splitting %s produced no segments", audio)
	}
	// Part numbers grow past two digits for long recordings.
	slices.SortFunc(parts, func(a, b string) int {
		if n := cmp.Compare(len(a), len(b)); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
	return parts, nil
}

// stem returns the file name without directory or extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
