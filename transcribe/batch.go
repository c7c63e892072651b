package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Batch transcribes every video in a directory that has no transcript yet.
// It implements cron.Job so watch mode can run it on a schedule.
type Batch struct {
	Transcriber *Transcriber
	VideoDir    string
	// Extensions are matched case-insensitively, including the dot.
	Extensions []string
	Logger     *slog.Logger
}

// Pending lists the videos in VideoDir without a transcript, sorted by name.
func (b *Batch) Pending() ([]string, error) {
	entries, err := os.ReadDir(b.VideoDir)
	if err != nil {
		return nil, fmt.Errorf("reading video directory: %w", err)
	}

	var pending []string
	for _, e := range entries {
		if e.IsDir() || !b.isVideo(e.Name()) {
			continue
		}
		video := filepath.Join(b.VideoDir, e.Name())
		if _, err := os.Stat(b.Transcriber.TranscriptPath(video)); err == nil {
			continue
		}
		pending = append(pending, video)
	}
	slices.Sort(pending)
	return pending, nil
}

func (b *Batch) isVideo(name string) bool {
	ext := filepath.Ext(name)
	return slices.ContainsFunc(b.Extensions, func(want string) bool {
		return strings.EqualFold(ext, want)
	})
}

// Run transcribes each pending video in turn. A failed video does not stop the
// batch; all failures are returned together. Cancelling ctx stops before the
// next video.
func (b *Batch) Run(ctx context.Context) error {
	videos, err := b.Pending()
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		b.Logger.Info("no new videos", "video_dir", b.VideoDir)
		return nil
	}
	b.Logger.Info("transcribing videos", "count", len(videos))

	var errs []error
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := b.Transcriber.Transcribe(ctx, video)
		if err != nil {
			b.Logger.Error("transcription failed", "video", video, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", video, err))
			continue
		}
		b.Logger.Info("transcription finished", "report", report)
	}
	return errors.Join(errs...)
}
