// Package transcribe turns recorded videos into timestamped transcripts.
//
// A Transcriber registers the stages of the job as pipeline tasks:
//
//	extract_audio -> split_audio -> upload_chunks -> transcribe_chunks -> write_transcript
//
// write_transcript also depends on extract_audio for the video name, and a
// final report task collects extract_audio, split_audio and write_transcript.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/nomis52/gotranscribe/config"
	"github.com/nomis52/gotranscribe/pipeline"
)

// Task names.
const (
	TaskExtractAudio     = "extract_audio"
	TaskSplitAudio       = "split_audio"
	TaskUploadChunks     = "upload_chunks"
	TaskTranscribeChunks = "transcribe_chunks"
	TaskWriteTranscript  = "write_transcript"
	TaskReport           = "report"
)

// ArgVideo is the run argument holding the video path.
const ArgVideo = "video"

// AudioProcessor extracts audio from a video and cuts it into chunks.
type AudioProcessor interface {
	Extract(ctx context.Context, video, audioDir string) (string, error)
	Split(ctx context.Context, audio string, segment time.Duration) ([]string, error)
}

// Settings holds the values the stages need from the configuration.
type Settings struct {
	AudioDir      string
	OutputDir     string
	Bucket        string
	SegmentLength time.Duration
	// MaxSegments caps the chunks sent for recognition. Zero means no cap.
	MaxSegments int
	Concurrency int
}

// Deps are the external systems the stages talk to.
type Deps struct {
	Audio      AudioProcessor
	Store      ObjectStore
	Recognizer Recognizer
}

// Audio is the result of extract_audio.
type Audio struct {
	Video string
	Path  string
}

// Chunks is the result of split_audio.
type Chunks struct {
	Paths []string
	// Dropped counts segments beyond MaxSegments.
	Dropped int
}

// Transcript is the result of write_transcript.
type Transcript struct {
	Path     string
	Segments int
}

// Report is the result of a whole run.
type Report struct {
	Video      string
	Audio      string
	Chunks     int
	Dropped    int
	Transcript string
	Segments   int
}

// Transcriber runs the transcription pipeline for one video at a time.
type Transcriber struct {
	settings Settings
	deps     Deps

	pipeline *pipeline.Pipeline
	report   *pipeline.Task
}

// New registers the transcription tasks on a new pipeline built with opts.
func New(settings Settings, deps Deps, opts ...pipeline.Option) (*Transcriber, error) {
	if deps.Audio == nil || deps.Store == nil || deps.Recognizer == nil {
		return nil, fmt.Errorf("audio processor, object store and recognizer are required")
	}
	if settings.SegmentLength <= 0 {
		return nil, fmt.Errorf("segment length must be positive")
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}

	t := &Transcriber{
		settings: settings,
		deps:     deps,
		pipeline: pipeline.New(opts...),
	}

	extract := pipeline.NewTask(TaskExtractAudio, t.extractAudio)
	split := pipeline.NewTask(TaskSplitAudio, t.splitAudio)
	upload := pipeline.NewTask(TaskUploadChunks, t.uploadChunks)
	recognize := pipeline.NewTask(TaskTranscribeChunks, t.transcribeChunks)
	write := pipeline.NewTask(TaskWriteTranscript, t.writeTranscript)
	t.report = pipeline.NewTask(TaskReport, buildReport)

	edges := []struct{ task, dependsOn *pipeline.Task }{
		{extract, nil},
		{split, extract},
		{upload, split},
		{recognize, upload},
		{write, recognize},
		{write, extract},
		{t.report, extract},
		{t.report, split},
		{t.report, write},
	}
	for _, e := range edges {
		if _, err := t.pipeline.Register(e.task, e.dependsOn); err != nil {
			return nil, fmt.Errorf("registering %s: %w", e.task, err)
		}
	}
	return t, nil
}

// NewFromConfig builds a Transcriber backed by ffmpeg, a LocalStore and a
// CommandRecognizer.
func NewFromConfig(cfg config.Config, opts ...pipeline.Option) (*Transcriber, error) {
	runner := ExecRunner{}
	deps := Deps{
		Audio: &FFmpeg{
			Path:       cfg.Audio.FFmpegPath,
			Runner:     runner,
			Format:     cfg.Audio.Format,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		},
		Store: &LocalStore{Root: cfg.Storage.Root},
		Recognizer: &CommandRecognizer{
			Command: cfg.Transcription.Command,
			Runner:  runner,
			Timeout: cfg.Transcription.ChunkTimeout,
			Config: RecognitionConfig{
				LanguageCode: cfg.Transcription.LanguageCode,
				Encoding:     cfg.Audio.Format,
				SampleRate:   cfg.Audio.SampleRate,
				Channels:     cfg.Audio.Channels,
				MinSpeakers:  cfg.Transcription.MinSpeakers,
				MaxSpeakers:  cfg.Transcription.MaxSpeakers,
			},
		},
	}
	settings := Settings{
		AudioDir:      cfg.Audio.AudioDir,
		OutputDir:     cfg.Transcription.OutputDir,
		Bucket:        cfg.Storage.Bucket,
		SegmentLength: cfg.Audio.SegmentLength,
		MaxSegments:   cfg.Audio.MaxSegments,
		Concurrency:   cfg.Transcription.Concurrency,
	}
	return New(settings, deps, opts...)
}

// Pipeline returns the underlying pipeline.
func (t *Transcriber) Pipeline() *pipeline.Pipeline {
	return t.pipeline
}

// Transcribe runs every stage for video and returns the report.
func (t *Transcriber) Transcribe(ctx context.Context, video string) (Report, error) {
	results, err := t.pipeline.Run(ctx, pipeline.Args{ArgVideo: video})
	if err != nil {
		return Report{}, err
	}
	return pipeline.Get[Report](results, t.report)
}

// TranscriptPath is where the transcript of video is written.
func (t *Transcriber) TranscriptPath(video string) string {
	return TranscriptPath(t.settings.OutputDir, video)
}

func (t *Transcriber) extractAudio(ctx context.Context, in pipeline.Input) (any, error) {
	video, err := pipeline.ArgAs[string](in, ArgVideo)
	if err != nil {
		return nil, err
	}
	path, err := t.deps.Audio.Extract(ctx, video, t.settings.AudioDir)
	if err != nil {
		return nil, err
	}
	in.Logger.Info("audio extracted", "video", video, "audio", path)
	return Audio{Video: video, Path: path}, nil
}

func (t *Transcriber) splitAudio(ctx context.Context, in pipeline.Input) (any, error) {
	audio, err := pipeline.ValueAs[Audio](in)
	if err != nil {
		return nil, err
	}
	paths, err := t.deps.Audio.Split(ctx, audio.Path, t.settings.SegmentLength)
	if err != nil {
		return nil, err
	}

	chunks := Chunks{Paths: paths}
	if limit := t.settings.MaxSegments; limit > 0 && len(paths) > limit {
		chunks.Paths = paths[:limit]
		chunks.Dropped = len(paths) - limit
		in.Logger.Warn("audio has more segments than allowed, ignoring the rest",
			"segments", len(paths), "max_segments", limit)
	}
	in.Logger.Info("audio split", "segments", len(chunks.Paths), "segment_length", t.settings.SegmentLength)
	return chunks, nil
}

func (t *Transcriber) uploadChunks(ctx context.Context, in pipeline.Input) (any, error) {
	chunks, err := pipeline.ValueAs[Chunks](in)
	if err != nil {
		return nil, err
	}
	objects := make([]Object, 0, len(chunks.Paths))
	for _, path := range chunks.Paths {
		obj, err := t.deps.Store.Put(ctx, t.settings.Bucket, filepath.Base(path), path)
		if err != nil {
			return nil, err
		}
		in.Logger.Debug("chunk uploaded", "uri", obj.URI, "checksum", obj.Checksum, "bytes", obj.Size)
		objects = append(objects, obj)
	}
	in.Logger.Info("chunks uploaded", "count", len(objects), "bucket", t.settings.Bucket)
	return objects, nil
}

// transcribeChunks recognizes chunks concurrently. Results keep chunk order
// and the first failure cancels the remaining chunks.
func (t *Transcriber) transcribeChunks(ctx context.Context, in pipeline.Input) (any, error) {
	objects, err := pipeline.ValueAs[[]Object](in)
	if err != nil {
		return nil, err
	}

	out := make([]ChunkTranscript, len(objects))
	p := pool.New().
		WithMaxGoroutines(t.settings.Concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i, obj := range objects {
		p.Go(func(ctx context.Context) error {
			start := time.Now()
			segs, err := t.deps.Recognizer.Recognize(ctx, obj)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i+1, err)
			}
			out[i] = ChunkTranscript{Object: obj, Segments: segs}
			in.Logger.Info("chunk transcribed", "chunk", i+1, "segments", len(segs), "duration", time.Since(start))
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Transcriber) writeTranscript(ctx context.Context, in pipeline.Input) (any, error) {
	chunks, err := pipeline.ResultAs[[]ChunkTranscript](in, 0)
	if err != nil {
		return nil, err
	}
	audio, err := pipeline.ResultAs[Audio](in, 1)
	if err != nil {
		return nil, err
	}

	segments := 0
	for _, c := range chunks {
		segments += len(c.Segments)
	}
	path := t.TranscriptPath(audio.Video)
	if err := writeTranscript(path, FormatTranscript(chunks, t.settings.SegmentLength)); err != nil {
		return nil, err
	}
	in.Logger.Info("transcript written", "path", path, "segments", segments)
	return Transcript{Path: path, Segments: segments}, nil
}

func buildReport(ctx context.Context, in pipeline.Input) (any, error) {
	audio, err := pipeline.ResultAs[Audio](in, 0)
	if err != nil {
		return nil, err
	}
	chunks, err := pipeline.ResultAs[Chunks](in, 1)
	if err != nil {
		return nil, err
	}
	transcript, err := pipeline.ResultAs[Transcript](in, 2)
	if err != nil {
		return nil, err
	}
	return Report{
		Video:      audio.Video,
		Audio:      audio.Path,
		Chunks:     len(chunks.Paths),
		Dropped:    chunks.Dropped,
		Transcript: transcript.Path,
		Segments:   transcript.Segments,
	}, nil
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("video", r.Video),
		slog.Int("chunks", r.Chunks),
		slog.Int("dropped", r.Dropped),
		slog.Int("segments", r.Segments),
		slog.String("transcript", r.Transcript),
	)
}
