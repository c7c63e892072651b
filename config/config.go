// Package config loads the gotranscribe configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/gotranscribe/logging"
	"github.com/nomis52/gotranscribe/metrics"
)

// EnvPrefix prefixes every environment variable that overrides the file.
const EnvPrefix = "GOTRANSCRIBE_"

const (
	// Audio defaults
	defaultFFmpegPath    = "ffmpeg"
	defaultVideoDir      = "videos/"
	defaultAudioDir      = "audios/"
	defaultAudioFormat   = "flac"
	defaultSegmentLength = 15 * time.Minute
	defaultMaxSegments   = 18
	defaultSampleRate    = 44100
	defaultChannels      = 2

	// Storage defaults
	defaultStorageRoot = "storage/"
	defaultBucket      = "gotranscribe"

	// Transcription defaults
	defaultTranscriptionDir = "transcriptions/"
	defaultLanguageCode     = "es-AR"
	defaultSpeakers         = 2
	defaultConcurrency      = 4
	defaultChunkTimeout     = time.Hour

	// Monitoring defaults
	defaultMetricsPrefix = "gotranscribe"
	defaultJobName       = "gotranscribe"
)

var (
	defaultVideoExtensions = []string{".mp4", ".flv"}
	validAudioFormats      = []string{"flac", "wav"}
)

// Config represents the complete application configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio" envPrefix:"AUDIO_"`
	Storage       StorageConfig       `yaml:"storage" envPrefix:"STORAGE_"`
	Transcription TranscriptionConfig `yaml:"transcription" envPrefix:"TRANSCRIPTION_"`
	Schedule      ScheduleConfig      `yaml:"schedule" envPrefix:"SCHEDULE_"`
	Monitoring    MonitoringConfig    `yaml:"monitoring" envPrefix:"MONITORING_"`
	Logging       logging.Config      `yaml:"logging" envPrefix:"LOG_"`
}

// AudioConfig controls extraction and splitting.
type AudioConfig struct {
	// FFmpegPath is the ffmpeg binary, looked up in PATH when not absolute.
	FFmpegPath string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
	// VideoDir is scanned for videos in batch mode.
	VideoDir        string   `yaml:"video_dir" env:"VIDEO_DIR"`
	VideoExtensions []string `yaml:"video_extensions" env:"VIDEO_EXTENSIONS"`
	// AudioDir receives extracted audio and one directory of chunks per video.
	AudioDir string `yaml:"audio_dir" env:"AUDIO_DIR"`
	Format   string `yaml:"format" env:"FORMAT"`

	SegmentLength time.Duration `yaml:"segment_length" env:"SEGMENT_LENGTH"`
	// MaxSegments caps the chunks sent for recognition.
	MaxSegments int `yaml:"max_segments" env:"MAX_SEGMENTS"`
	SampleRate  int `yaml:"sample_rate" env:"SAMPLE_RATE"`
	Channels    int `yaml:"channels" env:"CHANNELS"`
}

// StorageConfig configures where chunks are uploaded before recognition.
type StorageConfig struct {
	Root   string `yaml:"root" env:"ROOT"`
	Bucket string `yaml:"bucket" env:"BUCKET"`
}

// TranscriptionConfig configures the speech recognizer.
type TranscriptionConfig struct {
	// Command is the recognizer command line. Placeholders such as {uri} and
	// {language} are substituted per chunk.
	Command      []string      `yaml:"command" env:"COMMAND" envSeparator:" "`
	OutputDir    string        `yaml:"output_dir" env:"OUTPUT_DIR"`
	LanguageCode string        `yaml:"language_code" env:"LANGUAGE_CODE"`
	MinSpeakers  int           `yaml:"min_speakers" env:"MIN_SPEAKERS"`
	MaxSpeakers  int           `yaml:"max_speakers" env:"MAX_SPEAKERS"`
	Concurrency  int           `yaml:"concurrency" env:"CONCURRENCY"`
	ChunkTimeout time.Duration `yaml:"chunk_timeout" env:"CHUNK_TIMEOUT"`
}

// ScheduleConfig configures watch mode.
type ScheduleConfig struct {
	// Cron is a five field cron expression, e.g. "*/30 * * * *".
	Cron string `yaml:"cron" env:"CRON"`
}

// MonitoringConfig holds metrics settings
type MonitoringConfig struct {
	// ListenAddr serves /metrics in watch mode when set.
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
	// Push sends metrics to a remote write endpoint after one-shot runs when
	// its URL is set.
	Push metrics.PushConfig `yaml:"push" envPrefix:"PUSH_"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if len(c.Transcription.Command) == 0 {
		return fmt.Errorf("transcription command is required")
	}
	if c.Audio.SegmentLength <= 0 {
		return fmt.Errorf("segment length must be positive")
	}
	if c.Audio.MaxSegments < 0 {
		return fmt.Errorf("max segments must not be negative")
	}
	if !slices.Contains(validAudioFormats, c.Audio.Format) {
		return fmt.Errorf("audio format must be one of: %s", strings.Join(validAudioFormats, ", "))
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 {
		return fmt.Errorf("sample rate and channels must be positive")
	}
	for _, ext := range c.Audio.VideoExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("video extension %q must start with a dot", ext)
		}
	}
	if c.Transcription.MinSpeakers > c.Transcription.MaxSpeakers {
		return fmt.Errorf("min speakers (%d) exceeds max speakers (%d)", c.Transcription.MinSpeakers, c.Transcription.MaxSpeakers)
	}
	if c.Transcription.Concurrency <= 0 {
		return fmt.Errorf("transcription concurrency must be positive")
	}
	if c.Storage.Bucket == "" || strings.ContainsAny(c.Storage.Bucket, `/\`) {
		return fmt.Errorf("storage bucket %q is invalid", c.Storage.Bucket)
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.Audio.FFmpegPath == "" {
		c.Audio.FFmpegPath = defaultFFmpegPath
	}
	if c.Audio.VideoDir == "" {
		c.Audio.VideoDir = defaultVideoDir
	}
	if len(c.Audio.VideoExtensions) == 0 {
		c.Audio.VideoExtensions = slices.Clone(defaultVideoExtensions)
	}
	if c.Audio.AudioDir == "" {
		c.Audio.AudioDir = defaultAudioDir
	}
	if c.Audio.Format == "" {
		c.Audio.Format = defaultAudioFormat
	}
	if c.Audio.SegmentLength == 0 {
		c.Audio.SegmentLength = defaultSegmentLength
	}
	if c.Audio.MaxSegments == 0 {
		c.Audio.MaxSegments = defaultMaxSegments
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = defaultChannels
	}

	if c.Storage.Root == "" {
		c.Storage.Root = defaultStorageRoot
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultBucket
	}

	if c.Transcription.OutputDir == "" {
		c.Transcription.OutputDir = defaultTranscriptionDir
	}
	if c.Transcription.LanguageCode == "" {
		c.Transcription.LanguageCode = defaultLanguageCode
	}
	if c.Transcription.MinSpeakers == 0 {
		c.Transcription.MinSpeakers = defaultSpeakers
	}
	if c.Transcription.MaxSpeakers == 0 {
		c.Transcription.MaxSpeakers = defaultSpeakers
	}
	if c.Transcription.Concurrency == 0 {
		c.Transcription.Concurrency = defaultConcurrency
	}
	if c.Transcription.ChunkTimeout == 0 {
		c.Transcription.ChunkTimeout = defaultChunkTimeout
	}

	if c.Monitoring.Push.Prefix == "" {
		c.Monitoring.Push.Prefix = defaultMetricsPrefix
	}
	if c.Monitoring.Push.Job == "" {
		c.Monitoring.Push.Job = defaultJobName
	}
	// Logging defaults are applied by logging.New.
}

// LoadConfig reads the YAML config file at path, applies GOTRANSCRIBE_*
// environment overrides and defaults, and validates the result.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any GOTRANSCRIBE_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}
