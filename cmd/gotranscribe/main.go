package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nomis52/gotranscribe/buildinfo"
	"github.com/nomis52/gotranscribe/config"
	"github.com/nomis52/gotranscribe/cron"
	"github.com/nomis52/gotranscribe/logging"
	"github.com/nomis52/gotranscribe/metrics"
	"github.com/nomis52/gotranscribe/pipeline"
	"github.com/nomis52/gotranscribe/transcribe"
)

const flushTimeout = 30 * time.Second

type Args struct {
	ConfigPath  string
	ShowVersion bool
	Validate    bool
	Watch       bool
	// Video is transcribed on its own. Without it every new video in the
	// configured directory is processed.
	Video string
}

func main() {
	args, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err == nil {
		err = run(args, os.Stdout)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args Args, stdout io.Writer) error {
	if args.ShowVersion {
		fmt.Fprintf(stdout, "gotranscribe %s\n", buildinfo.Get())
		return nil
	}

	if args.ConfigPath == "" {
		return fmt.Errorf("config flag (-c or --config) is required")
	}
	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if args.Watch && cfg.Schedule.Cron == "" {
		return fmt.Errorf("watch mode requires schedule.cron")
	}
	if args.Validate {
		fmt.Fprintf(stdout, "Configuration validation successful: %s\n", args.ConfigPath)
		return nil
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	props := buildinfo.Get()
	logger.Info("gotranscribe started",
		"version", props.Version,
		"git_commit", props.GitCommit,
		"config_path", args.ConfigPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if args.Watch {
		return watch(ctx, cfg, logger)
	}
	return once(ctx, cfg, args.Video, logger)
}

// once transcribes a single video, or every pending one, and pushes metrics
// if a remote write endpoint is configured.
func once(ctx context.Context, cfg config.Config, video string, logger *slog.Logger) error {
	var registry metrics.Registry
	if cfg.Monitoring.Push.URL != "" {
		pushCfg := cfg.Monitoring.Push
		if pushCfg.Instance == "" {
			hostname, err := os.Hostname()
			if err != nil {
				return fmt.Errorf("failed to get hostname: %w", err)
			}
			pushCfg.Instance = hostname
		}
		registry = metrics.NewPushRegistry(pushCfg)
	}

	tr, err := newTranscriber(cfg, registry, logger)
	if err != nil {
		return err
	}

	if video != "" {
		var report transcribe.Report
		report, err = tr.Transcribe(ctx, video)
		if err == nil {
			logger.Info("transcription finished", "report", report)
		}
	} else {
		err = newBatch(cfg, tr, logger).Run(ctx)
	}

	if registry != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if ferr := metrics.Flush(flushCtx, registry); ferr != nil {
			logger.Warn("failed to push metrics", "error", ferr)
		}
	}
	return err
}

// watch runs the batch on the configured schedule until a signal arrives.
func watch(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var scrape *metrics.ScrapeRegistry
	var registry metrics.Registry
	if cfg.Monitoring.ListenAddr != "" {
		var err error
		scrape, err = metrics.NewScrapeRegistry()
		if err != nil {
			return fmt.Errorf("failed to create metrics registry: %w", err)
		}
		registry = scrape
	}

	tr, err := newTranscriber(cfg, registry, logger)
	if err != nil {
		return err
	}

	trigger, err := cron.NewTrigger(cfg.Schedule.Cron, newBatch(cfg, tr, logger), logger, cron.WithRunOnStart())
	if err != nil {
		return err
	}

	var serve func(context.Context) error
	if scrape != nil {
		serve = func(ctx context.Context) error {
			return scrape.Serve(ctx, cfg.Monitoring.ListenAddr, logger)
		}
	}

	logger.Info("watching for new videos", "video_dir", cfg.Audio.VideoDir, "next_run", trigger.NextRun())
	if err := supervise(ctx, trigger, serve); err != nil {
		return err
	}
	logger.Info("gotranscribe stopped")
	return nil
}

// supervise runs trigger and the optional serve function until ctx is
// cancelled or serve fails. Both have stopped when it returns.
func supervise(ctx context.Context, trigger *cron.Trigger, serve func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	if serve != nil {
		go func() {
			serveErr <- serve(ctx)
		}()
	}
	trigger.Start(ctx)

	var err error
	select {
	case <-trigger.Done():
	case err = <-serveErr:
		serve = nil
	}
	cancel()
	<-trigger.Done()
	if serve != nil {
		if serr := <-serveErr; err == nil {
			err = serr
		}
	}
	return err
}

func newTranscriber(cfg config.Config, registry metrics.Registry, logger *slog.Logger) (*transcribe.Transcriber, error) {
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if registry != nil {
		opts = append(opts, pipeline.WithMetrics(registry))
	}
	tr, err := transcribe.NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}
	return tr, nil
}

func newBatch(cfg config.Config, tr *transcribe.Transcriber, logger *slog.Logger) *transcribe.Batch {
	return &transcribe.Batch{
		Transcriber: tr,
		VideoDir:    cfg.Audio.VideoDir,
		Extensions:  cfg.Audio.VideoExtensions,
		Logger:      logger.With("component", "batch"),
	}
}

func parseArgs(argv []string, stderr io.Writer) (Args, error) {
	fs := flag.NewFlagSet("gotranscribe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to config file")
	configPathShort := fs.String("c", "", "Path to config file (shorthand)")
	showVersion := fs.Bool("version", false, "Show version information")
	versionShort := fs.Bool("v", false, "Show version information (shorthand)")
	validate := fs.Bool("validate", false, "Validate configuration and exit")
	watch := fs.Bool("watch", false, "Transcribe new videos on the configured schedule")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: gotranscribe [options] [video]\n")
		fmt.Fprintf(stderr, "\nVideo transcription tool\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  gotranscribe --config config.yaml videos/class_04.mp4\n")
		fmt.Fprintf(stderr, "  gotranscribe --config config.yaml\n")
		fmt.Fprintf(stderr, "  gotranscribe --config config.yaml --watch\n")
		fmt.Fprintf(stderr, "  gotranscribe --config config.yaml --validate\n")
	}

	if err := fs.Parse(argv); err != nil {
		return Args{}, err
	}

	path := *configPath
	if path == "" {
		path = *configPathShort
	}

	args := Args{
		ConfigPath:  path,
		ShowVersion: *showVersion || *versionShort,
		Validate:    *validate,
		Watch:       *watch,
	}
	switch fs.NArg() {
	case 0:
	case 1:
		args.Video = fs.Arg(0)
	default:
		return Args{}, fmt.Errorf("expected at most one video, got %d", fs.NArg())
	}
	if args.Watch && args.Video != "" {
		return Args{}, fmt.Errorf("--watch cannot be combined with a video argument")
	}
	return args, nil
}
