package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/viperadnan-git/playdl/internal/config"
	"github.com/viperadnan-git/playdl/internal/core/classify"
	"github.com/viperadnan-git/playdl/internal/core/consolidate"
	"github.com/viperadnan-git/playdl/internal/core/extractor"
	"github.com/viperadnan-git/playdl/internal/core/item"
	"github.com/viperadnan-git/playdl/internal/core/process"
	"github.com/viperadnan-git/playdl/internal/core/storage"
	"github.com/viperadnan-git/playdl/internal/downloader"
)

const (
	doneStdin  = "stdin"
	doneRemote = "remote"
)

func downloadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Directory for finished files"},
		&cli.StringFlag{Name: "meta", Aliases: []string{"m"}, Usage: "Working directory for partial downloads and skip markers"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: "Number of parallel downloads"},
		&cli.StringFlag{Name: "min-duration", Usage: "Drop items shorter than this (e.g. 10m)"},
		&cli.StringFlag{Name: "min-free", Usage: "Minimum free disk space before each download (e.g. 5GB)"},
		&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Log actions without downloading or touching files"},
		&cli.BoolFlag{Name: "audio", Aliases: []string{"x"}, Usage: "Keep only an mp3 audio track"},
		&cli.StringSliceFlag{Name: "extractor-opt", Usage: "Extra option passed to the extractor (repeatable)"},
		&cli.StringFlag{Name: "cache", Usage: "Directory of earlier downloads to reuse"},
		&cli.BoolFlag{Name: "cache-move", Usage: "Move cached files instead of copying them"},
		&cli.StringFlag{Name: "sync-dest", Usage: "Remote destination (rclone remote path or bucket URL)"},
		&cli.StringFlag{Name: "done", Usage: "Source of already delivered file names (stdin, remote)"},
		&cli.BoolFlag{Name: "retry-skipped", Usage: "Retry skipped items regardless of marker age"},
		&cli.BoolFlag{Name: "rename-existing", Usage: "Rename delivered files whose title changed"},
		&cli.StringFlag{Name: "proxy", Usage: "Proxy URL for the extractor"},
		&cli.BoolFlag{Name: "sorted", Usage: "Playlist JSON is already in download order"},
		&cli.BoolFlag{Name: "allow-empty", Usage: "Do not fail on empty playlists"},
	}
}

// loadConfig loads the config file and environment, then applies the flags
// that were set explicitly.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if v := cmd.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := cmd.String("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	setupLogging(cfg.Logging)

	if v := cmd.String("out"); v != "" {
		cfg.Download.OutDir = v
	}
	if v := cmd.String("meta"); v != "" {
		cfg.Download.MetaDir = v
	}
	if cmd.IsSet("workers") {
		cfg.Download.Workers = int(cmd.Int("workers"))
	}
	if v := cmd.String("min-duration"); v != "" {
		cfg.Download.MinDuration = v
	}
	if v := cmd.String("min-free"); v != "" {
		cfg.Disk.MinFree = v
	}
	if cmd.Bool("dry-run") {
		cfg.Download.DryRun = true
	}
	if cmd.Bool("audio") {
		cfg.Extractor.Audio = true
	}
	cfg.Extractor.Opts = append(cfg.Extractor.Opts, cmd.StringSlice("extractor-opt")...)
	if v := cmd.String("cache"); v != "" {
		cfg.Cache.Dir = v
	}
	if cmd.Bool("cache-move") {
		cfg.Cache.Move = true
	}
	if v := cmd.String("sync-dest"); v != "" {
		cfg.Sync.Dest = v
	}
	if cmd.Bool("retry-skipped") {
		cfg.Download.RetrySkipped = true
	}
	if cmd.Bool("rename-existing") {
		cfg.Download.RenameExisting = true
	}
	if v := cmd.String("proxy"); v != "" {
		cfg.Download.Proxy = v
	}
	if cmd.Bool("sorted") {
		cfg.Download.Sorted = true
	}
	if cmd.Bool("allow-empty") {
		cfg.Download.AllowEmpty = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch v := cmd.String("done"); v {
	case "", doneStdin, doneRemote:
	default:
		return nil, fmt.Errorf("--done must be %q or %q, got %q", doneStdin, doneRemote, v)
	}
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Level).Msg("log level configured")
}

func downloaderOptions(cfg *config.Config, done []string) (downloader.Options, error) {
	minFree, err := config.ParseSize(cfg.Disk.MinFree)
	if err != nil {
		return downloader.Options{}, fmt.Errorf("disk.min_free: %w", err)
	}
	opts := append([]string(nil), cfg.Extractor.Opts...)
	if cfg.Extractor.Audio {
		opts = append(opts, extractor.AudioOptions...)
	}
	return downloader.Options{
		OutDir:           cfg.Download.OutDir,
		MetaDir:          cfg.Download.MetaDir,
		CacheDir:         cfg.Cache.Dir,
		CacheMove:        cfg.Cache.Move,
		Done:             done,
		Workers:          cfg.Download.Workers,
		DryRun:           cfg.Download.DryRun,
		MinDuration:      config.MustDuration(cfg.Download.MinDuration),
		AllowEmpty:       cfg.Download.AllowEmpty,
		ExtractorOptions: opts,
		Proxy:            cfg.Download.Proxy,
		RetrySkipped:     cfg.Download.RetrySkipped,
		SkipRetryDelay:   config.MustDuration(cfg.Download.SkipRetryDelay),
		SkipRetryJitter:  config.MustDuration(cfg.Download.SkipRetryJitter),
		RenameExisting:   cfg.Download.RenameExisting,
		RetryAttempts:    cfg.Download.RetryAttempts,
		RetryWait:        config.MustDuration(cfg.Download.RetryWait),
		MinFree:          minFree,
		DiskMaxWait:      config.MustDuration(cfg.Disk.MaxWait),
		DiskPollInterval: config.MustDuration(cfg.Disk.PollInterval),
		SyncInterval:     config.MustDuration(cfg.Sync.Interval),
	}, nil
}

// feedFunc enqueues the items of one run.
type feedFunc func(ctx context.Context, d *downloader.Downloader, ext *extractor.YtDlp) error

// runDownload wires one Downloader from cfg, feeds it and waits for it.
func runDownload(ctx context.Context, cfg *config.Config, doneSource string, feed feedFunc) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.With().Str("run", uuid.NewString()).Logger()

	ext := extractor.New(cfg.Extractor.Binary)
	if !cfg.Download.DryRun {
		if err := ext.Check(); err != nil {
			return err
		}
	}
	if err := updateExtractor(ctx, cfg.Extractor.UpdateCmd); err != nil {
		return err
	}

	classifier, err := classify.New(cfg.Classify.Unavailable, cfg.Classify.Transient)
	if err != nil {
		return err
	}

	provider, err := storage.NewProvider(ctx, cfg.Sync.Storage())
	if err != nil {
		return fmt.Errorf("open sync destination: %w", err)
	}
	if provider != nil {
		defer storage.Close(provider)
		if c, ok := provider.(interface{ Check(context.Context) error }); ok {
			if err := c.Check(ctx); err != nil {
				return err
			}
		}
	}

	done, err := doneList(ctx, doneSource, provider)
	if err != nil {
		return err
	}

	opts, err := downloaderOptions(cfg, done)
	if err != nil {
		return err
	}
	deps := downloader.Deps{
		Extractor:    ext,
		Consolidator: consolidate.New(consolidate.NewFFmpeg(cfg.Extractor.FFmpeg)),
		Classifier:   classifier,
		Logger:       &logger,
	}
	if provider != nil && !cfg.Download.DryRun {
		deps.Mover = provider
		logger.Info().Str("provider", provider.Name()).Str("dest", cfg.Sync.Dest).Msg("syncing to remote")
	}

	d, err := downloader.New(ctx, opts, deps)
	if err != nil {
		return err
	}
	feedErr := feed(ctx, d, ext)
	_, err = d.Finish()
	return errors.Join(feedErr, err)
}

func updateExtractor(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	log.Debug().Strs("cmd", argv).Msg("updating extractor")
	if _, err := process.NewExe(argv[0]).Run(ctx, argv[1:]...); err != nil {
		return fmt.Errorf("update extractor: %w", err)
	}
	return nil
}

func doneList(ctx context.Context, source string, provider storage.Provider) ([]string, error) {
	switch source {
	case doneStdin:
		return readLines(os.Stdin)
	case doneRemote:
		if provider == nil {
			return nil, errors.New("--done remote needs a sync destination")
		}
		names, err := provider.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list remote: %w", err)
		}
		return names, nil
	}
	return nil, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read done list: %w", err)
	}
	return lines, nil
}

// withTitles lets placeholder titles be replaced by the extractor's.
func withTitles(items []*item.Item, ext *extractor.YtDlp) []*item.Item {
	for _, it := range items {
		it.WithTitleFetcher(ext.Title)
	}
	return items
}
