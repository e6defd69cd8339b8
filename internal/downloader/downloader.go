package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/viperadnan-git/playdl/internal/core/classify"
	"github.com/viperadnan-git/playdl/internal/core/consolidate"
	"github.com/viperadnan-git/playdl/internal/core/diskspace"
	"github.com/viperadnan-git/playdl/internal/core/extractor"
	"github.com/viperadnan-git/playdl/internal/core/item"
	"github.com/viperadnan-git/playdl/internal/core/syncloop"
)

// TmpSuffix marks files being moved into the output dir. Sync excludes them.
const TmpSuffix = ".playdl_tmp"

// SyncExclude is the glob of names the sync loop must not transfer.
const SyncExclude = "*" + TmpSuffix

var (
	ErrEmptyPlaylist   = errors.New("empty playlist")
	ErrMissingDuration = errors.New("item has no duration")
	ErrClosed          = errors.New("downloader closed")
	ErrNestedDir       = errors.New("directory would be synced with the output")
)

const (
	defaultWorkers        = 4
	defaultRetryAttempts  = 3
	defaultRetryWait      = 10 * time.Second
	defaultDiskMaxWait    = 30 * time.Minute
	defaultDiskInterval   = 10 * time.Second
	defaultSyncInterval   = time.Minute
	defaultSkipRetryDelay = 72 * time.Hour
)

// Options configures a Downloader.
type Options struct {
	OutDir  string
	MetaDir string

	// CacheDir holds files of earlier runs that can be reused.
	CacheDir string
	// CacheMove moves instead of copying cached files.
	CacheMove bool

	// Done lists file names already delivered elsewhere.
	Done []string

	Workers int
	// DryRun logs what would be done without touching files or running the
	// extractor. It forces a single worker.
	DryRun bool

	// MinDuration drops shorter items. When set every item must have a
	// duration.
	MinDuration time.Duration
	// AllowEmpty accepts empty batches instead of failing them.
	AllowEmpty bool

	ExtractorOptions []string
	Proxy            string

	// RetrySkipped retries skipped items regardless of marker age.
	RetrySkipped    bool
	SkipRetryDelay  time.Duration
	SkipRetryJitter time.Duration

	// RenameExisting renames delivered files whose name is out of date.
	RenameExisting bool

	// RetryAttempts bounds extractor runs for transient failures. Each
	// retry waits RetryWait plus up to RetryWait of jitter.
	RetryAttempts int
	RetryWait     time.Duration

	MinFree          uint64
	DiskMaxWait      time.Duration
	DiskPollInterval time.Duration

	SyncInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.DryRun {
		o.Workers = 1
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = defaultRetryAttempts
	}
	if o.RetryWait <= 0 {
		o.RetryWait = defaultRetryWait
	}
	if o.DiskMaxWait <= 0 {
		o.DiskMaxWait = defaultDiskMaxWait
	}
	if o.DiskPollInterval <= 0 {
		o.DiskPollInterval = defaultDiskInterval
	}
	if o.SyncInterval <= 0 {
		o.SyncInterval = defaultSyncInterval
	}
	if o.SkipRetryDelay <= 0 {
		o.SkipRetryDelay = defaultSkipRetryDelay
	}
}

// Consolidator reduces an item's files to their final set.
type Consolidator interface {
	Consolidate(ctx context.Context, files []string, basename consolidate.Basename) ([]string, error)
}

// Deps are the external collaborators of a Downloader.
type Deps struct {
	Extractor    extractor.Extractor
	Consolidator Consolidator
	// Classifier defaults to classify.Default.
	Classifier *classify.Classifier
	// Mover enables the background sync loop when set.
	Mover syncloop.Mover
	// Free overrides free space sampling.
	Free diskspace.FreeFunc
	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

type Downloader struct {
	opts         Options
	ext          extractor.Extractor
	consolidator Consolidator
	classifier   *classify.Classifier
	gate         *diskspace.Gate
	log          zerolog.Logger

	claims  *Claims
	stop    *StopFlag
	summary summary

	ctx   context.Context
	group *errgroup.Group
	queue chan *item.Item

	mu     sync.Mutex
	closed bool

	workersDone chan struct{}
	syncErr     chan error

	finishOnce sync.Once
	result     Summary
	resultErr  error
}

// New creates the directories and starts the workers, plus the sync loop
// when a mover is configured. Workers stop when ctx is cancelled.
func New(ctx context.Context, opts Options, deps Deps) (*Downloader, error) {
	opts.applyDefaults()
	if deps.Extractor == nil {
		return nil, errors.New("downloader: extractor is required")
	}
	if deps.Consolidator == nil {
		return nil, errors.New("downloader: consolidator is required")
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.Default()
	}
	logger := log.Logger
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	if opts.OutDir == "" || opts.MetaDir == "" {
		return nil, errors.New("downloader: output and meta dirs are required")
	}
	if deps.Mover != nil {
		// the sync loop moves the whole output tree
		for _, dir := range []string{opts.MetaDir, opts.CacheDir} {
			if dir == "" {
				continue
			}
			nested, err := within(opts.OutDir, dir)
			if err != nil {
				return nil, err
			}
			if nested {
				return nil, fmt.Errorf("%w: %s is inside output dir %s", ErrNestedDir, dir, opts.OutDir)
			}
		}
	}

	for _, dir := range []string{opts.OutDir, opts.MetaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	d := &Downloader{
		opts:         opts,
		ext:          deps.Extractor,
		consolidator: deps.Consolidator,
		classifier:   deps.Classifier,
		gate: &diskspace.Gate{
			MinFree:    opts.MinFree,
			Dirs:       []string{opts.OutDir, opts.MetaDir},
			Reclaiming: deps.Mover != nil,
			MaxWait:    opts.DiskMaxWait,
			Interval:   opts.DiskPollInterval,
			Free:       deps.Free,
			Logger:     &logger,
		},
		log:         logger,
		claims:      NewClaims(),
		stop:        &StopFlag{},
		ctx:         gctx,
		group:       group,
		queue:       make(chan *item.Item, opts.Workers),
		workersDone: make(chan struct{}),
	}

	logger.Debug().
		Str("out", opts.OutDir).
		Str("meta", opts.MetaDir).
		Int("done", len(opts.Done)).
		Int("workers", opts.Workers).
		Strs("extractor_opts", opts.ExtractorOptions).
		Bool("dry_run", opts.DryRun).
		Msg("starting downloader")

	for range opts.Workers {
		group.Go(func() error { return d.work(gctx) })
	}

	if deps.Mover != nil {
		d.syncErr = make(chan error, 1)
		loop := &syncloop.Loop{
			Mover:    deps.Mover,
			Dir:      opts.OutDir,
			Exclude:  SyncExclude,
			Interval: opts.SyncInterval,
			Logger:   &logger,
		}
		go func() { d.syncErr <- loop.Run(ctx, d.workersDone) }()
	}
	return d, nil
}

// Enqueue adds a batch of items in ascending index order. Batch level data
// errors fail the whole batch before anything is queued. It blocks while
// the queue is full.
func (d *Downloader) Enqueue(items []*item.Item) error {
	return d.EnqueueMin(items, d.opts.MinDuration)
}

// EnqueueMin is Enqueue with a batch specific minimum duration, such as the
// one recommended by a playlist resolver. The larger of it and the
// configured minimum applies.
func (d *Downloader) EnqueueMin(items []*item.Item, minDur time.Duration) error {
	if len(items) == 0 {
		if !d.opts.AllowEmpty {
			return ErrEmptyPlaylist
		}
		d.log.Warn().Msg("empty playlist")
		return nil
	}

	var batch []*item.Item
	minDur = max(minDur, d.opts.MinDuration)
	if minDur > 0 {
		for _, it := range items {
			if it.Duration == nil {
				return fmt.Errorf("%w: %s (min duration %s)", ErrMissingDuration, it.ID, minDur)
			}
		}
		batch = slices.DeleteFunc(slices.Clone(items), func(it *item.Item) bool {
			return *it.Duration < minDur
		})
		if dropped := len(items) - len(batch); dropped > 0 {
			d.log.Info().Int("dropped", dropped).Dur("min_duration", minDur).Msg("filtered out short items")
		}
	} else {
		batch = slices.Clone(items)
	}
	slices.SortStableFunc(batch, func(a, b *item.Item) int { return a.Index - b.Index })

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.log.Info().Int("count", len(batch)).Msg("enqueueing playlist items")
	for _, it := range batch {
		select {
		case d.queue <- it:
		case <-d.ctx.Done():
			return fmt.Errorf("enqueue: %w", context.Cause(d.ctx))
		}
	}
	return nil
}

// Finish closes the queue, waits for the workers and the sync loop, and
// returns the summary with the first fatal error. Later calls return the
// same result.
func (d *Downloader) Finish() (Summary, error) {
	d.finishOnce.Do(func() {
		d.result, d.resultErr = d.finish()
	})
	return d.result, d.resultErr
}

func (d *Downloader) finish() (Summary, error) {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	err := d.group.Wait()
	close(d.workersDone)
	if d.syncErr != nil {
		if serr := <-d.syncErr; serr != nil && err == nil {
			err = serr
		}
	}

	s := d.summary.get()
	d.log.Info().
		Int("files", s.Files).
		Str("size", humanize.Bytes(uint64(s.Bytes))).
		Msg("downloaded files")
	if d.stop.Stopped() {
		d.log.Warn().Str("reason", d.stop.Reason()).Msg("run was stopped early")
	}
	return s, err
}

// within reports whether dir is parent or lies below it.
func within(parent, dir string) (bool, error) {
	p, err := filepath.Abs(parent)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", parent, err)
	}
	c, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", dir, err)
	}
	rel, err := filepath.Rel(p, c)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

// Stopped reports whether the run was halted by throttling.
func (d *Downloader) Stopped() bool {
	return d.stop.Stopped()
}

func (d *Downloader) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case it, ok := <-d.queue:
			if !ok {
				return nil
			}
			if err := d.process(ctx, it); err != nil {
				return fmt.Errorf("item %s: %w", it.ID, err)
			}
		}
	}
}
