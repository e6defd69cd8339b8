package downloader

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/viperadnan-git/playdl/internal/core/classify"
	"github.com/viperadnan-git/playdl/internal/core/extractor"
	"github.com/viperadnan-git/playdl/internal/core/item"
	"github.com/viperadnan-git/playdl/internal/core/matcher"
	"github.com/viperadnan-git/playdl/internal/core/process"
)

// job carries the per-item state through the pipeline.
type job struct {
	it    *item.Item
	m     *matcher.Matcher
	title string
	name  string
	log   zerolog.Logger
}

// process runs one item through the pipeline. Only run level failures are
// returned; everything item specific is logged and absorbed.
func (d *Downloader) process(ctx context.Context, it *item.Item) error {
	if d.stop.Stopped() {
		return nil
	}
	if !d.claims.Claim(it.ID) {
		d.log.Debug().Str("item", it.ID).Int("idx", it.Index).Msg("already claimed")
		return nil
	}

	j := &job{
		it:  it,
		m:   matcher.New(it.ID),
		log: d.log.With().Str("item", it.ID).Int("idx", it.Index).Logger(),
	}
	j.title = it.Title(ctx)
	j.name = matcher.Name(it.Index, j.title, it.Duration, it.ID)

	marker, err := d.cleanLeftovers(j)
	if err != nil {
		return err
	}

	if err := d.gate.Wait(ctx); err != nil {
		return err
	}

	delivered, err := j.m.Glob(d.opts.OutDir)
	if err != nil {
		return err
	}
	if len(delivered) > 0 {
		return d.renameDelivered(j, delivered)
	}
	if done := j.m.Filter(d.opts.Done); len(done) > 0 {
		j.log.Debug().Str("file", done[0]).Msg("in done list")
		return nil
	}

	if d.opts.CacheDir != "" {
		cached, err := j.m.Glob(d.opts.CacheDir)
		if err != nil {
			return err
		}
		if cached = withoutSkip(cached); len(cached) > 0 {
			return d.restore(ctx, j, cached)
		}
	}

	unrecoverable := classify.UnrecoverableTitle(j.title)
	if marker != "" {
		proceed, err := d.checkMarker(j, marker, unrecoverable)
		if err != nil || !proceed {
			return err
		}
	} else if unrecoverable {
		j.log.Info().Str("title", j.title).Msg("title marks item as unavailable")
		return d.writeMarker(j, "unavailable title: "+j.title)
	}

	return d.download(ctx, j)
}

// cleanLeftovers removes files of an interrupted earlier attempt and returns
// the skip marker, if any.
func (d *Downloader) cleanLeftovers(j *job) (string, error) {
	files, err := j.m.Glob(d.opts.MetaDir)
	if err != nil {
		return "", err
	}
	var marker string
	for _, f := range files {
		if marker == "" && matcher.IsSkip(f) {
			marker = f
			continue
		}
		j.log.Info().Str("file", filepath.Base(f)).Bool("dry_run", d.opts.DryRun).Msg("removing leftover")
		if d.opts.DryRun {
			continue
		}
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("remove leftover: %w", err)
		}
	}
	return marker, nil
}

func (d *Downloader) renameDelivered(j *job, files []string) error {
	for _, f := range files {
		base := filepath.Base(f)
		renamed := j.m.Rename(base, j.name)
		if !d.opts.RenameExisting || renamed == base {
			j.log.Debug().Str("file", base).Msg("already downloaded")
			continue
		}
		j.log.Info().Str("from", base).Str("to", renamed).Msg("renaming downloaded file")
		if d.opts.DryRun {
			continue
		}
		if err := os.Rename(f, filepath.Join(filepath.Dir(f), renamed)); err != nil {
			return fmt.Errorf("rename downloaded file: %w", err)
		}
	}
	return nil
}

// checkMarker decides whether a skipped item is retried now. A retried
// item's marker is removed first.
func (d *Downloader) checkMarker(j *job, marker string, unrecoverable bool) (bool, error) {
	if unrecoverable {
		j.log.Debug().Str("title", j.title).Msg("still unavailable")
		return false, nil
	}
	fi, err := os.Stat(marker)
	if err != nil {
		return false, fmt.Errorf("stat skip marker: %w", err)
	}
	age := time.Since(fi.ModTime())
	delay := d.opts.SkipRetryDelay + jitter(d.opts.SkipRetryJitter)
	if age < delay && !d.opts.RetrySkipped {
		j.log.Info().Dur("age", age.Round(time.Second)).Msg("skipped")
		return false, nil
	}
	j.log.Info().Dur("age", age.Round(time.Second)).Msg("retrying skipped item")
	if d.opts.DryRun {
		return true, nil
	}
	if err := os.Remove(marker); err != nil {
		return false, fmt.Errorf("remove skip marker: %w", err)
	}
	return true, nil
}

func (d *Downloader) writeMarker(j *job, reason string) error {
	if d.opts.DryRun {
		return nil
	}
	path := filepath.Join(d.opts.MetaDir, j.name+matcher.SkipExt)
	if err := os.WriteFile(path, []byte(reason), 0o644); err != nil {
		return fmt.Errorf("write skip marker: %w", err)
	}
	return nil
}

func (d *Downloader) download(ctx context.Context, j *job) error {
	req := extractor.Request{
		URL:     j.it.URL,
		Output:  filepath.Join(d.opts.MetaDir, j.name+extractor.ExtTemplate),
		Options: d.opts.ExtractorOptions,
		Proxy:   d.opts.Proxy,
	}
	if d.opts.DryRun {
		j.log.Info().Str("cmd", d.ext.CommandLine(req)).Msg("would download")
		return nil
	}

	for attempt := 1; ; attempt++ {
		if d.stop.Stopped() {
			return nil
		}
		if attempt > 1 {
			if err := d.gate.Wait(ctx); err != nil {
				return err
			}
		}
		j.log.Info().Str("title", j.title).Int("attempt", attempt).Msg("downloading")
		err := d.ext.Download(ctx, req)
		if err == nil {
			return d.publish(ctx, j)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var exitErr *process.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("run extractor: %w", err)
		}
		out := d.classifier.Classify(exitErr.Status, exitErr.Stderr)
		ev := j.log.With().Str("class", out.Class.String()).Int("status", exitErr.Status).Logger()
		if out.Rule != nil && out.Rule.Service != "" {
			ev = ev.With().Str("service", out.Rule.Service).Logger()
		}

		switch out.Class {
		case classify.Throttled:
			d.stop.Stop("throttled while downloading " + j.it.ID)
			ev.Error().Str("stderr", exitErr.Stderr).Msg("throttled, stopping")
			return nil
		case classify.Unavailable:
			ev.Warn().Str("stderr", exitErr.Stderr).Msg("unavailable, skipping")
			return d.writeMarker(j, exitErr.Stderr)
		case classify.Transient:
			if attempt >= d.opts.RetryAttempts {
				ev.Error().Int("attempts", attempt).Str("stderr", exitErr.Stderr).Msg("giving up")
				return nil
			}
			wait := d.opts.RetryWait + jitter(d.opts.RetryWait)
			ev.Warn().Dur("wait", wait).Str("stderr", exitErr.Stderr).Msg("retrying")
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		case classify.Temporary:
			ev.Warn().Str("stderr", exitErr.Stderr).Msg("download failed")
			return nil
		default:
			return fmt.Errorf("extractor failed: %w", err)
		}
	}
}

// jitter returns a random duration in [0, n).
func jitter(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return rand.N(n)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func withoutSkip(files []string) []string {
	out := files[:0:0]
	for _, f := range files {
		if !matcher.IsSkip(f) {
			out = append(out, f)
		}
	}
	return out
}
