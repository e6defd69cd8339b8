package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// restore places files of an earlier run found in the cache dir.
func (d *Downloader) restore(ctx context.Context, j *job, cached []string) error {
	verb := "copying"
	if d.opts.CacheMove {
		verb = "moving"
	}
	for _, f := range cached {
		dst := filepath.Join(d.opts.MetaDir, j.m.Rename(filepath.Base(f), j.name))
		j.log.Info().Str("file", filepath.Base(f)).Bool("dry_run", d.opts.DryRun).Msg(verb + " from cache")
		if d.opts.DryRun {
			continue
		}
		var err error
		if d.opts.CacheMove {
			err = moveFile(f, dst)
		} else {
			err = copyFile(f, dst)
		}
		if err != nil {
			return fmt.Errorf("restore from cache: %w", err)
		}
	}
	if d.opts.DryRun {
		return nil
	}
	return d.publish(ctx, j)
}

// publish consolidates the item's files in the meta dir and moves the
// result into the output dir.
func (d *Downloader) publish(ctx context.Context, j *job) error {
	files, err := j.m.Glob(d.opts.MetaDir)
	if err != nil {
		return err
	}
	files = withoutSkip(files)
	if len(files) == 0 {
		j.log.Warn().Msg("no files produced")
		return nil
	}
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			return fmt.Errorf("stat output: %w", err)
		}
		if fi.Size() == 0 {
			j.log.Error().Str("file", filepath.Base(f)).Msg("empty output file, leaving item files in place")
			return nil
		}
	}

	final, err := d.consolidator.Consolidate(ctx, files, func(base string) string {
		return j.m.Rename(base, j.name)
	})
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}

	for _, f := range final {
		size, err := d.place(f)
		if err != nil {
			return err
		}
		d.summary.add(size)
		j.log.Info().Str("file", filepath.Base(f)).Str("size", humanize.Bytes(uint64(size))).Msg("downloaded")
	}
	return nil
}

// place moves src into the output dir. The file first lands under a
// temporary name that the sync loop excludes, then is renamed atomically.
func (d *Downloader) place(src string) (int64, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", filepath.Base(src), err)
	}
	dst := filepath.Join(d.opts.OutDir, filepath.Base(src))
	tmp := dst + TmpSuffix
	if err := moveFile(src, tmp); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return 0, fmt.Errorf("publish %s: %w", filepath.Base(dst), err)
	}
	return fi.Size(), nil
}

// moveFile renames src to dst, copying across filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s: %w", filepath.Base(src), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dst), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(dst), err)
	}
	return nil
}
