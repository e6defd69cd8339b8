package diskspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// ErrNotEnoughDiskSpace aborts the run when free space stays below the
// threshold.
var ErrNotEnoughDiskSpace = errors.New("not enough disk space")

// FreeFunc reports the bytes available to unprivileged users on the volume
// holding path.
type FreeFunc func(path string) (uint64, error)

// Free samples the volume holding path with statfs.
func Free(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}

// Gate blocks downloads while free space is short.
type Gate struct {
	// MinFree is the threshold in bytes; zero disables the gate.
	MinFree uint64
	Dirs    []string
	// Reclaiming is set when a sync loop moves files off the volume, which
	// makes waiting worthwhile.
	Reclaiming bool
	// MaxWait bounds the time spent waiting without any free space gained.
	MaxWait  time.Duration
	Interval time.Duration
	Free     FreeFunc
	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

// Wait returns nil once every directory has MinFree available. Without a
// reclaiming sync loop, or after MaxWait elapses with no progress, it
// returns ErrNotEnoughDiskSpace.
func (g *Gate) Wait(ctx context.Context) error {
	if g.MinFree == 0 {
		return nil
	}
	free := g.Free
	if free == nil {
		free = Free
	}
	logger := log.Logger
	if g.Logger != nil {
		logger = *g.Logger
	}

	var (
		waited time.Duration
		last   uint64
	)
	for {
		avail, dir, err := g.sample(free)
		if err != nil {
			return err
		}
		if avail >= g.MinFree {
			if waited > 0 {
				logger.Info().Str("free", humanize.Bytes(avail)).Msg("disk space recovered")
			}
			return nil
		}

		if waited > 0 && avail > last {
			waited = 0
		}
		last = avail

		if !g.Reclaiming || waited >= g.MaxWait {
			return fmt.Errorf("%w: %s free in %s, need %s",
				ErrNotEnoughDiskSpace, humanize.Bytes(avail), dir, humanize.Bytes(g.MinFree))
		}

		logger.Warn().
			Str("dir", dir).
			Str("free", humanize.Bytes(avail)).
			Str("min_free", humanize.Bytes(g.MinFree)).
			Dur("waited", waited).
			Msg("low disk space, waiting for sync")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.Interval):
		}
		waited += g.Interval
	}
}

// sample returns the lowest free space across the gated directories.
func (g *Gate) sample(free FreeFunc) (uint64, string, error) {
	var (
		low    uint64
		lowDir string
	)
	for i, dir := range g.Dirs {
		avail, err := free(dir)
		if err != nil {
			return 0, "", err
		}
		if i == 0 || avail < low {
			low, lowDir = avail, dir
		}
	}
	return low, lowDir, nil
}
