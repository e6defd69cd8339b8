package syncloop

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mover transfers finished files out of a local directory.
type Mover interface {
	Move(ctx context.Context, localDir, exclude string) error
}

// Loop periodically moves published files to remote storage.
type Loop struct {
	Mover    Mover
	Dir      string
	Exclude  string
	Interval time.Duration
	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

// Run moves files every interval until done is closed, then makes one final
// pass whose error is returned. Errors from periodic passes are logged only.
func (l *Loop) Run(ctx context.Context, done <-chan struct{}) error {
	logger := log.Logger
	if l.Logger != nil {
		logger = *l.Logger
	}
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			logger.Info().Str("dir", l.Dir).Msg("final sync")
			if err := l.Mover.Move(ctx, l.Dir, l.Exclude); err != nil {
				return fmt.Errorf("final sync: %w", err)
			}
			return nil
		case <-ticker.C:
			if err := l.Mover.Move(ctx, l.Dir, l.Exclude); err != nil {
				logger.Warn().Err(err).Msg("sync failed")
			}
		}
	}
}
