package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/viperadnan-git/playdl/internal/config"
)

func playlistsCmd() *cli.Command {
	return &cli.Command{
		Name:      "playlists",
		Usage:     "Download the playlists of a YAML playlists file, all of them or the named ones",
		ArgsUsage: "FILE [NAME...]",
		Flags:     downloadFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return errors.New("playlists file is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			all, err := config.LoadPlaylists(args[0])
			if err != nil {
				return err
			}
			pls, err := config.Select(all, args[1:])
			if err != nil {
				return err
			}

			for _, pl := range pls {
				pcfg := playlistConfig(cfg, pl)
				log.Info().
					Str("playlist", pl.Name).
					Strs("urls", pl.URLs).
					Str("dest", pcfg.Sync.Dest).
					Msg("downloading playlist")
				if err := runDownload(ctx, pcfg, cmd.String("done"), feedURLs(pcfg, pl.URLs)); err != nil {
					return fmt.Errorf("playlist %s: %w", pl.Name, err)
				}
			}
			return nil
		},
	}
}

// playlistConfig overlays a playlist's settings on a copy of cfg.
func playlistConfig(cfg *config.Config, pl config.Playlist) *config.Config {
	c := *cfg
	c.Extractor.Opts = append(append([]string(nil), cfg.Extractor.Opts...), pl.ExtractorOpts...)
	if pl.Proxy != "" {
		c.Download.Proxy = pl.Proxy
	}
	if pl.SyncDest != "" {
		c.Sync.Dest = pl.SyncDest
	}
	if pl.MinDuration > 0 {
		c.Download.MinDuration = pl.MinDuration.String()
	}
	if pl.Workers > 0 {
		c.Download.Workers = pl.Workers
	}
	if pl.MinFree > 0 {
		c.Disk.MinFree = strconv.FormatUint(pl.MinFree, 10)
	}
	if pl.Sorted {
		c.Download.Sorted = true
	}
	return &c
}
