package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "playdl",
		Version: version,
		Usage:   "Download whole playlists with a pool of extractor workers and keep them in sync with remote storage.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("PLAYDL_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("PLDL_LOGGING_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (pretty, json)",
			},
		},
		Commands: []*cli.Command{
			urlCmd(),
			jsonCmd(),
			playlistsCmd(),
		},
	}
}
