// Package storage moves published files to remote storage and lists what is
// already there.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// Provider is a remote destination for finished files.
type Provider interface {
	Name() string
	// Move transfers every file under localDir whose name does not match
	// the exclude glob, deleting each local copy once transferred.
	Move(ctx context.Context, localDir, exclude string) error
	// List returns the file names present at the destination.
	List(ctx context.Context) ([]string, error)
}

// Settings selects and configures a provider.
type Settings struct {
	Provider string `koanf:"provider"` // "rclone" or "blob"; empty picks by dest
	Dest     string `koanf:"dest"`     // rclone remote path or bucket URL
	Binary   string `koanf:"binary"`   // rclone binary
}

// NewProvider returns nil when no destination is configured.
func NewProvider(ctx context.Context, s Settings) (Provider, error) {
	if s.Dest == "" {
		return nil, nil
	}
	switch s.Provider {
	case "":
		if IsBucketURL(s.Dest) {
			return OpenBlobProvider(ctx, s.Dest)
		}
		return NewRcloneProvider(s.Binary, s.Dest), nil
	case "rclone":
		return NewRcloneProvider(s.Binary, s.Dest), nil
	case "blob":
		return OpenBlobProvider(ctx, s.Dest)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", s.Provider)
	}
}

// IsBucketURL reports whether dest is a gocloud bucket URL rather than an
// rclone remote path.
func IsBucketURL(dest string) bool {
	return strings.Contains(dest, "://")
}

// Close releases provider resources when it holds any.
func Close(p Provider) error {
	if c, ok := p.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
