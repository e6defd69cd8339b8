package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobProvider moves files into a gocloud bucket (s3://, gs://, file://, mem://).
type BlobProvider struct {
	bucket *blob.Bucket
	url    string
}

// OpenBlobProvider opens the bucket at url. A prefix can be selected with the
// standard prefix query parameter.
func OpenBlobProvider(ctx context.Context, url string) (*BlobProvider, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	return &BlobProvider{bucket: bucket, url: url}, nil
}

// NewBlobProvider wraps an already open bucket.
func NewBlobProvider(bucket *blob.Bucket) *BlobProvider {
	return &BlobProvider{bucket: bucket}
}

func (p *BlobProvider) Name() string { return "blob" }

func (p *BlobProvider) Close() error {
	return p.bucket.Close()
}

func (p *BlobProvider) Move(ctx context.Context, localDir, exclude string) error {
	start := time.Now()
	var moved int
	err := filepath.WalkDir(localDir, func(fpath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if exclude != "" {
			skip, err := filepath.Match(exclude, d.Name())
			if err != nil {
				return fmt.Errorf("exclude pattern %q: %w", exclude, err)
			}
			if skip {
				return nil
			}
		}
		rel, err := filepath.Rel(localDir, fpath)
		if err != nil {
			return err
		}
		if err := p.upload(ctx, fpath, filepath.ToSlash(rel)); err != nil {
			return err
		}
		if err := os.Remove(fpath); err != nil {
			return fmt.Errorf("remove %s: %w", rel, err)
		}
		moved++
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("bucket", p.url).Dur("duration", time.Since(start)).Msg("bucket move failed")
		return err
	}
	log.Debug().Int("files", moved).Dur("duration", time.Since(start)).Msg("bucket move completed")
	return nil
}

func (p *BlobProvider) upload(ctx context.Context, local, key string) (err error) {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	defer func() { _ = f.Close() }()

	w, err := p.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("open writer %s: %w", key, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish upload %s: %w", key, err)
	}
	return nil
}

func (p *BlobProvider) List(ctx context.Context) ([]string, error) {
	var names []string
	it := p.bucket.List(nil)
	for {
		obj, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list bucket: %w", err)
		}
		if obj.IsDir {
			continue
		}
		names = append(names, path.Base(obj.Key))
	}
	return names, nil
}
