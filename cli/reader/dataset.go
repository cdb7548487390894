package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/runnel/store"
)

// StorageOptions locates a stored dataset.
type StorageOptions struct {
	Dataset     string
	Backend     string // "fs" or "s3"
	Path        string // fs: directory, s3: bucket/prefix
	Region      string
	Endpoint    string
	S3PathStyle bool
}

// OpenDataset opens the dataset described by opts for reading.
func OpenDataset(ctx context.Context, opts StorageOptions) (lode.Dataset, error) {
	if opts.Path == "" {
		return nil, errors.New("--storage-path is required to read stored relays")
	}

	switch opts.Backend {
	case "fs", "":
		return store.NewReadDatasetFS(opts.Dataset, opts.Path)
	case "s3":
		bucket, prefix := store.ParseS3Path(opts.Path)
		return store.NewReadDatasetS3(ctx, opts.Dataset, store.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       opts.Region,
			Endpoint:     opts.Endpoint,
			UsePathStyle: opts.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", opts.Backend)
	}
}
