package storage

import (
	"context"
	"fmt"

	"github.com/qbench/qbench/internal/config"
)

// OpenArchive builds the upload archive described by cfg.
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	var (
		objects ObjectStorage
		err     error
	)
	switch cfg.Type {
	case "local":
		objects, err = NewLocalStorage(cfg.Path)
	case "s3":
		objects, err = NewS3Storage(ctx, cfg.S3.Bucket, S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		err = fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return NewArchive(objects, cfg.Prefix, cfg.Compress), nil
}
