package archive

import (
	"context"

	"github.com/arenvale/fieldnet/internal/blob"
)

// BlobDestination overwrites one object in a blob store with each snapshot.
// With the S3 backend this keeps a single current archive object; bucket
// versioning, when wanted, is the bucket's concern.
type BlobDestination struct {
	blobs blob.Store
	path  string
}

func NewBlobDestination(blobs blob.Store, path string) *BlobDestination {
	return &BlobDestination{blobs: blobs, path: path}
}

func (d *BlobDestination) Write(ctx context.Context, data []byte) error {
	return d.blobs.Put(ctx, d.path, data)
}

func (d *BlobDestination) Name() string { return "blob:" + d.path }
