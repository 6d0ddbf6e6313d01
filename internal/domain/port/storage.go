package port

import (
	"context"
	"io"
)

// ManifestStorage holds frame-sequence manifests the render service fetches
// by object key.
type ManifestStorage interface {
	UploadManifest(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
