package port

import (
	"context"
	"io"
)

// VideoStorage is the object store holding uploaded source videos. Batch
// ingestion fetches videos by key; the upload handler archives them.
type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadVideo(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
