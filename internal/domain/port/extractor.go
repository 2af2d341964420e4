package port

import (
	"context"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
)

// FrameExtractor pulls still frames out of video sources via the external
// media tool. Extraction failures are not retried here; the caller decides
// whether the enclosing operation aborts.
type FrameExtractor interface {
	// ExtractFrames produces up to opts.MaxFrames numbered frame files and
	// returns their paths in temporal order.
	ExtractFrames(ctx context.Context, videoPath string, opts entity.ExtractionOptions) ([]string, error)
	// ExtractSingleFrame seeks to timestamp seconds and decodes one frame.
	ExtractSingleFrame(ctx context.Context, videoPath string, timestamp float64) (string, error)
	Metadata(ctx context.Context, videoPath string) (*entity.VideoMetadata, error)
}
