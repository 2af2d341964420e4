package port

import (
	"context"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
)

// Classifier wraps the external emotion-classification service. Analyze never
// returns an error: transport failures are absorbed into a fallback result so
// callers need no recovery path of their own.
type Classifier interface {
	Analyze(ctx context.Context, imagePath string) *entity.ClassificationResult
	AnalyzeBatch(ctx context.Context, imagePaths []string) []*entity.ClassificationResult
	IsReliable(confidence float64) bool
	NormalizeLabel(label string) string
}
