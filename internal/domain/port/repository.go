package port

import (
	"context"
	"errors"
	"time"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"github.com/google/uuid"
)

// ErrCameraNotFound is returned when a camera id matches no registration.
var ErrCameraNotFound = errors.New("camera not found")

// HistoryFilter narrows an emotion history read. Zero-value fields are
// ignored.
type HistoryFilter struct {
	CameraID string
	From     *time.Time
	To       *time.Time
}

// EmotionRepository is the append-only store for emotion records. Insert
// returns the stored record with its generated identity; records are never
// updated afterwards.
type EmotionRepository interface {
	Insert(ctx context.Context, record *entity.EmotionRecord) (*entity.EmotionRecord, error)
	// History returns matching records in insertion order.
	History(ctx context.Context, filter HistoryFilter) ([]*entity.EmotionRecord, error)
}

// CameraRepository manages camera registrations, decoupled from ingestion.
type CameraRepository interface {
	List(ctx context.Context) ([]*entity.Camera, error)
	Create(ctx context.Context, camera *entity.Camera) (*entity.Camera, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Camera, error)
	SetOnline(ctx context.Context, id uuid.UUID, streamURL string) (*entity.Camera, error)
	SetOffline(ctx context.Context, id uuid.UUID) (*entity.Camera, error)
}
