package entity

import (
	"time"

	"github.com/google/uuid"
)

type CameraStatus string

const (
	CameraStatusOnline  CameraStatus = "ONLINE"
	CameraStatusOffline CameraStatus = "OFFLINE"
)

// Camera is a registered capture source. Status is flipped only through the
// explicit online/offline transitions; frame ingestion never creates or
// mutates cameras. Setting a camera offline keeps its last stream URL.
type Camera struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	StreamURL *string      `json:"stream_url"`
	Status    CameraStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewCamera(name string, streamURL *string) *Camera {
	return &Camera{
		ID:        uuid.New(),
		Name:      name,
		StreamURL: streamURL,
		Status:    CameraStatusOffline,
		CreatedAt: time.Now().UTC(),
	}
}
