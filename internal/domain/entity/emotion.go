package entity

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// EmotionCategories is the fixed category set reported by the classification
// service. Every fully populated score map carries exactly these keys.
var EmotionCategories = []string{"happy", "sad", "angry", "fear", "surprise", "disgust", "neutral"}

// scoreSumTolerance bounds how far a populated score map may drift from 1.0.
const scoreSumTolerance = 0.01

// ClassificationResult is the classifier's verdict for a single still image.
// Err is non-empty only for fallback results produced when the external
// service could not be reached or returned a failure.
type ClassificationResult struct {
	Emotions        map[string]float64 `json:"emotions"`
	DominantEmotion string             `json:"dominant_emotion"`
	Confidence      float64            `json:"confidence"`
	FaceDetected    bool               `json:"face_detected"`
	Err             string             `json:"error,omitempty"`
}

// FallbackResult returns the deterministic neutral result used when the
// classification service fails: all categories zero except neutral, zero
// confidence, no face detected, with the failure description attached.
func FallbackResult(errMsg string) *ClassificationResult {
	emotions := make(map[string]float64, len(EmotionCategories))
	for _, c := range EmotionCategories {
		emotions[c] = 0
	}
	emotions["neutral"] = 1.0
	return &ClassificationResult{
		Emotions:        emotions,
		DominantEmotion: "neutral",
		Confidence:      0,
		FaceDetected:    false,
		Err:             errMsg,
	}
}

// IsFallback reports whether the result was produced by the failure policy
// rather than by the classification service.
func (r *ClassificationResult) IsFallback() bool {
	return r.Err != ""
}

// BoundingBox locates a detected face within the source frame.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// EmotionRecord is one persisted emotion observation. Records are append-only:
// once written they are never updated, only read back in insertion order.
type EmotionRecord struct {
	ID              uuid.UUID          `json:"id"`
	CameraID        string             `json:"camera_id"`
	Timestamp       time.Time          `json:"timestamp"`
	Emotions        map[string]float64 `json:"emotions"`
	DominantEmotion string             `json:"dominant_emotion"`
	Confidence      float64            `json:"confidence"`
	FaceDetected    bool               `json:"face_detected"`
	FrameURL        string             `json:"frame_url,omitempty"`
	Box             *BoundingBox       `json:"box,omitempty"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// NewEmotionRecord builds a record from a classification result.
func NewEmotionRecord(cameraID string, res *ClassificationResult, frameURL string) *EmotionRecord {
	return &EmotionRecord{
		ID:              uuid.New(),
		CameraID:        cameraID,
		Timestamp:       time.Now().UTC(),
		Emotions:        res.Emotions,
		DominantEmotion: res.DominantEmotion,
		Confidence:      res.Confidence,
		FaceDetected:    res.FaceDetected,
		FrameURL:        frameURL,
	}
}

// Validate rejects records whose populated score map does not sum to 1.0
// within tolerance. Records with no score map (direct observations carrying
// only a label and confidence) are accepted.
func (r *EmotionRecord) Validate() error {
	if r.CameraID == "" {
		return fmt.Errorf("emotion record: camera id is required")
	}
	if len(r.Emotions) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range r.Emotions {
		sum += v
	}
	if math.Abs(sum-1.0) > scoreSumTolerance {
		return fmt.Errorf("emotion record: scores sum to %.4f, want 1.0 ±%.2f", sum, scoreSumTolerance)
	}
	return nil
}

// Dominant returns the category with the highest score, neutral when the map
// is empty.
func Dominant(emotions map[string]float64) (string, float64) {
	maxCategory := "neutral"
	maxValue := 0.0
	for category, value := range emotions {
		if value > maxValue {
			maxValue = value
			maxCategory = category
		}
	}
	return maxCategory, maxValue
}
