package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"github.com/Samura1T/College-project-js/internal/domain/port"
	"github.com/Samura1T/College-project-js/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ValidationError marks malformed input caught at the boundary, before any
// pipeline work happens. The HTTP layer maps it to a 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IngestOutcome is the tagged result of a gated ingestion: either a saved
// record or a skip with its reason. A skip is a quality decision, not an
// error.
type IngestOutcome struct {
	Record     *entity.EmotionRecord
	SkipReason string
}

func (o IngestOutcome) Saved() bool { return o.Record != nil }

func saved(record *entity.EmotionRecord) IngestOutcome {
	return IngestOutcome{Record: record}
}

func skipped(reason string) IngestOutcome {
	return IngestOutcome{SkipReason: reason}
}

var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// IngestPipeline orchestrates frame extraction, classification and
// persistence. Within one request everything runs sequentially: frames of a
// video are classified one after another, in extraction order, to bound load
// on the classification service.
type IngestPipeline struct {
	classifier port.Classifier
	extractor  port.FrameExtractor
	emotions   port.EmotionRepository
	storage    port.VideoStorage
	logger     *zap.Logger
	framesDir  string
	videosDir  string
	tempDir    string
	frameRate  float64
	maxFrames  int
}

type IngestConfig struct {
	FramesDir string
	VideosDir string
	TempDir   string
	FrameRate float64
	MaxFrames int
}

func NewIngestPipeline(
	classifier port.Classifier,
	extractor port.FrameExtractor,
	emotions port.EmotionRepository,
	storage port.VideoStorage,
	logger *zap.Logger,
	cfg IngestConfig,
) *IngestPipeline {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 1
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 30
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &IngestPipeline{
		classifier: classifier,
		extractor:  extractor,
		emotions:   emotions,
		storage:    storage,
		logger:     logger,
		framesDir:  cfg.FramesDir,
		videosDir:  cfg.VideosDir,
		tempDir:    cfg.TempDir,
		frameRate:  cfg.FrameRate,
		maxFrames:  cfg.MaxFrames,
	}
}

// IngestImage classifies one still image and wraps the result into a record
// tagged with the camera and the current time. The record is returned
// unpersisted; storing it is the caller's explicit next step.
func (p *IngestPipeline) IngestImage(ctx context.Context, imagePath, cameraID string) (*entity.EmotionRecord, error) {
	if cameraID == "" {
		return nil, validationErrorf("camera id is required")
	}

	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "IngestPipeline.IngestImage")
	defer span.End()
	span.SetAttributes(attribute.String("camera.id", cameraID))

	start := time.Now()
	result := p.classifier.Analyze(ctx, imagePath)
	metrics.IngestDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())

	result.DominantEmotion = p.classifier.NormalizeLabel(result.DominantEmotion)
	record := entity.NewEmotionRecord(cameraID, result, imagePath)

	p.logger.Debug("image classified",
		zap.String("camera_id", cameraID),
		zap.String("dominant", record.DominantEmotion),
		zap.Float64("confidence", record.Confidence),
		zap.Bool("fallback", result.IsFallback()),
	)
	return record, nil
}

// IngestVideo extracts frames at the default sampling (1 fps, capped at 30
// frames unless configured otherwise) and classifies them sequentially in
// extraction order. Extraction failure aborts the whole call; classification
// failures are absorbed per frame by the fallback policy.
func (p *IngestPipeline) IngestVideo(ctx context.Context, videoPath, cameraID string) ([]*entity.EmotionRecord, error) {
	if cameraID == "" {
		return nil, validationErrorf("camera id is required")
	}

	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "IngestPipeline.IngestVideo")
	defer span.End()
	span.SetAttributes(
		attribute.String("camera.id", cameraID),
		attribute.String("video.path", videoPath),
	)

	start := time.Now()
	frames, err := p.extractor.ExtractFrames(ctx, videoPath, entity.ExtractionOptions{
		FrameRate: p.frameRate,
		MaxFrames: p.maxFrames,
	})
	metrics.IngestDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error("frame extraction failed",
			zap.String("video", videoPath),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.FramesExtractedTotal.Add(float64(len(frames)))

	records := make([]*entity.EmotionRecord, 0, len(frames))
	for _, frame := range frames {
		record, err := p.IngestImage(ctx, frame, cameraID)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	p.logger.Info("video ingested",
		zap.String("video", videoPath),
		zap.String("camera_id", cameraID),
		zap.Int("frames", len(records)),
	)
	return records, nil
}

// IngestStreamFrame decodes a base64 frame pushed by a camera stream, writes
// it to a unique temp file and runs the image pipeline. Records below the
// reliability threshold are skipped, not persisted.
func (p *IngestPipeline) IngestStreamFrame(ctx context.Context, encodedImage, cameraID string) (IngestOutcome, error) {
	if cameraID == "" {
		return IngestOutcome{}, validationErrorf("camera id is required")
	}

	payload := dataURIPrefix.ReplaceAllString(encodedImage, "")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return IngestOutcome{}, validationErrorf("invalid base64 image payload: %v", err)
	}

	if err := os.MkdirAll(p.framesDir, 0o755); err != nil {
		return IngestOutcome{}, fmt.Errorf("create frames dir: %w", err)
	}
	framePath := filepath.Join(p.framesDir, fmt.Sprintf("stream_%d.jpg", time.Now().UnixNano()))
	if err := os.WriteFile(framePath, data, 0o644); err != nil {
		return IngestOutcome{}, fmt.Errorf("write stream frame: %w", err)
	}

	record, err := p.IngestImage(ctx, framePath, cameraID)
	if err != nil {
		return IngestOutcome{}, err
	}

	if !p.classifier.IsReliable(record.Confidence) {
		metrics.LowConfidenceSkipsTotal.Inc()
		p.logger.Info("stream frame skipped: low confidence",
			zap.String("camera_id", cameraID),
			zap.Float64("confidence", record.Confidence),
		)
		return skipped("low confidence"), nil
	}

	stored, err := p.persist(ctx, record)
	if err != nil {
		return IngestOutcome{}, err
	}
	return saved(stored), nil
}

// IngestUploadedVideo writes an uploaded video under the videos directory,
// archives it to object storage, then runs the video pipeline and persists
// the resulting records. The archive step is best-effort: the local copy is
// the processing source.
func (p *IngestPipeline) IngestUploadedVideo(ctx context.Context, data []byte, filename, cameraID string) ([]*entity.EmotionRecord, error) {
	if cameraID == "" {
		return nil, validationErrorf("camera id is required")
	}
	if len(data) == 0 {
		return nil, validationErrorf("video payload is empty")
	}

	if err := os.MkdirAll(p.videosDir, 0o755); err != nil {
		return nil, fmt.Errorf("create videos dir: %w", err)
	}
	videoPath := filepath.Join(p.videosDir, filepath.Base(filename))
	if err := os.WriteFile(videoPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("save uploaded video: %w", err)
	}
	p.logger.Info("video saved", zap.String("path", videoPath), zap.Int("size", len(data)))

	objectKey := fmt.Sprintf("%s/%s", cameraID, filepath.Base(filename))
	if err := p.storage.UploadVideo(ctx, objectKey, bytes.NewReader(data), int64(len(data))); err != nil {
		p.logger.Warn("video archive failed", zap.String("object_key", objectKey), zap.Error(err))
	}

	records, err := p.IngestVideo(ctx, videoPath, cameraID)
	if err != nil {
		return nil, err
	}
	return p.persistAll(ctx, records)
}

// IngestVideoObject downloads a video from object storage into a scratch
// directory, runs the video pipeline over it and persists the resulting
// records.
func (p *IngestPipeline) IngestVideoObject(ctx context.Context, objectKey, cameraID string) ([]*entity.EmotionRecord, error) {
	if cameraID == "" {
		return nil, validationErrorf("camera id is required")
	}

	workDir := filepath.Join(p.tempDir, uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input.mp4")
	start := time.Now()
	if err := p.storage.DownloadVideo(ctx, objectKey, videoPath); err != nil {
		p.logger.Error("video download failed", zap.String("object_key", objectKey), zap.Error(err))
		return nil, err
	}
	metrics.IngestDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())

	records, err := p.IngestVideo(ctx, videoPath, cameraID)
	if err != nil {
		return nil, err
	}
	return p.persistAll(ctx, records)
}

// ObservationInput is a pre-classified observation pushed by an edge
// detector.
type ObservationInput struct {
	Label      string              `json:"label"`
	Confidence float64             `json:"confidence"`
	Box        *entity.BoundingBox `json:"box,omitempty"`
	Metadata   map[string]string   `json:"metadata,omitempty"`
	CameraID   string              `json:"camera_id,omitempty"`
}

// SaveObservation applies the reliability gate and label normalization to an
// externally produced observation, then persists it.
func (p *IngestPipeline) SaveObservation(ctx context.Context, in ObservationInput) (IngestOutcome, error) {
	if in.Label == "" {
		return IngestOutcome{}, validationErrorf("label is required")
	}

	if !p.classifier.IsReliable(in.Confidence) {
		metrics.LowConfidenceSkipsTotal.Inc()
		return skipped("low confidence"), nil
	}

	cameraID := in.CameraID
	if cameraID == "" {
		cameraID = in.Metadata["camera_id"]
	}
	if cameraID == "" {
		cameraID = "external"
	}

	record := &entity.EmotionRecord{
		ID:              uuid.New(),
		CameraID:        cameraID,
		Timestamp:       time.Now().UTC(),
		DominantEmotion: p.classifier.NormalizeLabel(in.Label),
		Confidence:      in.Confidence,
		FaceDetected:    true,
		Box:             in.Box,
		Metadata:        in.Metadata,
	}

	stored, err := p.persist(ctx, record)
	if err != nil {
		return IngestOutcome{}, err
	}
	return saved(stored), nil
}

// History reads back persisted records in insertion order.
func (p *IngestPipeline) History(ctx context.Context, filter port.HistoryFilter) ([]*entity.EmotionRecord, error) {
	return p.emotions.History(ctx, filter)
}

// EmotionStats aggregates a camera's history over a period.
type EmotionStats struct {
	CameraID          string         `json:"camera_id"`
	From              time.Time      `json:"from"`
	To                time.Time      `json:"to"`
	TotalDetections   int            `json:"total_detections"`
	EmotionsSummary   map[string]int `json:"emotions_summary"`
	DominantEmotion   string         `json:"dominant_emotion"`
	AverageConfidence float64        `json:"average_confidence"`
}

// Stats counts detections per dominant category over the period and reports
// the overall dominant category and average confidence.
func (p *IngestPipeline) Stats(ctx context.Context, cameraID string, from, to time.Time) (*EmotionStats, error) {
	records, err := p.emotions.History(ctx, port.HistoryFilter{
		CameraID: cameraID,
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return nil, err
	}

	stats := &EmotionStats{
		CameraID:        cameraID,
		From:            from,
		To:              to,
		TotalDetections: len(records),
		EmotionsSummary: make(map[string]int, len(entity.EmotionCategories)),
		DominantEmotion: "Neutral",
	}
	for _, c := range entity.EmotionCategories {
		stats.EmotionsSummary[p.classifier.NormalizeLabel(c)] = 0
	}

	confidenceSum := 0.0
	maxCount := 0
	for _, record := range records {
		stats.EmotionsSummary[record.DominantEmotion]++
		confidenceSum += record.Confidence
		if n := stats.EmotionsSummary[record.DominantEmotion]; n > maxCount {
			maxCount = n
			stats.DominantEmotion = record.DominantEmotion
		}
	}
	if len(records) > 0 {
		stats.AverageConfidence = confidenceSum / float64(len(records))
	}
	return stats, nil
}

// persistAll appends records one by one, preserving extraction order.
func (p *IngestPipeline) persistAll(ctx context.Context, records []*entity.EmotionRecord) ([]*entity.EmotionRecord, error) {
	stored := make([]*entity.EmotionRecord, 0, len(records))
	for _, record := range records {
		s, err := p.persist(ctx, record)
		if err != nil {
			return nil, err
		}
		stored = append(stored, s)
	}
	return stored, nil
}

func (p *IngestPipeline) persist(ctx context.Context, record *entity.EmotionRecord) (*entity.EmotionRecord, error) {
	start := time.Now()
	stored, err := p.emotions.Insert(ctx, record)
	metrics.IngestDuration.WithLabelValues("persist").Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error("failed to persist emotion record", zap.Error(err))
		return nil, err
	}
	metrics.RecordsPersistedTotal.Inc()
	return stored, nil
}
