package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"github.com/Samura1T/College-project-js/internal/domain/port"
	"github.com/Samura1T/College-project-js/internal/usecase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClassifier struct {
	confidence float64
}

func (s *stubClassifier) Analyze(context.Context, string) *entity.ClassificationResult {
	res := entity.FallbackResult("")
	res.Err = ""
	res.Confidence = s.confidence
	return res
}

func (s *stubClassifier) AnalyzeBatch(ctx context.Context, paths []string) []*entity.ClassificationResult {
	results := make([]*entity.ClassificationResult, len(paths))
	for i := range paths {
		results[i] = s.Analyze(ctx, paths[i])
	}
	return results
}

func (s *stubClassifier) IsReliable(confidence float64) bool { return confidence > 0.5 }

func (s *stubClassifier) NormalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return label
	}
	return string(unicode.ToUpper(rune(label[0]))) + label[1:]
}

type stubExtractor struct{}

func (stubExtractor) ExtractFrames(context.Context, string, entity.ExtractionOptions) ([]string, error) {
	return nil, nil
}
func (stubExtractor) ExtractSingleFrame(context.Context, string, float64) (string, error) {
	return "", nil
}
func (stubExtractor) Metadata(context.Context, string) (*entity.VideoMetadata, error) {
	return &entity.VideoMetadata{}, nil
}

type memEmotionRepo struct {
	records []*entity.EmotionRecord
}

func (m *memEmotionRepo) Insert(_ context.Context, record *entity.EmotionRecord) (*entity.EmotionRecord, error) {
	stored := *record
	stored.CreatedAt = time.Now().UTC()
	m.records = append(m.records, &stored)
	return &stored, nil
}

func (m *memEmotionRepo) History(context.Context, port.HistoryFilter) ([]*entity.EmotionRecord, error) {
	return m.records, nil
}

type memCameraRepo struct {
	cameras map[uuid.UUID]*entity.Camera
}

func newMemCameraRepo() *memCameraRepo {
	return &memCameraRepo{cameras: map[uuid.UUID]*entity.Camera{}}
}

func (m *memCameraRepo) List(context.Context) ([]*entity.Camera, error) {
	out := []*entity.Camera{}
	for _, c := range m.cameras {
		out = append(out, c)
	}
	return out, nil
}

func (m *memCameraRepo) Create(_ context.Context, camera *entity.Camera) (*entity.Camera, error) {
	m.cameras[camera.ID] = camera
	return camera, nil
}

func (m *memCameraRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Camera, error) {
	c, ok := m.cameras[id]
	if !ok {
		return nil, port.ErrCameraNotFound
	}
	return c, nil
}

func (m *memCameraRepo) SetOnline(_ context.Context, id uuid.UUID, streamURL string) (*entity.Camera, error) {
	c, ok := m.cameras[id]
	if !ok {
		return nil, port.ErrCameraNotFound
	}
	c.Status = entity.CameraStatusOnline
	c.StreamURL = &streamURL
	return c, nil
}

func (m *memCameraRepo) SetOffline(_ context.Context, id uuid.UUID) (*entity.Camera, error) {
	c, ok := m.cameras[id]
	if !ok {
		return nil, port.ErrCameraNotFound
	}
	c.Status = entity.CameraStatusOffline
	return c, nil
}

type stubStorage struct{}

func (stubStorage) DownloadVideo(context.Context, string, string) error { return nil }
func (stubStorage) UploadVideo(context.Context, string, io.Reader, int64) error {
	return nil
}

type stubML struct{ healthy bool }

func (s stubML) HealthCheck(context.Context) bool         { return s.healthy }
func (s stubML) ModelInfo(context.Context) map[string]any { return nil }

func newTestHandler(t *testing.T, confidence float64) (*Handler, *memEmotionRepo, *memCameraRepo) {
	t.Helper()
	emotions := &memEmotionRepo{}
	cameras := newMemCameraRepo()
	pipeline := usecase.NewIngestPipeline(
		&stubClassifier{confidence: confidence}, stubExtractor{}, emotions, stubStorage{},
		zap.NewNop(),
		usecase.IngestConfig{FramesDir: filepath.Join(t.TempDir(), "frames")},
	)
	return NewHandler(pipeline, cameras, stubML{healthy: true}, zap.NewNop()), emotions, cameras
}

func doJSON(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSaveEmotionReliable(t *testing.T) {
	h, emotions, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodPost, "/api/emotions", map[string]any{
		"label":      "happy",
		"confidence": 0.9,
		"metadata":   map[string]string{"camera_id": "cam-1"},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	require.Len(t, emotions.records, 1)
	assert.Equal(t, "Happy", emotions.records[0].DominantEmotion)
}

func TestSaveEmotionLowConfidenceSkipped(t *testing.T) {
	h, emotions, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodPost, "/api/emotions", map[string]any{
		"label":      "sad",
		"confidence": 0.1,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "Skipped")
	assert.Empty(t, emotions.records)
}

func TestSaveEmotionMalformedBody(t *testing.T) {
	h, _, _ := newTestHandler(t, 0.9)

	req := httptest.NewRequest(http.MethodPost, "/api/emotions", strings.NewReader("{invalid json"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEmotions(t *testing.T) {
	h, emotions, _ := newTestHandler(t, 0.9)
	emotions.records = append(emotions.records, &entity.EmotionRecord{
		ID: uuid.New(), CameraID: "cam-1", DominantEmotion: "Happy", Confidence: 0.8,
	})

	rec := doJSON(t, h, http.MethodGet, "/api/emotions", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestListEmotionsBadTimestamp(t *testing.T) {
	h, _, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodGet, "/api/emotions?from=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestStreamEndpointSavesAndSkips(t *testing.T) {
	payload := "data:image/jpeg;base64," + base64JPEG()

	h, emotions, _ := newTestHandler(t, 0.9)
	rec := doJSON(t, h, http.MethodPost, "/api/emotions/stream", map[string]string{
		"image": payload, "camera_id": "cam-4",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, emotions.records, 1)

	h, emotions, _ = newTestHandler(t, 0.2)
	rec = doJSON(t, h, http.MethodPost, "/api/emotions/stream", map[string]string{
		"image": payload, "camera_id": "cam-4",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Empty(t, emotions.records)
}

func TestIngestStreamEndpointInvalidPayload(t *testing.T) {
	h, _, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodPost, "/api/emotions/stream", map[string]string{
		"image": "!!! not base64", "camera_id": "cam-4",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCameraLifecycle(t *testing.T) {
	h, _, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodPost, "/api/camera", map[string]any{"name": "lobby"})
	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "OFFLINE", data["status"])
	id := data["id"].(string)

	rec = doJSON(t, h, http.MethodPut, "/api/camera/"+id+"/online", map[string]string{
		"stream_url": "rtsp://lobby.local/stream",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "ONLINE", data["status"])
	assert.Equal(t, "rtsp://lobby.local/stream", data["stream_url"])

	rec = doJSON(t, h, http.MethodPut, "/api/camera/"+id+"/offline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "OFFLINE", data["status"])
	assert.Equal(t, "rtsp://lobby.local/stream", data["stream_url"], "going offline keeps the last stream URL")
}

func TestCameraRegisterRequiresName(t *testing.T) {
	h, _, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodPost, "/api/camera", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCameraTransitionsUnknownID(t *testing.T) {
	h, _, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodPut, "/api/camera/"+uuid.NewString()+"/online", map[string]string{
		"stream_url": "rtsp://nowhere",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/camera/not-a-uuid/offline", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, true, body["ml_service"])
}

func TestUnknownRoute(t *testing.T) {
	h, _, _ := newTestHandler(t, 0.9)

	rec := doJSON(t, h, http.MethodGet, "/api/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func base64JPEG() string {
	return "ZmFrZSBqcGVnIGJ5dGVz"
}
