package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTestImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("not really a jpeg"), 0o644))
	return path
}

func TestAnalyzePassesThroughServiceResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/analyze", r.URL.Path)

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		file.Close()

		json.NewEncoder(w).Encode(map[string]any{
			"emotions": map[string]float64{
				"happy": 0.8, "sad": 0.05, "angry": 0.02, "fear": 0.03,
				"surprise": 0.05, "disgust": 0.02, "neutral": 0.03,
			},
			"dominant_emotion": "happy",
			"confidence":       0.8,
			"face_detected":    true,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 0.5, zap.NewNop())
	res := client.Analyze(context.Background(), writeTestImage(t, "face.jpg"))

	assert.False(t, res.IsFallback())
	assert.Equal(t, "happy", res.DominantEmotion)
	assert.Equal(t, 0.8, res.Confidence)
	assert.True(t, res.FaceDetected)
	assert.Equal(t, 0.8, res.Emotions["happy"])
}

func TestAnalyzeServerErrorReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 0.5, zap.NewNop())
	res := client.Analyze(context.Background(), writeTestImage(t, "face.jpg"))

	assert.True(t, res.IsFallback())
	assert.NotEmpty(t, res.Err)
	assert.Equal(t, "neutral", res.DominantEmotion)
	assert.Equal(t, 0.0, res.Confidence)
	assert.False(t, res.FaceDetected)
	assert.Equal(t, 1.0, res.Emotions["neutral"])
}

func TestAnalyzeConnectionRefusedReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, time.Second, 0.5, zap.NewNop())
	res := client.Analyze(context.Background(), writeTestImage(t, "face.jpg"))

	assert.True(t, res.IsFallback())
	assert.Equal(t, 1.0, res.Emotions["neutral"])
}

func TestAnalyzeTimeoutReturnsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 50*time.Millisecond, 0.5, zap.NewNop())
	res := client.Analyze(context.Background(), writeTestImage(t, "face.jpg"))

	assert.True(t, res.IsFallback())
	assert.Equal(t, 0.0, res.Confidence)
}

func TestAnalyzeUnreadableImageReturnsFallback(t *testing.T) {
	client := NewClient("http://localhost:1", time.Second, 0.5, zap.NewNop())
	res := client.Analyze(context.Background(), filepath.Join(t.TempDir(), "unreadable.jpg"))

	assert.True(t, res.IsFallback())
	assert.NotEmpty(t, res.Err)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestAnalyzeBatchPreservesInputOrder(t *testing.T) {
	// The server echoes the uploaded filename as the dominant emotion so the
	// test can pin each result to its input.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		json.NewEncoder(w).Encode(map[string]any{
			"dominant_emotion": header.Filename,
			"confidence":       0.9,
			"face_detected":    true,
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	paths := make([]string, 5)
	for i := range paths {
		paths[i] = filepath.Join(dir, string(rune('a'+i))+".jpg")
		require.NoError(t, os.WriteFile(paths[i], []byte("img"), 0o644))
	}

	client := NewClient(srv.URL, 5*time.Second, 0.5, zap.NewNop())
	results := client.AnalyzeBatch(context.Background(), paths)

	require.Len(t, results, len(paths))
	for i, res := range results {
		assert.Equal(t, filepath.Base(paths[i]), res.DominantEmotion)
	}
}

func TestAnalyzeBatchAbsorbsIndividualFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(entity.ClassificationResult{DominantEmotion: "happy", Confidence: 0.9})
	}))
	defer srv.Close()

	good := writeTestImage(t, "good.jpg")
	missing := filepath.Join(t.TempDir(), "missing.jpg")

	client := NewClient(srv.URL, 5*time.Second, 0.5, zap.NewNop())
	results := client.AnalyzeBatch(context.Background(), []string{good, missing, good})

	require.Len(t, results, 3)
	assert.False(t, results[0].IsFallback())
	assert.True(t, results[1].IsFallback())
	assert.False(t, results[2].IsFallback())
}

func TestIsReliable(t *testing.T) {
	client := NewClient("http://localhost:1", time.Second, 0.5, zap.NewNop())

	assert.False(t, client.IsReliable(0.0))
	assert.False(t, client.IsReliable(0.5)) // threshold itself is not enough
	assert.True(t, client.IsReliable(0.51))
	assert.True(t, client.IsReliable(1.0))
}

func TestNormalizeLabel(t *testing.T) {
	client := NewClient("http://localhost:1", time.Second, 0.5, zap.NewNop())

	assert.Equal(t, "Happy", client.NormalizeLabel("happy"))
	assert.Equal(t, "Happy", client.NormalizeLabel(" HAPPY "))
	assert.Equal(t, "Surprise", client.NormalizeLabel("Surprise"))
	assert.Equal(t, "", client.NormalizeLabel(""))
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, 0.5, zap.NewNop())
	assert.True(t, client.HealthCheck(context.Background()))

	srv.Close()
	assert.False(t, client.HealthCheck(context.Background()))
}

func TestModelInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/model/info", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"model": "fer2013-cnn", "version": "1.2.0"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, 0.5, zap.NewNop())
	info := client.ModelInfo(context.Background())
	require.NotNil(t, info)
	assert.Equal(t, "fer2013-cnn", info["model"])

	srv.Close()
	assert.Nil(t, client.ModelInfo(context.Background()))
}
