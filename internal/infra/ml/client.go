package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"github.com/Samura1T/College-project-js/internal/infra/metrics"
	"go.uber.org/zap"
)

const healthTimeout = 5 * time.Second

// Client talks to the external emotion-classification service. Analyze never
// fails its caller: every transport or service error collapses into the
// deterministic neutral fallback so the ingestion pipeline needs no recovery
// path of its own.
type Client struct {
	baseURL    string
	threshold  float64
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, threshold float64, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		threshold:  threshold,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Analyze submits one still image to POST /api/analyze and returns the
// service's result unchanged, or the fallback result on any failure.
func (c *Client) Analyze(ctx context.Context, imagePath string) *entity.ClassificationResult {
	result, err := c.analyze(ctx, imagePath)
	if err != nil {
		c.logger.Warn("classification failed, using fallback",
			zap.String("image", imagePath),
			zap.Error(err),
		)
		metrics.ClassificationsTotal.WithLabelValues("fallback").Inc()
		return entity.FallbackResult(err.Error())
	}
	metrics.ClassificationsTotal.WithLabelValues("ok").Inc()
	return result
}

func (c *Client) analyze(ctx context.Context, imagePath string) (*entity.ClassificationResult, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call classification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classification service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result entity.ClassificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode classification response: %w", err)
	}
	return &result, nil
}

// AnalyzeBatch classifies images concurrently; the output sequence preserves
// input order. Individual failures surface as that element's fallback result.
func (c *Client) AnalyzeBatch(ctx context.Context, imagePaths []string) []*entity.ClassificationResult {
	results := make([]*entity.ClassificationResult, len(imagePaths))
	var wg sync.WaitGroup
	for i, path := range imagePaths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			results[i] = c.Analyze(ctx, path)
		}(i, path)
	}
	wg.Wait()
	return results
}

// IsReliable reports whether a confidence clears the reliability threshold.
func (c *Client) IsReliable(confidence float64) bool {
	return confidence > c.threshold
}

// NormalizeLabel canonicalizes a category label to its display form:
// "HAPPY " -> "Happy".
func (c *Client) NormalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return label
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}

// HealthCheck reports whether the classification service answers its health
// endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("classification service unavailable", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ModelInfo fetches the service's model metadata, nil when unavailable.
func (c *Client) ModelInfo(ctx context.Context) map[string]any {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/model/info", nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to get model info", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		c.logger.Warn("failed to decode model info", zap.Error(err))
		return nil
	}
	return info
}
