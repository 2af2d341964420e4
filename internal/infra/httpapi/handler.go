package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"github.com/Samura1T/College-project-js/internal/domain/port"
	"github.com/Samura1T/College-project-js/internal/usecase"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUploadBytes = 100 << 20

// MLStatus exposes the classification service's liveness and model metadata
// for the health surface.
type MLStatus interface {
	HealthCheck(ctx context.Context) bool
	ModelInfo(ctx context.Context) map[string]any
}

// Handler is the upward HTTP surface: emotion ingestion and history, camera
// registration and state, liveness.
type Handler struct {
	pipeline *usecase.IngestPipeline
	cameras  port.CameraRepository
	ml       MLStatus
	logger   *zap.Logger
}

func NewHandler(pipeline *usecase.IngestPipeline, cameras port.CameraRepository, ml MLStatus, logger *zap.Logger) *Handler {
	return &Handler{pipeline: pipeline, cameras: cameras, ml: ml, logger: logger}
}

// Routes builds the request mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/model/info", h.modelInfo)

	mux.HandleFunc("POST /api/emotions", h.saveEmotion)
	mux.HandleFunc("GET /api/emotions", h.listEmotions)
	mux.HandleFunc("GET /api/emotions/stats", h.emotionStats)
	mux.HandleFunc("POST /api/emotions/stream", h.ingestStream)
	mux.HandleFunc("POST /api/emotions/video", h.ingestVideo)
	mux.HandleFunc("POST /api/emotions/video-object", h.ingestVideoObject)

	mux.HandleFunc("GET /api/camera", h.listCameras)
	mux.HandleFunc("POST /api/camera", h.registerCamera)
	mux.HandleFunc("PUT /api/camera/{id}/online", h.cameraOnline)
	mux.HandleFunc("PUT /api/camera/{id}/offline", h.cameraOffline)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, h.logger, http.StatusNotFound, "route "+r.Method+" "+r.URL.Path+" not found")
	})

	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respond(w, h.logger, http.StatusOK, map[string]any{
		"status":     "OK",
		"message":    "Emotion Recognition API is running",
		"ml_service": h.ml.HealthCheck(r.Context()),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) modelInfo(w http.ResponseWriter, r *http.Request) {
	info := h.ml.ModelInfo(r.Context())
	if info == nil {
		respondError(w, h.logger, http.StatusServiceUnavailable, "model info unavailable")
		return
	}
	respond(w, h.logger, http.StatusOK, map[string]any{"success": true, "data": info})
}

func (h *Handler) saveEmotion(w http.ResponseWriter, r *http.Request) {
	var in usecase.ObservationInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.pipeline.SaveObservation(r.Context(), in)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	h.respondOutcome(w, outcome)
}

func (h *Handler) listEmotions(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilterFromQuery(r)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.pipeline.History(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, h.logger, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(records),
		"data":    records,
	})
}

func (h *Handler) emotionStats(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilterFromQuery(r)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	from, to := time.Time{}, time.Now().UTC()
	if filter.From != nil {
		from = *filter.From
	}
	if filter.To != nil {
		to = *filter.To
	}

	stats, err := h.pipeline.Stats(r.Context(), filter.CameraID, from, to)
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, h.logger, http.StatusOK, map[string]any{"success": true, "data": stats})
}

type streamFrameRequest struct {
	Image    string `json:"image"`
	CameraID string `json:"camera_id"`
}

func (h *Handler) ingestStream(w http.ResponseWriter, r *http.Request) {
	var req streamFrameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.pipeline.IngestStreamFrame(r.Context(), req.Image, req.CameraID)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	h.respondOutcome(w, outcome)
}

func (h *Handler) ingestVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}
	cameraID := r.FormValue("camera_id")

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "read video upload: "+err.Error())
		return
	}

	records, err := h.pipeline.IngestUploadedVideo(r.Context(), data, header.Filename, cameraID)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	respond(w, h.logger, http.StatusCreated, map[string]any{
		"success": true,
		"count":   len(records),
		"data":    records,
	})
}

type videoObjectRequest struct {
	ObjectKey string `json:"object_key"`
	CameraID  string `json:"camera_id"`
}

func (h *Handler) ingestVideoObject(w http.ResponseWriter, r *http.Request) {
	var req videoObjectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if req.ObjectKey == "" {
		respondError(w, h.logger, http.StatusBadRequest, "object_key is required")
		return
	}

	records, err := h.pipeline.IngestVideoObject(r.Context(), req.ObjectKey, req.CameraID)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}
	respond(w, h.logger, http.StatusCreated, map[string]any{
		"success": true,
		"count":   len(records),
		"data":    records,
	})
}

func (h *Handler) listCameras(w http.ResponseWriter, r *http.Request) {
	cameras, err := h.cameras.List(r.Context())
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, h.logger, http.StatusOK, map[string]any{"success": true, "data": cameras})
}

type registerCameraRequest struct {
	Name      string  `json:"name"`
	StreamURL *string `json:"stream_url"`
}

func (h *Handler) registerCamera(w http.ResponseWriter, r *http.Request) {
	var req registerCameraRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, h.logger, http.StatusBadRequest, "name is required")
		return
	}

	camera, err := h.cameras.Create(r.Context(), entity.NewCamera(req.Name, req.StreamURL))
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, h.logger, http.StatusCreated, map[string]any{"success": true, "data": camera})
}

type cameraOnlineRequest struct {
	StreamURL string `json:"stream_url"`
}

func (h *Handler) cameraOnline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid camera id")
		return
	}
	var req cameraOnlineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	camera, err := h.cameras.SetOnline(r.Context(), id, req.StreamURL)
	if err != nil {
		h.respondCameraError(w, err)
		return
	}
	respond(w, h.logger, http.StatusOK, map[string]any{
		"success": true,
		"status":  entity.CameraStatusOnline,
		"data":    camera,
	})
}

func (h *Handler) cameraOffline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid camera id")
		return
	}

	camera, err := h.cameras.SetOffline(r.Context(), id)
	if err != nil {
		h.respondCameraError(w, err)
		return
	}
	respond(w, h.logger, http.StatusOK, map[string]any{
		"success": true,
		"status":  entity.CameraStatusOffline,
		"data":    camera,
	})
}

func (h *Handler) respondOutcome(w http.ResponseWriter, outcome usecase.IngestOutcome) {
	if !outcome.Saved() {
		respond(w, h.logger, http.StatusOK, map[string]any{
			"success": false,
			"message": "Skipped: " + outcome.SkipReason,
		})
		return
	}
	respond(w, h.logger, http.StatusCreated, map[string]any{
		"success": true,
		"data":    outcome.Record,
	})
}

func (h *Handler) respondPipelineError(w http.ResponseWriter, err error) {
	var vErr *usecase.ValidationError
	if errors.As(err, &vErr) {
		respondError(w, h.logger, http.StatusBadRequest, vErr.Error())
		return
	}
	h.logger.Error("pipeline error", zap.Error(err))
	respondError(w, h.logger, http.StatusInternalServerError, err.Error())
}

func (h *Handler) respondCameraError(w http.ResponseWriter, err error) {
	if errors.Is(err, port.ErrCameraNotFound) {
		respondError(w, h.logger, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("camera store error", zap.Error(err))
	respondError(w, h.logger, http.StatusInternalServerError, err.Error())
}
