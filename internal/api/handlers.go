package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bobarin/brainrot/internal/models"
	"github.com/bobarin/brainrot/internal/scheduler"
)

// how often a blocking create handler re-checks its task; a variable so
// tests can shorten the wait
var pollInterval = time.Second

// TaskService is the scheduler surface the handlers need.
type TaskService interface {
	Submit(req models.GenerationRequest) uuid.UUID
	Task(id uuid.UUID) (models.Task, error)
	ResultPath(id uuid.UUID) (string, error)
}

type Handler struct {
	tasks     TaskService
	outputDir string
	baseURL   string
	logger    *zap.Logger
}

func NewHandler(tasks TaskService, outputDir, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		tasks:     tasks,
		outputDir: outputDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger.Named("api"),
	}
}

// CreateVideo handles POST /api/v1/create-video. The request blocks until
// the task reaches a terminal status.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var body models.VideoRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := models.NewStandardRequest(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.runBlocking(w, r, req)
}

// CreateRedditVideo handles POST /api/v1/create-reddit-video.
func (h *Handler) CreateRedditVideo(w http.ResponseWriter, r *http.Request) {
	var body models.RedditVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := models.NewRedditRequest(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.runBlocking(w, r, req)
}

// runBlocking submits the request and polls until the task finishes or the
// client goes away.
func (h *Handler) runBlocking(w http.ResponseWriter, r *http.Request, req models.GenerationRequest) {
	id := h.tasks.Submit(req)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			// the task keeps running; the client can recover it via
			// GET /tasks/{id} if it kept the id from a prior response
			h.logger.Warn("client disconnected while waiting",
				zap.String("task_id", id.String()),
			)
			return
		case <-ticker.C:
		}

		task, err := h.tasks.Task(id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Task state lost")
			return
		}
		if !task.Status.Terminal() {
			continue
		}

		if task.Status == models.TaskStatusFailed {
			respondError(w, http.StatusBadRequest, task.Error)
			return
		}
		respondJSON(w, http.StatusOK, models.VideoResponse{
			VideoURL: h.videoURL(task.ResultPath),
		})
		return
	}
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	task, err := h.tasks.Task(id)
	if errors.Is(err, scheduler.ErrTaskNotFound) {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load task")
		return
	}

	resp := models.TaskResponse{
		ID:      task.ID,
		Status:  task.Status,
		Variant: task.Variant,
	}
	if task.Status == models.TaskStatusCompleted {
		u := h.videoURL(task.ResultPath)
		resp.VideoURL = &u
	}
	if task.Error != "" {
		resp.Error = &task.Error
	}
	respondJSON(w, http.StatusOK, resp)
}

// ServeVideo handles GET /api/v1/videos/{filename}. ServeContent gives
// range request support so players can seek.
func (h *Handler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		respondError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	path := filepath.Join(h.outputDir, name)
	f, err := os.Open(path)
	if err != nil {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *Handler) videoURL(resultPath string) string {
	return h.baseURL + "/api/v1/videos/" + filepath.Base(resultPath)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
