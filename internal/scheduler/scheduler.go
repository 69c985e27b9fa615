// Package scheduler owns the task registry and drives the generation
// pipeline with bounded concurrency.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bobarin/brainrot/internal/fetch"
	"github.com/bobarin/brainrot/internal/models"
	"github.com/bobarin/brainrot/internal/services"
	"github.com/bobarin/brainrot/internal/telemetry"
)

// ErrTaskNotFound means the id was never issued or the task's record has
// been dropped.
var ErrTaskNotFound = errors.New("task not found")

// assumed narration length when probing the downloaded audio fails
const fallbackAudioDuration = 10.0

// Downloader fetches a remote asset to a local path.
type Downloader interface {
	Download(ctx context.Context, url string, kind fetch.AssetKind) (string, error)
}

// DurationProber reports a local media file's duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// BackgroundSelector yields a background clip of roughly target seconds.
type BackgroundSelector interface {
	SelectSegment(ctx context.Context, category models.BackgroundCategory, target float64) (string, error)
}

// Composer renders the final video.
type Composer interface {
	Compose(ctx context.Context, job services.ComposeJob) (string, error)
}

// Retainer receives finished outputs for retention tracking and can be
// nudged to collect stale temp files.
type Retainer interface {
	Register(path string)
	SweepOrphans()
}

type Scheduler struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*models.Task

	gate *semaphore.Weighted

	fetcher     Downloader
	transcriber services.Transcriber
	prober      DurationProber
	backgrounds BackgroundSelector
	compositor  Composer
	retainer    Retainer
	logger      *zap.Logger
}

func New(maxConcurrent int, fetcher Downloader, transcriber services.Transcriber, prober DurationProber, backgrounds BackgroundSelector, compositor Composer, retainer Retainer, logger *zap.Logger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		tasks:       make(map[uuid.UUID]*models.Task),
		gate:        semaphore.NewWeighted(int64(maxConcurrent)),
		fetcher:     fetcher,
		transcriber: transcriber,
		prober:      prober,
		backgrounds: backgrounds,
		compositor:  compositor,
		retainer:    retainer,
		logger:      logger.Named("scheduler"),
	}
}

// Submit records a new pending task and starts its pipeline in the
// background. The returned id is immediately pollable.
func (s *Scheduler) Submit(req models.GenerationRequest) uuid.UUID {
	now := time.Now()
	task := &models.Task{
		ID:        uuid.New(),
		Status:    models.TaskStatusPending,
		Variant:   req.Variant,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	telemetry.TasksSubmitted.WithLabelValues(string(req.Variant)).Inc()
	s.logger.Info("task submitted",
		zap.String("task_id", task.ID.String()),
		zap.String("variant", string(req.Variant)),
	)

	go s.run(task.ID, req)
	return task.ID
}

// Task returns a snapshot of the task's current state.
func (s *Scheduler) Task(id uuid.UUID) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return models.Task{}, ErrTaskNotFound
	}
	return *task, nil
}

// ResultPath returns the output file of a completed task. The path is only
// handed out while the file still exists on disk.
func (s *Scheduler) ResultPath(id uuid.UUID) (string, error) {
	task, err := s.Task(id)
	if err != nil {
		return "", err
	}
	if task.Status != models.TaskStatusCompleted {
		return "", fmt.Errorf("task %s is %s, not completed", id, task.Status)
	}
	if _, err := os.Stat(task.ResultPath); err != nil {
		return "", fmt.Errorf("result for task %s no longer available: %w", id, err)
	}
	return task.ResultPath, nil
}

func (s *Scheduler) setStatus(id uuid.UUID, status models.TaskStatus, mutate func(*models.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return
	}
	task.Status = status
	task.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(task)
	}
}

// run executes the full pipeline for one task. It blocks on the concurrency
// gate while the task stays pending.
func (s *Scheduler) run(id uuid.UUID, req models.GenerationRequest) {
	ctx := context.Background()

	// a finished task, failed ones especially, is a good moment to collect
	// temp leftovers from earlier crashed runs
	defer s.retainer.SweepOrphans()

	if err := s.gate.Acquire(ctx, 1); err != nil {
		s.fail(id, req.Variant, time.Now(), fmt.Errorf("could not acquire worker slot: %w", err))
		return
	}
	defer s.gate.Release(1)

	telemetry.CompositionsInFlight.Inc()
	defer telemetry.CompositionsInFlight.Dec()

	started := time.Now()
	s.setStatus(id, models.TaskStatusProcessing, nil)
	logger := s.logger.With(zap.String("task_id", id.String()))

	// fetch narration and overlay images concurrently
	var audioPath string
	imagePaths := make([]string, len(req.ImageURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.fetcher.Download(gctx, req.AudioURL, fetch.KindAudio)
		if err != nil {
			return fmt.Errorf("audio download: %w", err)
		}
		audioPath = p
		return nil
	})
	for i, u := range req.ImageURLs {
		i, u := i, u
		g.Go(func() error {
			p, err := s.fetcher.Download(gctx, u, fetch.KindImage)
			if err != nil {
				return fmt.Errorf("image %d download: %w", i, err)
			}
			imagePaths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.cleanupInputs(audioPath, imagePaths)
		s.fail(id, req.Variant, started, err)
		return
	}
	defer s.cleanupInputs(audioPath, imagePaths)

	audioDuration, err := s.prober.ProbeDuration(ctx, audioPath)
	if err != nil || audioDuration <= 0 {
		logger.Warn("audio probe failed, using fallback duration",
			zap.Float64("fallback", fallbackAudioDuration),
			zap.Error(err),
		)
		audioDuration = fallbackAudioDuration
	}

	// transcription failure is not fatal, the segmenter substitutes a
	// placeholder phrase
	raw, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		logger.Warn("transcription failed, subtitles will be a placeholder", zap.Error(err))
		raw = nil
	}
	segments := services.SegmentTranscript(raw, audioDuration)

	plan, err := services.PlanComposition(req.Variant, audioDuration, imagePaths)
	if err != nil {
		s.fail(id, req.Variant, started, err)
		return
	}

	backgroundPath, err := s.backgrounds.SelectSegment(ctx, req.Category, plan.TotalDuration)
	if err != nil {
		s.fail(id, req.Variant, started, fmt.Errorf("background selection: %w", err))
		return
	}

	resultPath, err := s.compositor.Compose(ctx, services.ComposeJob{
		Variant:        req.Variant,
		AudioPath:      audioPath,
		AudioDuration:  audioDuration,
		Segments:       segments,
		OverlayImages:  imagePaths,
		BackgroundPath: backgroundPath,
	})
	if err != nil {
		s.fail(id, req.Variant, started, fmt.Errorf("composition: %w", err))
		return
	}

	s.retainer.Register(resultPath)
	s.setStatus(id, models.TaskStatusCompleted, func(t *models.Task) {
		t.ResultPath = resultPath
	})
	telemetry.TasksProcessed.WithLabelValues(string(req.Variant), string(models.TaskStatusCompleted)).Inc()
	telemetry.CompositionDuration.WithLabelValues(string(req.Variant)).Observe(time.Since(started).Seconds())
	logger.Info("task completed",
		zap.String("result", resultPath),
		zap.Duration("elapsed", time.Since(started)),
	)
}

func (s *Scheduler) fail(id uuid.UUID, variant models.GenerationVariant, started time.Time, cause error) {
	s.setStatus(id, models.TaskStatusFailed, func(t *models.Task) {
		t.Error = cause.Error()
	})
	telemetry.TasksProcessed.WithLabelValues(string(variant), string(models.TaskStatusFailed)).Inc()
	telemetry.CompositionDuration.WithLabelValues(string(variant)).Observe(time.Since(started).Seconds())
	s.logger.Error("task failed",
		zap.String("task_id", id.String()),
		zap.Error(cause),
	)
}

// cleanupInputs removes downloaded working files once a task is done with
// them. Missing files are fine.
func (s *Scheduler) cleanupInputs(audioPath string, imagePaths []string) {
	if audioPath != "" {
		os.Remove(audioPath)
	}
	for _, p := range imagePaths {
		if p != "" {
			os.Remove(p)
		}
	}
}
