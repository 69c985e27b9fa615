// Package cleanup enforces retention on generated videos and removes
// temporary working files the pipeline leaves behind.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bobarin/brainrot/internal/telemetry"
)

const deleteWorkers = 2

// Service tracks generated files and sweeps the output directory on a
// schedule. Registered files are deleted once their retention elapses;
// unregistered temp files (crash leftovers) are deleted once old enough.
type Service struct {
	outputDir string
	retention time.Duration
	orphanAge time.Duration
	interval  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	registry map[string]time.Time // path -> registration time
	queued   map[string]bool      // paths handed to the delete workers
	closed   bool

	cron     *cron.Cron
	deleteCh chan string
	wg       sync.WaitGroup
	logger   *zap.Logger
}

func NewService(outputDir string, retention, orphanAge, interval time.Duration, logger *zap.Logger) *Service {
	return &Service{
		outputDir: outputDir,
		retention: retention,
		orphanAge: orphanAge,
		interval:  interval,
		now:       time.Now,
		registry:  make(map[string]time.Time),
		queued:    make(map[string]bool),
		deleteCh:  make(chan string, 64),
		logger:    logger.Named("cleanup"),
	}
}

// Register marks a produced file for retention tracking.
func (s *Service) Register(path string) {
	s.mu.Lock()
	s.registry[path] = s.now()
	s.mu.Unlock()
}

// Start launches the delete workers and the periodic sweep.
func (s *Service) Start() error {
	for i := 0; i < deleteWorkers; i++ {
		s.wg.Add(1)
		go s.deleteWorker()
	}

	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return fmt.Errorf("failed to schedule cleanup sweep: %w", err)
	}
	s.cron.Start()

	s.logger.Info("cleanup started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention),
		zap.Duration("orphan_age", s.orphanAge),
	)
	return nil
}

// Stop halts the sweep schedule and drains the delete queue. Enqueues
// arriving after Stop are refused rather than racing the channel close.
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	close(s.deleteCh)
	s.wg.Wait()
}

// Sweep runs one pass: expired registered files plus aged orphans. Exposed
// so tests and the scheduler can trigger it directly.
//
// Registry entries stay put until their file is actually gone; a deferred
// or failed deletion is picked up again on the next pass.
func (s *Service) Sweep() {
	now := s.now()

	s.mu.Lock()
	var expired []string
	for path, registered := range s.registry {
		if now.Sub(registered) >= s.retention && !s.queued[path] {
			expired = append(expired, path)
			s.queued[path] = true
		}
	}
	s.mu.Unlock()

	for _, path := range expired {
		if !s.enqueue(path) {
			s.mu.Lock()
			delete(s.queued, path)
			s.mu.Unlock()
		}
	}

	s.SweepOrphans()
}

// SweepOrphans removes temp files and directories old enough that no live
// task can still own them.
func (s *Service) SweepOrphans() {
	now := s.now()
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		s.logger.Warn("orphan sweep failed to read output directory", zap.Error(err))
		return
	}

	s.mu.Lock()
	tracked := make(map[string]bool, len(s.registry))
	for path := range s.registry {
		tracked[path] = true
	}
	s.mu.Unlock()

	for _, e := range entries {
		if !strings.Contains(e.Name(), "temp") {
			continue
		}
		path := filepath.Join(s.outputDir, e.Name())
		if tracked[path] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= s.orphanAge {
			s.enqueue(path)
		}
	}
}

// CleanAllTemp synchronously removes every temp artifact in the output
// directory. Run at startup, before any task exists.
func (s *Service) CleanAllTemp() {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "temp") {
			s.remove(filepath.Join(s.outputDir, e.Name()))
		}
	}
}

// enqueue hands a path to the delete workers without blocking the sweep.
// Returns false when the queue is full or the service is stopping; the
// caller leaves the file for a later pass.
func (s *Service) enqueue(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.deleteCh <- path:
		return true
	default:
		s.logger.Warn("delete queue full, deferring", zap.String("path", path))
		return false
	}
}

func (s *Service) deleteWorker() {
	defer s.wg.Done()
	for path := range s.deleteCh {
		s.processDelete(path)
	}
}

// processDelete attempts the removal and settles the bookkeeping: only a
// path confirmed gone leaves the registry, so a failed removal is
// re-expired and retried by the next sweep.
func (s *Service) processDelete(path string) {
	gone := s.remove(path)
	s.mu.Lock()
	delete(s.queued, path)
	if gone {
		delete(s.registry, path)
	}
	s.mu.Unlock()
}

// remove reports whether the path is gone afterwards.
func (s *Service) remove(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.logger.Debug("already gone", zap.String("path", path))
		return true
	}
	if err := os.RemoveAll(path); err != nil {
		// left in place and still registered, the next sweep retries
		s.logger.Warn("failed to remove", zap.String("path", path), zap.Error(err))
		return false
	}
	telemetry.CleanupDeletions.Inc()
	s.logger.Debug("removed", zap.String("path", path))
	return true
}
