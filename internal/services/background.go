package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bobarin/brainrot/internal/models"
)

// ErrNoBackgrounds means the category directory holds no usable video files.
// This is fatal for a generation task.
var ErrNoBackgrounds = errors.New("no background videos available")

var backgroundExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// probeCache memoizes probed source durations. The cache is bounded; when
// full, one arbitrary entry is evicted to make room.
type probeCache struct {
	mu      sync.RWMutex
	max     int
	entries map[string]float64
}

func newProbeCache(max int) *probeCache {
	if max <= 0 {
		max = 100
	}
	return &probeCache{max: max, entries: make(map[string]float64, max)}
}

func (c *probeCache) get(path string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[path]
	return d, ok
}

func (c *probeCache) put(path string, dur float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; !ok && len(c.entries) >= c.max {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[path] = dur
}

// BackgroundService picks gameplay footage and cuts a segment of the
// requested length from it.
type BackgroundService struct {
	dir       string
	outputDir string
	ffmpeg    *FFmpegService
	preset    string
	crf       int
	cache     *probeCache
	register  func(path string)
	logger    *zap.Logger
}

// NewBackgroundService builds the selector. register is called with every
// produced temp file so the cleanup service can track it; it may be nil.
func NewBackgroundService(dir, outputDir string, ffmpeg *FFmpegService, preset string, crf, cacheSize int, register func(string), logger *zap.Logger) *BackgroundService {
	if register == nil {
		register = func(string) {}
	}
	return &BackgroundService{
		dir:       dir,
		outputDir: outputDir,
		ffmpeg:    ffmpeg,
		preset:    preset,
		crf:       crf,
		cache:     newProbeCache(cacheSize),
		register:  register,
		logger:    logger.Named("background"),
	}
}

// SelectSegment picks a random video from the category directory and
// extracts a random window of target seconds from it. When extraction
// fails, the whole source file is copied instead so composition still has
// footage to work with.
func (s *BackgroundService) SelectSegment(ctx context.Context, category models.BackgroundCategory, target float64) (string, error) {
	candidates, err := s.listCandidates(category)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: category %q", ErrNoBackgrounds, category)
	}

	source := candidates[rand.Intn(len(candidates))]
	duration := s.probe(ctx, source)

	maxStart := duration - target
	if maxStart < 0 {
		maxStart = 0
	}
	start := rand.Float64() * maxStart
	length := target
	if remaining := duration - start; remaining < length {
		length = remaining
	}

	out := filepath.Join(s.outputDir, fmt.Sprintf("temp_background_%s.mp4", uuid.NewString()[:8]))
	s.register(out)

	if err := s.ffmpeg.ExtractSegment(ctx, source, out, start, length, s.preset, s.crf); err != nil {
		s.logger.Warn("segment extraction failed, copying whole source",
			zap.String("source", source),
			zap.Error(err),
		)
		if copyErr := copyFile(source, out); copyErr != nil {
			return "", fmt.Errorf("background fallback copy failed: %w", copyErr)
		}
	}

	return out, nil
}

func (s *BackgroundService) listCandidates(category models.BackgroundCategory) ([]string, error) {
	dir := filepath.Join(s.dir, string(category))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: category %q", ErrNoBackgrounds, category)
		}
		return nil, fmt.Errorf("failed to read background directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if backgroundExtensions[filepath.Ext(e.Name())] {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// probe returns the source duration, caching results. A probe failure falls
// back to a 60 second estimate so selection can proceed.
func (s *BackgroundService) probe(ctx context.Context, path string) float64 {
	if d, ok := s.cache.get(path); ok {
		return d
	}

	d, err := s.ffmpeg.ProbeDuration(ctx, path)
	if err != nil {
		s.logger.Warn("probe failed, assuming 60s", zap.String("path", path), zap.Error(err))
		return 60.0
	}

	s.cache.put(path, d)
	return d
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
