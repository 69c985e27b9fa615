package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Target frame for all produced videos: 1080x1920 portrait.
const (
	frameWidth  = 1080
	frameHeight = 1920
)

// Runner abstracts external tool invocation (ffmpeg, ffprobe) so that
// command construction can be tested without actually encoding anything.
type Runner interface {
	// Run executes the command and waits for completion.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes the command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands via os/exec. Stderr is captured and folded into
// returned errors so encoder diagnostics survive into task error messages.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w (stderr: %s)", name, err, tail(stderr.String(), 512))
	}
	return nil
}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w (stderr: %s)", name, err, tail(stderr.String(), 512))
	}
	return out, nil
}

// tail returns the last n bytes of s; ffmpeg errors end with the useful part.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

// FFmpegService wraps ffprobe/ffmpeg invocations shared by the background
// selector and the compositor.
type FFmpegService struct {
	runner  Runner
	threads int
	logger  *zap.Logger
}

func NewFFmpegService(runner Runner, threads int, logger *zap.Logger) *FFmpegService {
	return &FFmpegService{
		runner:  runner,
		threads: threads,
		logger:  logger.Named("ffmpeg"),
	}
}

// ProbeDuration returns a media file's duration in seconds using ffprobe.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := s.runner.Output(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration %q: %w", string(out), err)
	}
	return dur, nil
}

// ExtractSegment re-encodes [start, start+length] of src into dst with no
// audio track. Fast seek (-ss before -i) keeps extraction cheap on long clips.
func (s *FFmpegService) ExtractSegment(ctx context.Context, src, dst string, start, length float64, preset string, crf int) error {
	args := []string{
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", src,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
		"-an",
		"-threads", strconv.Itoa(s.threads),
		"-loglevel", "error",
		"-y",
		dst,
	}

	s.logger.Debug("extracting background segment",
		zap.String("src", src),
		zap.Float64("start", start),
		zap.Float64("length", length),
	)

	if err := s.runner.Run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg segment extraction: %w", err)
	}
	return nil
}

// Threads exposes the configured encoder thread count for command builders.
func (s *FFmpegService) Threads() int {
	return s.threads
}

// Run forwards to the underlying runner so higher-level builders (the
// compositor) share one tool boundary.
func (s *FFmpegService) Run(ctx context.Context, name string, args ...string) error {
	return s.runner.Run(ctx, name, args...)
}

// formatSeconds renders a seconds value for ffmpeg arguments.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// escapeFilterPath escapes special characters in file paths for FFmpeg
// filter syntax. Filter strings treat colons, backslashes, and single
// quotes specially.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}
