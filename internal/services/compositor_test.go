package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobarin/brainrot/internal/models"
)

// writingRunner simulates a working ffmpeg by creating the output file,
// which is always the final argument.
type writingRunner struct {
	fakeRunner
	failFirst int // fail this many Run calls before succeeding
}

func (w *writingRunner) Run(ctx context.Context, name string, args ...string) error {
	if err := w.fakeRunner.Run(ctx, name, args...); err != nil {
		return err
	}
	if w.failFirst > 0 {
		w.failFirst--
		return errors.New("simulated encoder failure")
	}
	return os.WriteFile(args[len(args)-1], []byte("encoded"), 0o644)
}

func newTestCompositor(t *testing.T, runner Runner) (*Compositor, string) {
	t.Helper()
	outDir := t.TempDir()
	ff := NewFFmpegService(runner, 2, zap.NewNop())
	c := NewCompositor(ff, outDir, t.TempDir(), t.TempDir(), "ultrafast", 26, "192k", zap.NewNop())
	return c, outDir
}

func testComposeJob(t *testing.T) ComposeJob {
	t.Helper()
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("audio"), 0o644))
	intro := filepath.Join(dir, "intro.jpg")
	require.NoError(t, os.WriteFile(intro, []byte("img"), 0o644))
	outro := filepath.Join(dir, "outro.jpg")
	require.NoError(t, os.WriteFile(outro, []byte("img"), 0o644))
	bg := filepath.Join(dir, "bg.mp4")
	require.NoError(t, os.WriteFile(bg, []byte("bg"), 0o644))

	return ComposeJob{
		Variant:       models.VariantStandard,
		AudioPath:     audio,
		AudioDuration: 30,
		Segments: []models.TranscriptSegment{
			{Text: "hello world", Start: 0, End: 2, Confidence: 1},
		},
		OverlayImages:  []string{intro, outro},
		BackgroundPath: bg,
	}
}

func TestComposeFullTier(t *testing.T) {
	runner := &writingRunner{}
	c, outDir := newTestCompositor(t, runner)

	out, err := c.Compose(context.Background(), testComposeJob(t))
	require.NoError(t, err)

	assert.Equal(t, outDir, filepath.Dir(out))
	assert.True(t, strings.HasPrefix(filepath.Base(out), "video_"))
	require.Len(t, runner.runCalls, 1)

	args := runner.runCalls[0]
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-filter_complex")
	assert.Contains(t, joined, "-t 35.000")
	assert.Contains(t, joined, "-movflags +faststart")
	assert.Contains(t, joined, "-crf 26")

	// render workspace is cleaned up
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "temp_render_"), "workspace %s left behind", e.Name())
	}
}

func TestComposeRedditNaming(t *testing.T) {
	runner := &writingRunner{}
	c, _ := newTestCompositor(t, runner)

	job := testComposeJob(t)
	job.Variant = models.VariantRedditPost
	extra := filepath.Join(t.TempDir(), "third.jpg")
	require.NoError(t, os.WriteFile(extra, []byte("img"), 0o644))
	job.OverlayImages = append(job.OverlayImages, extra)

	out, err := c.Compose(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(out), "reddit_video_"))
}

func TestComposeDegradesToEmergency(t *testing.T) {
	runner := &writingRunner{failFirst: 1}
	c, _ := newTestCompositor(t, runner)

	out, err := c.Compose(context.Background(), testComposeJob(t))
	require.NoError(t, err)
	require.Len(t, runner.runCalls, 2)

	emergency := strings.Join(runner.runCalls[1], " ")
	assert.Contains(t, emergency, "-loop 1")
	assert.Contains(t, emergency, "-tune stillimage")
	assert.Contains(t, emergency, "-shortest")
	assert.NotContains(t, filepath.Base(out), "error_")
}

func TestComposeDegradesToPlaceholder(t *testing.T) {
	runner := &writingRunner{failFirst: 2}
	c, _ := newTestCompositor(t, runner)

	out, err := c.Compose(context.Background(), testComposeJob(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(out), "error_"))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestComposeEmergencyNeedsImage(t *testing.T) {
	runner := &writingRunner{failFirst: 10}
	c, _ := newTestCompositor(t, runner)

	job := testComposeJob(t)
	job.OverlayImages = nil // plan validation fails, emergency has no image

	out, err := c.Compose(context.Background(), job)
	require.NoError(t, err, "placeholder tier must still produce a file")
	assert.True(t, strings.HasPrefix(filepath.Base(out), "error_"))
}
