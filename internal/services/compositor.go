package services

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bobarin/brainrot/internal/models"
	"github.com/bobarin/brainrot/internal/telemetry"
)

// ComposeJob carries everything a render needs. All paths are local files
// prepared by earlier pipeline stages.
type ComposeJob struct {
	Variant        models.GenerationVariant
	AudioPath      string
	AudioDuration  float64
	Segments       []models.TranscriptSegment
	OverlayImages  []string
	BackgroundPath string
}

// Compositor turns a ComposeJob into a finished video file. Rendering runs
// a fixed ladder of tiers, each simpler than the last, so a task always
// produces some output file:
//
//	full        background + subtitles + overlays + mixed audio
//	emergency   first overlay image looped over the raw narration
//	placeholder a stub file marking the failure
type Compositor struct {
	ffmpeg       *FFmpegService
	outputDir    string
	musicDir     string
	soundsDir    string
	preset       string
	crf          int
	audioBitrate string
	counter      atomic.Int64
	logger       *zap.Logger
}

func NewCompositor(ffmpeg *FFmpegService, outputDir, musicDir, soundsDir, preset string, crf int, audioBitrate string, logger *zap.Logger) *Compositor {
	return &Compositor{
		ffmpeg:       ffmpeg,
		outputDir:    outputDir,
		musicDir:     musicDir,
		soundsDir:    soundsDir,
		preset:       preset,
		crf:          crf,
		audioBitrate: audioBitrate,
		logger:       logger.Named("compositor"),
	}
}

type renderTier struct {
	name   string
	render func(ctx context.Context, job ComposeJob, outPath string) error
}

// Compose renders the job, degrading through tiers until one produces a
// non-empty file. The returned path always points at an existing file.
func (c *Compositor) Compose(ctx context.Context, job ComposeJob) (string, error) {
	outPath := c.nextOutputPath(job.Variant, "")

	tiers := []renderTier{
		{name: "full", render: c.renderFull},
		{name: "emergency", render: c.renderEmergency},
		{name: "placeholder", render: c.renderPlaceholder},
	}

	var lastErr error
	for i, tier := range tiers {
		// the placeholder gets a distinct name so a stub is never
		// mistaken for a real video
		path := outPath
		if tier.name == "placeholder" {
			path = c.nextOutputPath(job.Variant, "error_")
		}

		if err := tier.render(ctx, job, path); err != nil {
			c.logger.Warn("render tier failed",
				zap.String("tier", tier.name),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		if err := verifyOutput(path); err != nil {
			c.logger.Warn("render tier produced unusable output",
				zap.String("tier", tier.name),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		if i > 0 {
			c.logger.Warn("composition degraded",
				zap.String("tier", tier.name),
				zap.NamedError("cause", lastErr),
			)
		}
		telemetry.CompositionTier.WithLabelValues(tier.name).Inc()
		return path, nil
	}

	return "", fmt.Errorf("every render tier failed: %w", lastErr)
}

func (c *Compositor) nextOutputPath(variant models.GenerationVariant, prefix string) string {
	base := "video"
	if variant == models.VariantRedditPost {
		base = "reddit_video"
	}
	n := c.counter.Add(1)
	name := fmt.Sprintf("%s%s_%d_%s.mp4", prefix, base, n, uuid.NewString()[:8])
	return filepath.Join(c.outputDir, name)
}

// renderFull is the real composition: one ffmpeg pass combining background,
// burned-in subtitles, timed overlays, and the full audio mix.
func (c *Compositor) renderFull(ctx context.Context, job ComposeJob, outPath string) error {
	plan, err := PlanComposition(job.Variant, job.AudioDuration, job.OverlayImages)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp(c.outputDir, "temp_render_")
	if err != nil {
		return fmt.Errorf("failed to create render workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	subtitlePath := filepath.Join(workDir, "subtitles.ass")
	if err := WriteSubtitleFile(subtitlePath, job.Segments); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}

	// inputs: 0 background, 1 narration, then overlays, then optional
	// music and one popup input per overlay
	inputs := []string{job.BackgroundPath, job.AudioPath}
	overlayInputs := make([]int, len(plan.Overlays))
	for i, ov := range plan.Overlays {
		overlayInputs[i] = len(inputs)
		inputs = append(inputs, ov.ImagePath)
	}

	musicInput := -1
	if music := c.pickMusic(); music != "" {
		musicInput = len(inputs)
		inputs = append(inputs, music)
	}

	var popupInputs []int
	if popup := c.popupPath(); popup != "" {
		for range plan.Overlays {
			popupInputs = append(popupInputs, len(inputs))
			inputs = append(inputs, popup)
		}
	}

	videoGraph, videoOut := buildVideoGraph(plan, videoGraphSpec{
		backgroundInput: 0,
		overlayInputs:   overlayInputs,
		subtitlePath:    subtitlePath,
	})
	audioGraph, audioOut := buildAudioGraph(plan, audioGraphSpec{
		narrationInput: 1,
		musicInput:     musicInput,
		popupInputs:    popupInputs,
	})

	args := []string{"-y"}
	args = append(args, "-stream_loop", "-1", "-i", inputs[0])
	for _, in := range inputs[1:] {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", videoGraph+";"+audioGraph,
		"-map", "["+videoOut+"]",
		"-map", "["+audioOut+"]",
		"-c:v", "libx264",
		"-preset", c.preset,
		"-crf", strconv.Itoa(c.crf),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", c.audioBitrate,
		"-t", formatSeconds(plan.TotalDuration),
		"-movflags", "+faststart",
		"-threads", strconv.Itoa(c.ffmpeg.Threads()),
		outPath,
	)

	return c.ffmpeg.Run(ctx, "ffmpeg", args...)
}

// renderEmergency produces a watchable stand-in: the first overlay image as
// a still over the raw narration track.
func (c *Compositor) renderEmergency(ctx context.Context, job ComposeJob, outPath string) error {
	if len(job.OverlayImages) == 0 {
		return fmt.Errorf("no image available for emergency render")
	}

	args := []string{
		"-y",
		"-loop", "1",
		"-i", job.OverlayImages[0],
		"-i", job.AudioPath,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-preset", c.preset,
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", c.audioBitrate,
		"-shortest",
		"-threads", strconv.Itoa(c.ffmpeg.Threads()),
		outPath,
	}
	return c.ffmpeg.Run(ctx, "ffmpeg", args...)
}

// placeholderStub marks a fully failed render. The bytes are not a valid
// video on purpose.
var placeholderStub = []byte("video generation failed")

func (c *Compositor) renderPlaceholder(_ context.Context, _ ComposeJob, outPath string) error {
	return os.WriteFile(outPath, placeholderStub, 0o644)
}

// pickMusic returns a random track from the music directory, or "" when
// none exist.
func (c *Compositor) pickMusic() string {
	entries, err := os.ReadDir(c.musicDir)
	if err != nil {
		return ""
	}
	var tracks []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".mp3", ".m4a", ".wav", ".ogg":
			tracks = append(tracks, filepath.Join(c.musicDir, e.Name()))
		}
	}
	if len(tracks) == 0 {
		return ""
	}
	return tracks[rand.Intn(len(tracks))]
}

func (c *Compositor) popupPath() string {
	p := filepath.Join(c.soundsDir, "popup.mp3")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output %s is empty", filepath.Base(path))
	}
	return nil
}
