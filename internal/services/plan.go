package services

import (
	"fmt"

	"github.com/bobarin/brainrot/internal/models"
)

// OverlayEvent schedules one image on the output timeline.
type OverlayEvent struct {
	ImagePath string
	Start     float64
	Duration  float64
}

// End is the moment the overlay leaves the frame.
func (e OverlayEvent) End() float64 { return e.Start + e.Duration }

// CompositionPlan fixes every timing decision for a render before any
// ffmpeg invocation. All offsets are on the final output timeline; the
// narration always starts at t=0.
type CompositionPlan struct {
	Variant       models.GenerationVariant
	AudioDuration float64
	TotalDuration float64
	Overlays      []OverlayEvent
}

// PlanComposition computes the output timeline for a variant.
//
// Standard videos run five seconds past the narration. The intro image
// shows at [5, 10] and the outro over the last five seconds of narration.
// Reddit videos run exactly as long as the narration, with the post image
// up front, a middle image centered on the midpoint, and a closing image
// near the end.
func PlanComposition(variant models.GenerationVariant, audioDuration float64, imagePaths []string) (*CompositionPlan, error) {
	if audioDuration <= 0 {
		return nil, fmt.Errorf("audio duration must be positive, got %.3f", audioDuration)
	}
	if want := variant.OverlayCount(); len(imagePaths) != want {
		return nil, fmt.Errorf("variant %q needs %d overlay images, got %d", variant, want, len(imagePaths))
	}

	plan := &CompositionPlan{
		Variant:       variant,
		AudioDuration: audioDuration,
	}

	switch variant {
	case models.VariantStandard:
		plan.TotalDuration = audioDuration + 5
		plan.Overlays = []OverlayEvent{
			{ImagePath: imagePaths[0], Start: 5, Duration: 5},
			{ImagePath: imagePaths[1], Start: audioDuration - 10, Duration: 5},
		}
	case models.VariantRedditPost:
		plan.TotalDuration = audioDuration
		mid := audioDuration / 2
		plan.Overlays = []OverlayEvent{
			{ImagePath: imagePaths[0], Start: 1, Duration: 5},
			{ImagePath: imagePaths[1], Start: mid - 2.5, Duration: 5},
			{ImagePath: imagePaths[2], Start: audioDuration - 10, Duration: 5},
		}
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}

	// Short narrations would push overlays before the start of the video.
	for i := range plan.Overlays {
		if plan.Overlays[i].Start < 0 {
			plan.Overlays[i].Start = 0
		}
	}

	return plan, nil
}
