package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/brainrot/internal/models"
)

func TestPlanCompositionStandard(t *testing.T) {
	plan, err := PlanComposition(models.VariantStandard, 30, []string{"intro.jpg", "outro.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 35.0, plan.TotalDuration)
	require.Len(t, plan.Overlays, 2)

	intro := plan.Overlays[0]
	assert.Equal(t, "intro.jpg", intro.ImagePath)
	assert.Equal(t, 5.0, intro.Start)
	assert.Equal(t, 10.0, intro.End())

	outro := plan.Overlays[1]
	assert.Equal(t, "outro.jpg", outro.ImagePath)
	assert.Equal(t, 20.0, outro.Start)
	assert.Equal(t, 25.0, outro.End())
}

func TestPlanCompositionRedditPost(t *testing.T) {
	plan, err := PlanComposition(models.VariantRedditPost, 60, []string{"post.jpg", "mid.jpg", "close.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 60.0, plan.TotalDuration)
	require.Len(t, plan.Overlays, 3)

	assert.Equal(t, 1.0, plan.Overlays[0].Start)
	assert.Equal(t, 6.0, plan.Overlays[0].End())

	assert.Equal(t, 27.5, plan.Overlays[1].Start)
	assert.Equal(t, 32.5, plan.Overlays[1].End())

	assert.Equal(t, 50.0, plan.Overlays[2].Start)
	assert.Equal(t, 55.0, plan.Overlays[2].End())
}

func TestPlanCompositionShortAudioClampsStarts(t *testing.T) {
	plan, err := PlanComposition(models.VariantRedditPost, 8, []string{"a.jpg", "b.jpg", "c.jpg"})
	require.NoError(t, err)

	for _, ov := range plan.Overlays {
		assert.GreaterOrEqual(t, ov.Start, 0.0)
	}
}

func TestPlanCompositionValidation(t *testing.T) {
	_, err := PlanComposition(models.VariantStandard, 0, []string{"a", "b"})
	assert.Error(t, err)

	_, err = PlanComposition(models.VariantStandard, 30, []string{"a"})
	assert.Error(t, err)

	_, err = PlanComposition(models.VariantRedditPost, 30, []string{"a", "b"})
	assert.Error(t, err)
}
