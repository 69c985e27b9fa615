package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentTranscriptNilProducesPlaceholder(t *testing.T) {
	segs := SegmentTranscript(nil, 30)
	require.Len(t, segs, 1)
	assert.Equal(t, "Transcription failed", segs[0].Text)
	assert.Equal(t, 0.0, segs[0].Start)
	assert.Equal(t, 5.0, segs[0].End)
	assert.Equal(t, 1.0, segs[0].Confidence)
}

func TestSegmentTranscriptPlaceholderClampedToShortAudio(t *testing.T) {
	segs := SegmentTranscript(nil, 3)
	require.Len(t, segs, 1)
	assert.Equal(t, 3.0, segs[0].End)
}

func TestSegmentTranscriptWordsAreContiguous(t *testing.T) {
	words := make([]RawWord, 12)
	for i := range words {
		words[i] = RawWord{
			Text:       fmt.Sprintf("w%d", i),
			Start:      float64(i) * 0.5,
			End:        float64(i)*0.5 + 0.4,
			Confidence: 0.9,
		}
	}

	segs := SegmentTranscript(&RawTranscript{Words: words}, 10)
	require.Len(t, segs, 3)

	assert.Equal(t, 0.0, segs[0].Start)
	for i := 1; i < len(segs); i++ {
		assert.Equal(t, segs[i-1].End, segs[i].Start, "phrase %d must start where %d ended", i, i-1)
	}
	assert.Equal(t, words[len(words)-1].End, segs[len(segs)-1].End)
	assert.Equal(t, "w0 w1 w2 w3 w4", segs[0].Text)
	assert.Equal(t, "w10 w11", segs[2].Text)
	assert.InDelta(t, 0.9, segs[0].Confidence, 1e-9)
}

func TestSegmentTranscriptNestedWordsPreferred(t *testing.T) {
	raw := &RawTranscript{
		Segments: []RawSegment{
			{
				Text:  "hello there friend",
				Start: 0, End: 2,
				Words: []RawWord{
					{Text: "hello", Start: 0, End: 0.5, Confidence: 1},
					{Text: "there", Start: 0.5, End: 1.2, Confidence: 1},
					{Text: "friend", Start: 1.2, End: 2, Confidence: 1},
				},
			},
		},
	}

	segs := SegmentTranscript(raw, 2)
	require.Len(t, segs, 1)
	assert.Equal(t, "hello there friend", segs[0].Text)
	assert.Equal(t, 0.0, segs[0].Start)
	assert.Equal(t, 2.0, segs[0].End)
}

func TestSegmentTranscriptSegmentShape(t *testing.T) {
	raw := &RawTranscript{
		Segments: []RawSegment{
			{Text: " first part ", Start: 0, End: 3.5},
			{Text: "second part", Start: 3.5, End: 7},
			{Text: "   ", Start: 7, End: 8},
		},
	}

	segs := SegmentTranscript(raw, 8)
	require.Len(t, segs, 2)
	assert.Equal(t, "first part", segs[0].Text)
	assert.Equal(t, 3.5, segs[1].Start)
	assert.Equal(t, 1.0, segs[0].Confidence)
}

func TestSegmentTranscriptTextInterpolation(t *testing.T) {
	raw := &RawTranscript{Text: "one two three four five six seven"}

	segs := SegmentTranscript(raw, 14)
	require.Len(t, segs, 2)

	assert.Equal(t, 0.0, segs[0].Start)
	assert.InDelta(t, 10.0, segs[0].End, 1e-9) // 14 * 5/7
	assert.InDelta(t, 10.0, segs[1].Start, 1e-9)
	assert.Equal(t, 14.0, segs[1].End)
	assert.Equal(t, "six seven", segs[1].Text)
}

func TestSegmentTranscriptEmptyTextProducesPlaceholder(t *testing.T) {
	segs := SegmentTranscript(&RawTranscript{Text: "   "}, 30)
	require.Len(t, segs, 1)
	assert.Equal(t, "Transcription failed", segs[0].Text)
}
