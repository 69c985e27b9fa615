package services

import (
	"strings"

	"github.com/bobarin/brainrot/internal/models"
)

// Number of words grouped into one subtitle phrase.
const phraseWordCount = 5

const placeholderText = "Transcription failed"

// SegmentTranscript turns a raw transcript of any shape into subtitle
// phrases with timing. A nil or empty transcript yields a single
// placeholder segment so downstream rendering always has input.
//
// Phrases produced from word timestamps are contiguous: every phrase
// starts where the previous one ended (the first at zero), so the
// sequence covers [0, end of last word] with no gaps or overlaps.
func SegmentTranscript(raw *RawTranscript, audioDuration float64) []models.TranscriptSegment {
	if raw == nil {
		return []models.TranscriptSegment{placeholderSegment(audioDuration)}
	}

	if words := collectWords(raw); len(words) > 0 {
		return phrasesFromWords(words)
	}

	if len(raw.Segments) > 0 {
		out := make([]models.TranscriptSegment, 0, len(raw.Segments))
		for _, seg := range raw.Segments {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			out = append(out, models.TranscriptSegment{
				Text:       text,
				Start:      seg.Start,
				End:        seg.End,
				Confidence: 1.0,
			})
		}
		if len(out) > 0 {
			return out
		}
	}

	if text := strings.TrimSpace(raw.Text); text != "" && audioDuration > 0 {
		return phrasesFromText(text, audioDuration)
	}

	return []models.TranscriptSegment{placeholderSegment(audioDuration)}
}

// collectWords flattens whichever word source the transcript carries:
// nested segment words take priority, then the flat word list.
func collectWords(raw *RawTranscript) []RawWord {
	var nested []RawWord
	for _, seg := range raw.Segments {
		nested = append(nested, seg.Words...)
	}
	if len(nested) > 0 {
		return nested
	}
	return raw.Words
}

func phrasesFromWords(words []RawWord) []models.TranscriptSegment {
	var out []models.TranscriptSegment
	prevEnd := 0.0

	for i := 0; i < len(words); i += phraseWordCount {
		j := i + phraseWordCount
		if j > len(words) {
			j = len(words)
		}
		chunk := words[i:j]

		texts := make([]string, 0, len(chunk))
		confSum := 0.0
		for _, w := range chunk {
			texts = append(texts, strings.TrimSpace(w.Text))
			confSum = confSum + w.Confidence
		}

		seg := models.TranscriptSegment{
			Text:       strings.Join(texts, " "),
			Start:      prevEnd,
			End:        chunk[len(chunk)-1].End,
			Confidence: confSum / float64(len(chunk)),
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		out = append(out, seg)
		prevEnd = seg.End
	}

	return out
}

// phrasesFromText spreads words evenly across the audio duration when no
// timing information exists. The final phrase ends exactly at the audio
// duration.
func phrasesFromText(text string, audioDuration float64) []models.TranscriptSegment {
	words := strings.Fields(text)
	n := len(words)
	if n == 0 {
		return []models.TranscriptSegment{placeholderSegment(audioDuration)}
	}

	var out []models.TranscriptSegment
	for i := 0; i < n; i += phraseWordCount {
		j := i + phraseWordCount
		if j > n {
			j = n
		}
		out = append(out, models.TranscriptSegment{
			Text:       strings.Join(words[i:j], " "),
			Start:      audioDuration * float64(i) / float64(n),
			End:        audioDuration * float64(j) / float64(n),
			Confidence: 1.0,
		})
	}

	return out
}

func placeholderSegment(audioDuration float64) models.TranscriptSegment {
	end := 5.0
	if audioDuration > 0 && audioDuration < end {
		end = audioDuration
	}
	return models.TranscriptSegment{
		Text:       placeholderText,
		Start:      0,
		End:        end,
		Confidence: 1.0,
	}
}
