package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Transcription backend: OpenAI Whisper with an ordered option-fallback
// ladder. Word-level timestamps are preferred; if the richest request shape
// is rejected the next, simpler one is tried before giving up.
// ---------------------------------------------------------------------------

// RawWord is a single transcribed word with timing.
type RawWord struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
}

// RawSegment is a backend-provided segment, optionally with nested words.
type RawSegment struct {
	Text  string
	Start float64
	End   float64
	Words []RawWord
}

// RawTranscript is the union of the three result shapes a transcription
// backend may return: segments (possibly with nested word timestamps), a
// flat word list, or plain text with no timing at all. The segmenter
// tolerates every shape plus a nil transcript.
type RawTranscript struct {
	Text     string
	Segments []RawSegment
	Words    []RawWord
}

// Transcriber is the transcription collaborator seen by the scheduler.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*RawTranscript, error)
}

type WhisperService struct {
	client   *openai.Client
	language string
	logger   *zap.Logger
}

func NewWhisperService(apiKey, language string, logger *zap.Logger) *WhisperService {
	if language == "" {
		language = "en"
	}
	return &WhisperService{
		client:   openai.NewClient(apiKey),
		language: language,
		logger:   logger.Named("whisper"),
	}
}

// transcribeAttempt is one rung of the option ladder. Attempts are tried in
// order; a failure moves to the next rung rather than failing the call.
type transcribeAttempt struct {
	name          string
	format        openai.AudioResponseFormat
	granularities []openai.TranscriptionTimestampGranularity
}

var whisperAttempts = []transcribeAttempt{
	{
		name:   "word timestamps",
		format: openai.AudioResponseFormatVerboseJSON,
		granularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	},
	{
		name:   "segment timestamps",
		format: openai.AudioResponseFormatVerboseJSON,
	},
	{
		name:   "plain text",
		format: openai.AudioResponseFormatJSON,
	},
}

// Transcribe sends the narration audio to Whisper. Returns an error only
// when every rung of the option ladder fails; callers treat that as
// "no timing available" rather than a fatal condition.
func (s *WhisperService) Transcribe(ctx context.Context, audioPath string) (*RawTranscript, error) {
	var lastErr error

	for _, attempt := range whisperAttempts {
		f, err := os.Open(audioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio for transcription: %w", err)
		}

		resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:                  openai.Whisper1,
			Reader:                 f,
			FilePath:               filepath.Base(audioPath), // filename hint for the API
			Format:                 attempt.format,
			Language:               s.language,
			TimestampGranularities: attempt.granularities,
		})
		f.Close()

		if err != nil {
			s.logger.Warn("transcription attempt failed",
				zap.String("attempt", attempt.name),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		raw := rawFromResponse(resp)
		s.logger.Info("transcription complete",
			zap.String("attempt", attempt.name),
			zap.Int("words", len(raw.Words)),
			zap.Int("segments", len(raw.Segments)),
		)
		return raw, nil
	}

	return nil, fmt.Errorf("all transcription attempts failed: %w", lastErr)
}

// rawFromResponse maps the Whisper response onto the richest available shape.
func rawFromResponse(resp openai.AudioResponse) *RawTranscript {
	raw := &RawTranscript{Text: resp.Text}

	if len(resp.Words) > 0 {
		raw.Words = make([]RawWord, 0, len(resp.Words))
		for _, w := range resp.Words {
			raw.Words = append(raw.Words, RawWord{
				Text:       w.Word,
				Start:      w.Start,
				End:        w.End,
				Confidence: 1.0, // word entries carry no confidence score
			})
		}
		return raw
	}

	if len(resp.Segments) > 0 {
		raw.Segments = make([]RawSegment, 0, len(resp.Segments))
		for _, seg := range resp.Segments {
			raw.Segments = append(raw.Segments, RawSegment{
				Text:  seg.Text,
				Start: seg.Start,
				End:   seg.End,
			})
		}
	}

	return raw
}
