package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enums

// GenerationVariant selects the overlay count and timing formula for a video.
// The set is closed: adding a variant means adding a new timing policy, not
// extending an existing one.
type GenerationVariant string

const (
	VariantStandard   GenerationVariant = "standard"    // intro image + outro image
	VariantRedditPost GenerationVariant = "reddit_post" // post image + two mid/closing images
)

// OverlayCount returns the number of overlay images the variant requires.
func (v GenerationVariant) OverlayCount() int {
	if v == VariantRedditPost {
		return 3
	}
	return 2
}

// BackgroundCategory maps to a directory of candidate gameplay clips under
// the background root. To add a category: add a constant here and create a
// matching folder with at least one .mp4/.webm/.mov file in it.
type BackgroundCategory string

const (
	CategoryMinecraft BackgroundCategory = "minecraft"
	CategorySubway    BackgroundCategory = "subway"
)

// Valid reports whether c is a registered category.
func (c BackgroundCategory) Valid() bool {
	switch c {
	case CategoryMinecraft, CategorySubway:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TranscriptSegment is one caption phrase with timing from transcription.
// Segments are ordered and non-overlapping; Start/End are seconds from the
// beginning of the narration.
type TranscriptSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the segment length in seconds.
func (s TranscriptSegment) Duration() float64 {
	return s.End - s.Start
}

// API request shapes

// VideoRequest is the wire shape for the standard intro/outro variant.
type VideoRequest struct {
	AudioURL     string             `json:"audio_url"`
	Script       string             `json:"script"`
	GameplayType BackgroundCategory `json:"gameplay_type"`
	IntroImage   string             `json:"intro_image"`
	OutroImage   string             `json:"outro_image"`
}

// RedditVideoRequest is the wire shape for the Reddit-post variant.
type RedditVideoRequest struct {
	AudioURL        string             `json:"audio_url"`
	Script          string             `json:"script"`
	GameplayType    BackgroundCategory `json:"gameplay_type"`
	RedditPostImage string             `json:"reddit_post_image"`
	FirstImage      string             `json:"first_image"`
	SecondImage     string             `json:"second_image"`
}

// GenerationRequest is the resolved internal form of either wire shape.
// The variant is fixed at creation time so nothing downstream needs to
// inspect the request type again. ImageURLs are in overlay order:
// standard = [intro, outro]; reddit_post = [post, first, second].
type GenerationRequest struct {
	Variant   GenerationVariant  `json:"variant"`
	AudioURL  string             `json:"audio_url"`
	Script    string             `json:"script"`
	Category  BackgroundCategory `json:"category"`
	ImageURLs []string           `json:"image_urls"`
}

// NewStandardRequest validates a VideoRequest and resolves it.
func NewStandardRequest(req VideoRequest) (GenerationRequest, error) {
	if req.AudioURL == "" {
		return GenerationRequest{}, fmt.Errorf("audio_url is required")
	}
	if req.IntroImage == "" || req.OutroImage == "" {
		return GenerationRequest{}, fmt.Errorf("intro_image and outro_image are required")
	}
	if !req.GameplayType.Valid() {
		return GenerationRequest{}, fmt.Errorf("unknown gameplay_type %q", req.GameplayType)
	}
	return GenerationRequest{
		Variant:   VariantStandard,
		AudioURL:  req.AudioURL,
		Script:    req.Script,
		Category:  req.GameplayType,
		ImageURLs: []string{req.IntroImage, req.OutroImage},
	}, nil
}

// NewRedditRequest validates a RedditVideoRequest and resolves it.
func NewRedditRequest(req RedditVideoRequest) (GenerationRequest, error) {
	if req.AudioURL == "" {
		return GenerationRequest{}, fmt.Errorf("audio_url is required")
	}
	if req.RedditPostImage == "" || req.FirstImage == "" || req.SecondImage == "" {
		return GenerationRequest{}, fmt.Errorf("reddit_post_image, first_image and second_image are required")
	}
	if !req.GameplayType.Valid() {
		return GenerationRequest{}, fmt.Errorf("unknown gameplay_type %q", req.GameplayType)
	}
	return GenerationRequest{
		Variant:   VariantRedditPost,
		AudioURL:  req.AudioURL,
		Script:    req.Script,
		Category:  req.GameplayType,
		ImageURLs: []string{req.RedditPostImage, req.FirstImage, req.SecondImage},
	}, nil
}

// Task is one generation request tracked through its lifecycle. Tasks are
// owned exclusively by the scheduler; callers only ever see snapshots.
type Task struct {
	ID         uuid.UUID         `json:"id"`
	Status     TaskStatus        `json:"status"`
	Variant    GenerationVariant `json:"variant"`
	Request    GenerationRequest `json:"request"`
	ResultPath string            `json:"result_path,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// API response shapes

type VideoResponse struct {
	VideoURL string `json:"video_url"`
}

type TaskResponse struct {
	ID       uuid.UUID         `json:"id"`
	Status   TaskStatus        `json:"status"`
	Variant  GenerationVariant `json:"variant"`
	VideoURL *string           `json:"video_url,omitempty"`
	Error    *string           `json:"error,omitempty"`
}
