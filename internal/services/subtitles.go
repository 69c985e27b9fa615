package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/bobarin/brainrot/internal/models"
)

// ---------------------------------------------------------------------------
// ASS subtitle generation. One dialogue line per word so each word pops on
// screen on its own, with a short scale/rotate entrance animation.
// ---------------------------------------------------------------------------

const assHeader = `[Script Info]
Title: Generated Subtitles
ScriptType: v4.00+
PlayResX: 1080
PlayResY: 1920
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,160,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,-1,0,0,0,100,100,0,0,1,9,0,8,10,10,600,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// WriteSubtitleFile renders segments into an ASS file at path. Each word in
// a segment gets its own dialogue event spanning an equal share of the
// segment's duration, so words appear one at a time.
func WriteSubtitleFile(path string, segments []models.TranscriptSegment) error {
	var b strings.Builder
	b.WriteString(assHeader)

	for _, seg := range segments {
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}

		wordDur := seg.Duration() / float64(len(words))
		for i, word := range words {
			// End is computed from the segment start each time so
			// rounding error does not accumulate across words.
			start := seg.Start + float64(i)*wordDur
			end := seg.Start + float64(i+1)*wordDur

			b.WriteString(fmt.Sprintf(
				"Dialogue: 0,%s,%s,Default,,0,0,0,,%s%s\n",
				formatASSTime(start),
				formatASSTime(end),
				popAnimation(wordDur),
				escapeASSText(word),
			))
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// popAnimation builds the override block for a word's entrance: scale up and
// tilt during the first sixth of its display time, settle by the first third.
// \t times are in milliseconds.
func popAnimation(wordDur float64) string {
	total := wordDur * 1000
	inEnd := int(total / 6)
	settleEnd := int(total / 3)
	return fmt.Sprintf(
		`{\bord9\shad0\t(0,%d,\fscx125\fscy125\frz-5)\t(%d,%d,\fscx100\fscy100\frz0)}`,
		inEnd, inEnd, settleEnd,
	)
}

// escapeASSText neutralizes characters that ASS treats as markup.
func escapeASSText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "{", `\{`)
	s = strings.ReplaceAll(s, "}", `\}`)
	return s
}

// formatASSTime renders seconds as H:MM:SS.CC (centisecond precision).
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int(seconds*100 + 0.5)
	h := cs / 360000
	cs -= h * 360000
	m := cs / 6000
	cs -= m * 6000
	s := cs / 100
	cs -= s * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}
