package services

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// filter_complex construction. Graphs are assembled from typed chains
// instead of one string blob so each stage can be built and inspected on
// its own.
// ---------------------------------------------------------------------------

// filterChain is one semicolon-delimited stage of a filter_complex graph:
// input labels, a comma-joined filter list, and output labels.
type filterChain struct {
	inputs  []string
	filters []string
	outputs []string
}

func (c filterChain) String() string {
	var b strings.Builder
	for _, in := range c.inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(strings.Join(c.filters, ","))
	for _, out := range c.outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// filterGraph collects chains and renders the full filter_complex value.
type filterGraph struct {
	chains []filterChain
}

func (g *filterGraph) add(inputs []string, filters []string, outputs ...string) {
	g.chains = append(g.chains, filterChain{inputs: inputs, filters: filters, outputs: outputs})
}

func (g *filterGraph) String() string {
	parts := make([]string, 0, len(g.chains))
	for _, c := range g.chains {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ";")
}

// videoGraphSpec names the ffmpeg input indexes the video graph draws from.
type videoGraphSpec struct {
	backgroundInput int
	overlayInputs   []int // parallel to plan.Overlays
	subtitlePath    string
}

const subtitleStyle = "FontName=Arial,FontSize=160,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,Bold=1,Outline=9,Shadow=0,BorderStyle=1,Alignment=8,MarginV=600"

// buildVideoGraph scales the background to the vertical frame, burns in
// subtitles, and layers each overlay image during its scheduled window.
// Returns the graph string and the label of the final video stream.
func buildVideoGraph(plan *CompositionPlan, spec videoGraphSpec) (string, string) {
	g := &filterGraph{}

	g.add(
		[]string{fmt.Sprintf("%d:v", spec.backgroundInput)},
		[]string{
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", frameWidth, frameHeight),
			fmt.Sprintf("crop=%d:%d", frameWidth, frameHeight),
			fmt.Sprintf("subtitles=%s:force_style='%s'", escapeFilterPath(spec.subtitlePath), subtitleStyle),
		},
		"base",
	)

	current := "base"
	for i, ov := range plan.Overlays {
		prepared := fmt.Sprintf("ov%d", i)
		g.add(
			[]string{fmt.Sprintf("%d:v", spec.overlayInputs[i])},
			[]string{
				"scale=900:900:force_original_aspect_ratio=decrease",
				fmt.Sprintf("pad=%d:%d:(ow-iw)/2:300:color=black@0", frameWidth, frameHeight),
				fmt.Sprintf("setpts=PTS-STARTPTS+%s/TB", formatSeconds(ov.Start)),
			},
			prepared,
		)

		next := fmt.Sprintf("v%d", i)
		g.add(
			[]string{current, prepared},
			[]string{fmt.Sprintf("overlay=0:0:enable='between(t,%s,%s)'",
				formatSeconds(ov.Start), formatSeconds(ov.End()))},
			next,
		)
		current = next
	}

	return g.String(), current
}

// audioGraphSpec names the audio inputs available to the mix. A negative
// index (or empty popup list) means that source is absent and its branch is
// skipped. The popup sound is supplied once per overlay because an input
// stream can only feed one filter branch.
type audioGraphSpec struct {
	narrationInput int
	musicInput     int
	popupInputs    []int // parallel to plan.Overlays, empty when unavailable
}

const (
	narrationVolume = 1.5
	musicVolume     = 0.8
	popupVolume     = 5.0
)

// buildAudioGraph mixes narration over background music, with the popup
// sound fired at each overlay's start. Missing music or popup sources just
// drop out of the mix. Returns the graph string and the output label.
func buildAudioGraph(plan *CompositionPlan, spec audioGraphSpec) (string, string) {
	g := &filterGraph{}
	var mixInputs []string

	g.add(
		[]string{fmt.Sprintf("%d:a", spec.narrationInput)},
		[]string{fmt.Sprintf("volume=%.1f", narrationVolume)},
		"narr",
	)
	mixInputs = append(mixInputs, "narr")

	if spec.musicInput >= 0 {
		g.add(
			[]string{fmt.Sprintf("%d:a", spec.musicInput)},
			[]string{fmt.Sprintf("volume=%.1f", musicVolume)},
			"music",
		)
		mixInputs = append(mixInputs, "music")
	}

	if len(spec.popupInputs) == len(plan.Overlays) {
		for i, ov := range plan.Overlays {
			delayMS := int(ov.Start * 1000)
			label := fmt.Sprintf("pop%d", i)
			g.add(
				[]string{fmt.Sprintf("%d:a", spec.popupInputs[i])},
				[]string{
					fmt.Sprintf("volume=%.1f", popupVolume),
					fmt.Sprintf("adelay=%d|%d", delayMS, delayMS),
				},
				label,
			)
			mixInputs = append(mixInputs, label)
		}
	}

	if len(mixInputs) == 1 {
		return g.String(), "narr"
	}

	g.add(
		mixInputs,
		[]string{fmt.Sprintf("amix=inputs=%d:duration=longest:normalize=0", len(mixInputs))},
		"aout",
	)
	return g.String(), "aout"
}
