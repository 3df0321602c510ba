// Package render projects a diagnosis result into a renderable overlay
// structure. It is a pure projection: no network calls, no decisions, and
// malformed input degrades to literal rendering instead of failing.
package render

import (
	"github.com/repairlens/repairlens/internal/domain"
)

// gridSize is the fixed normalization grid for annotation boxes.
const gridSize = 1000

// Model is the renderable projection of one diagnosis.
type Model struct {
	Title              string       `json:"title"`
	ProblemDescription string       `json:"problem_description"`
	RootCause          string       `json:"root_cause"`
	SafetyWarnings     []string     `json:"safety_warnings"`
	ToolsNeeded        []string     `json:"tools_needed"`
	Steps              []Step       `json:"steps"`
	VisualGuide        []Span       `json:"visual_guide"`
	Overlays           []OverlayBox `json:"overlays"`
}

// Step mirrors a repair step; ordinals are shown as received.
type Step struct {
	Ordinal     int    `json:"ordinal"`
	Instruction string `json:"instruction"`
	Detail      string `json:"detail"`
}

// OverlayBox is an annotation box in display coordinates (pixels relative
// to the rendered media dimensions).
type OverlayBox struct {
	Label  string `json:"label"`
	Left   int    `json:"left"`
	Top    int    `json:"top"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Map projects a diagnosis onto a display of the given rendered dimensions.
func Map(result *domain.DiagnosisResult, displayWidth, displayHeight int) *Model {
	m := &Model{
		Title:              result.Title,
		ProblemDescription: result.ProblemDescription,
		RootCause:          result.RootCause,
		SafetyWarnings:     result.SafetyWarnings,
		ToolsNeeded:        result.ToolsNeeded,
		VisualGuide:        Tokenize(result.VisualGuideText),
	}
	for _, s := range result.Steps {
		m.Steps = append(m.Steps, Step{Ordinal: s.Ordinal, Instruction: s.Instruction, Detail: s.Detail})
	}
	// Overlapping annotations are independent; z-order follows response order.
	for _, ann := range result.Annotations {
		m.Overlays = append(m.Overlays, overlay(ann, displayWidth, displayHeight))
	}
	return m
}

// overlay converts a grid-normalized box to display coordinates. The source
// does not guarantee min<=max or grid bounds, so both are enforced here.
func overlay(ann domain.Annotation, displayWidth, displayHeight int) OverlayBox {
	yMin := clampGrid(ann.Box.YMin)
	yMax := clampGrid(ann.Box.YMax)
	xMin := clampGrid(ann.Box.XMin)
	xMax := clampGrid(ann.Box.XMax)
	if yMax < yMin {
		yMin, yMax = yMax, yMin
	}
	if xMax < xMin {
		xMin, xMax = xMax, xMin
	}

	left := scale(xMin, displayWidth)
	top := scale(yMin, displayHeight)
	return OverlayBox{
		Label:  ann.Label,
		Left:   left,
		Top:    top,
		Width:  scale(xMax, displayWidth) - left,
		Height: scale(yMax, displayHeight) - top,
	}
}

func clampGrid(v int) int {
	if v < 0 {
		return 0
	}
	if v > gridSize {
		return gridSize
	}
	return v
}

func scale(v, dim int) int {
	return v * dim / gridSize
}
