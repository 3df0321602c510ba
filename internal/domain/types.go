// Package domain holds the core types shared by the capture adapter, the
// model gateway, the session state machine and the presentation mapper.
package domain

import (
	"context"
	"time"
)

// MediaKind classifies a captured submission.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// MediaReference is a normalized, transport-ready capture. It is immutable
// once created; a new capture replaces it wholesale.
type MediaReference struct {
	// Data is the raw media content.
	Data []byte

	// MIMEType is the declared type of the content (e.g. "image/jpeg").
	MIMEType string

	// Kind is derived from the MIME type prefix.
	Kind MediaKind

	// Payload is the base64 encoding of Data, ready for transport.
	Payload string

	// Preview is a locally displayable reference (data URL).
	Preview string
}

// Empty reports whether the reference carries no content.
func (m *MediaReference) Empty() bool {
	return m == nil || len(m.Data) == 0
}

// DetectedItem is one repairable object or scenario enumerated by the
// detection call. The set is ephemeral: cleared on reset or new capture.
type DetectedItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RepairStep is one ordered instruction in a repair guide. Ordinals should be
// contiguous from 1 but gaps or duplicates from the external source are
// rendered as received.
type RepairStep struct {
	Ordinal     int    `json:"step_number"`
	Instruction string `json:"instruction"`
	Detail      string `json:"detail"`
}

// BoundingBox is a normalized box on a fixed 1000-unit grid, independent of
// the source media resolution. YMin<=YMax and XMin<=XMax are expected but not
// guaranteed by the external source.
type BoundingBox struct {
	YMin int `json:"y_min"`
	XMin int `json:"x_min"`
	YMax int `json:"y_max"`
	XMax int `json:"x_max"`
}

// Annotation marks a defect location within the source media.
type Annotation struct {
	Label string      `json:"label"`
	Box   BoundingBox `json:"box"`
}

// DiagnosisResult is the full repair guide for one submission. ID and
// CreatedAt are stamped by the gateway, never supplied by the model.
// Immutable after creation.
type DiagnosisResult struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	ProblemDescription string          `json:"problem_description"`
	RootCause          string          `json:"root_cause"`
	SafetyWarnings     []string        `json:"safety_warnings"`
	ToolsNeeded        []string        `json:"tools_needed"`
	Steps              []RepairStep    `json:"steps"`
	VisualGuideText    string          `json:"visual_guide_text"`
	Annotations        []Annotation    `json:"annotations"`
	CreatedAt          time.Time       `json:"created_at"`
	SourceMedia        *MediaReference `json:"-"`
}

// Speaker tags a transcript turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one entry of a conversation transcript.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript is the ordered turn history submitted to a conversational call
// as context.
type Transcript []Turn

// Append returns a transcript extended with one turn. The receiver is not
// modified, so snapshots handed to in-flight calls stay stable.
func (t Transcript) Append(speaker Speaker, text string) Transcript {
	out := make(Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, Turn{Speaker: speaker, Text: text})
}

// Gateway is the boundary to the external generative service. Every
// operation is a single request/response exchange; none returns a partially
// parsed payload.
type Gateway interface {
	// DetectItems enumerates distinct repairable items in the submission.
	DetectItems(ctx context.Context, media *MediaReference) ([]DetectedItem, error)

	// Analyze produces the full repair guide, optionally narrowed by a
	// focus context string. The returned result carries a fresh ID and
	// timestamp and references the given media.
	Analyze(ctx context.Context, media *MediaReference, focus string) (*DiagnosisResult, error)

	// RepairChat answers a follow-up question scoped to one diagnosis.
	RepairChat(ctx context.Context, result *DiagnosisResult, transcript Transcript, message string) (string, error)

	// SupportChat answers an app-usage question. The transcript is
	// session-scoped and independent of the repair flow.
	SupportChat(ctx context.Context, transcript Transcript, message string) (string, error)
}
