package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	genai "google.golang.org/genai"

	"github.com/repairlens/repairlens/internal/domain"
)

const (
	opDetect      = "gemini.detect"
	opAnalyze     = "gemini.analyze"
	opRepairChat  = "gemini.repair_chat"
	opSupportChat = "gemini.support_chat"

	detectFailMsg  = "could not identify items in your submission"
	analyzeFailMsg = "could not analyze the problem"
	chatFailMsg    = "could not get a reply"
)

var errEmptyResponse = fmt.Errorf("empty response from model")

// DetectItems enumerates repairable items in the submission. Identical media
// is served from a small cache so re-detection of the same capture does not
// hit the network.
func (c *Client) DetectItems(ctx context.Context, media *domain.MediaReference) ([]domain.DetectedItem, error) {
	key := mediaDigest(media)
	if cached, ok := c.detectCache.Get(key); ok {
		return cached, nil
	}

	text, err := c.generate(ctx, opDetect, detectFailMsg,
		userContent(mediaPart(media), &genai.Part{Text: detectInstruction}),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   detectionSchema(),
		},
	)
	if err != nil {
		return nil, err
	}

	items, err := parseDetection(text)
	if err != nil {
		return nil, domain.ErrService(opDetect, detectFailMsg, err)
	}

	c.logger.Info("detection complete", slog.Int("items", len(items)))
	c.detectCache.Add(key, items)
	return items, nil
}

// Analyze produces the full repair guide, optionally focused on one detected
// item. The result carries a fresh ID and timestamp; the model never
// supplies identity.
func (c *Client) Analyze(ctx context.Context, media *domain.MediaReference, focus string) (*domain.DiagnosisResult, error) {
	prompt := analyzeGenericPrompt
	if focus != "" {
		prompt = analyzeFocusedPromptPrefix + focus + ". Respond with JSON only."
	}

	text, err := c.generate(ctx, opAnalyze, analyzeFailMsg,
		userContent(mediaPart(media), &genai.Part{Text: prompt}),
		&genai.GenerateContentConfig{
			SystemInstruction: systemContent(advisorPersona),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    diagnosisSchema(),
		},
	)
	if err != nil {
		return nil, err
	}

	result, err := parseDiagnosis(text)
	if err != nil {
		return nil, domain.ErrService(opAnalyze, analyzeFailMsg, err)
	}

	result.ID = uuid.NewString()
	result.CreatedAt = time.Now().UTC()
	result.SourceMedia = media

	c.logger.Info("diagnosis complete",
		slog.String("id", result.ID),
		slog.String("title", result.Title),
		slog.Int("steps", len(result.Steps)),
	)
	return result, nil
}

// RepairChat answers a follow-up question scoped to one diagnosis. The
// system instruction embeds the diagnosis title, problem statement, and a
// condensed step list.
func (c *Client) RepairChat(ctx context.Context, result *domain.DiagnosisResult, transcript domain.Transcript, message string) (string, error) {
	persona := repairChatPersonaPrefix + "Diagnosis: " + result.Title +
		". Problem: " + result.ProblemDescription +
		". Repair steps: " + condenseSteps(result.Steps)
	return c.chat(ctx, opRepairChat, persona, transcript, message)
}

// SupportChat answers an app-usage question with a fixed assistant persona.
func (c *Client) SupportChat(ctx context.Context, transcript domain.Transcript, message string) (string, error) {
	return c.chat(ctx, opSupportChat, supportPersona, transcript, message)
}

func (c *Client) chat(ctx context.Context, op, persona string, transcript domain.Transcript, message string) (string, error) {
	trimmed := c.counter.TrimTranscript(transcript, c.chatBudget)

	contents := make([]*genai.Content, 0, len(trimmed)+1)
	for _, turn := range trimmed {
		role := "user"
		if turn.Speaker == domain.SpeakerAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: message}},
	})

	reply, err := c.generate(ctx, op, chatFailMsg, contents, &genai.GenerateContentConfig{
		SystemInstruction: systemContent(persona),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// condenseSteps flattens the step list to one line per step for the chat
// system instruction.
func condenseSteps(steps []domain.RepairStep) string {
	var sb strings.Builder
	for i, s := range steps {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d. %s", s.Ordinal, s.Instruction)
	}
	return sb.String()
}

func mediaDigest(media *domain.MediaReference) string {
	sum := sha256.Sum256(media.Data)
	return hex.EncodeToString(sum[:])
}

// wire types mirror the declared schemas; pointers distinguish absent fields
// from zero values so missing required fields fail the call.

type wireDetection struct {
	Items *[]wireItem `json:"items"`
}

type wireItem struct {
	ID          *string `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func parseDetection(text string) ([]domain.DetectedItem, error) {
	var wire wireDetection
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, fmt.Errorf("parse detection response: %w", err)
	}
	if wire.Items == nil {
		return nil, fmt.Errorf("detection response missing items")
	}

	items := make([]domain.DetectedItem, 0, len(*wire.Items))
	for i, it := range *wire.Items {
		if it.ID == nil || it.Name == nil || it.Description == nil {
			return nil, fmt.Errorf("detection item %d missing required fields", i)
		}
		if *it.ID == "" || *it.Name == "" {
			return nil, fmt.Errorf("detection item %d has empty id or name", i)
		}
		items = append(items, domain.DetectedItem{
			ID:          *it.ID,
			Name:        *it.Name,
			Description: *it.Description,
		})
	}
	return items, nil
}

type wireDiagnosis struct {
	Title              *string             `json:"title"`
	ProblemDescription *string             `json:"problem_description"`
	RootCause          *string             `json:"root_cause"`
	SafetyWarnings     *[]string           `json:"safety_warnings"`
	ToolsNeeded        *[]string           `json:"tools_needed"`
	Steps              *[]wireStep         `json:"steps"`
	VisualGuideText    *string             `json:"visual_guide_text"`
	Annotations        []domain.Annotation `json:"annotations"`
}

type wireStep struct {
	StepNumber  *int    `json:"step_number"`
	Instruction *string `json:"instruction"`
	Detail      string  `json:"detail"`
}

func parseDiagnosis(text string) (*domain.DiagnosisResult, error) {
	var wire wireDiagnosis
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, fmt.Errorf("parse diagnosis response: %w", err)
	}
	switch {
	case wire.Title == nil || *wire.Title == "":
		return nil, fmt.Errorf("diagnosis response missing title")
	case wire.ProblemDescription == nil:
		return nil, fmt.Errorf("diagnosis response missing problem_description")
	case wire.RootCause == nil:
		return nil, fmt.Errorf("diagnosis response missing root_cause")
	case wire.SafetyWarnings == nil:
		return nil, fmt.Errorf("diagnosis response missing safety_warnings")
	case wire.ToolsNeeded == nil:
		return nil, fmt.Errorf("diagnosis response missing tools_needed")
	case wire.Steps == nil:
		return nil, fmt.Errorf("diagnosis response missing steps")
	case wire.VisualGuideText == nil:
		return nil, fmt.Errorf("diagnosis response missing visual_guide_text")
	}

	// Ordinal gaps or duplicates from the model are carried as received.
	steps := make([]domain.RepairStep, 0, len(*wire.Steps))
	for i, s := range *wire.Steps {
		if s.StepNumber == nil || s.Instruction == nil {
			return nil, fmt.Errorf("diagnosis step %d missing required fields", i)
		}
		steps = append(steps, domain.RepairStep{
			Ordinal:     *s.StepNumber,
			Instruction: *s.Instruction,
			Detail:      s.Detail,
		})
	}

	return &domain.DiagnosisResult{
		Title:              *wire.Title,
		ProblemDescription: *wire.ProblemDescription,
		RootCause:          *wire.RootCause,
		SafetyWarnings:     *wire.SafetyWarnings,
		ToolsNeeded:        *wire.ToolsNeeded,
		Steps:              steps,
		VisualGuideText:    *wire.VisualGuideText,
		Annotations:        wire.Annotations,
	}, nil
}
