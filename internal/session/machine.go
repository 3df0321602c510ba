// Package session implements the orchestration state machine for one user
// session: capture, detect, select, analyze, present, plus diagnosis
// history and the two conversation flows.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/repairlens/repairlens/internal/domain"
)

// State is the machine's current position in the flow.
type State string

const (
	StateIdle       State = "idle"
	StateCaptured   State = "captured"
	StateDetecting  State = "detecting"
	StateSelecting  State = "selecting"
	StateAnalyzing  State = "analyzing"
	StatePresenting State = "presenting"
	StateFailed     State = "failed"
)

// FallbackReply is appended to a chat transcript when the model call fails.
// Chat failures never abort the session.
const FallbackReply = "Sorry, I couldn't come up with an answer just now. Please try asking again."

// TransitionError reports an event that is not legal from the current state.
type TransitionError struct {
	From  State
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session: %s not allowed from state %s", e.Event, e.From)
}

// Preferences holds the UI flags owned by the machine; they are only
// reachable through its API.
type Preferences struct {
	DarkMode bool `json:"dark_mode"`
}

// Machine drives one session. All side effects are confined to the two
// gateway calls made during the detecting and analyzing transitions; every
// other transition is a pure local state update.
//
// Stale results: epoch is bumped whenever the user moves the session
// somewhere else (reset, new capture, history selection). A gateway call
// started under an older epoch discards its outcome instead of mutating
// state that no longer belongs to it.
type Machine struct {
	gw     domain.Gateway
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	epoch   uint64
	media   *domain.MediaReference
	items   []domain.DetectedItem
	current *domain.DiagnosisResult
	failure string
	history []*domain.DiagnosisResult

	repairTranscript  domain.Transcript
	supportTranscript domain.Transcript
	repairPending     bool
	supportPending    bool

	prefs Preferences
}

// NewMachine creates an idle session over the given gateway.
func NewMachine(gw domain.Gateway, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{gw: gw, logger: logger, state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot is a read-only view for presentation layers.
type Snapshot struct {
	State          State
	MediaPreview   string
	MediaKind      domain.MediaKind
	Items          []domain.DetectedItem
	Current        *domain.DiagnosisResult
	Failure        string
	HistoryLen     int
	Loading        bool
	RepairPending  bool
	SupportPending bool
	Prefs          Preferences
}

// Snapshot captures the observable session state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:          m.state,
		Items:          append([]domain.DetectedItem(nil), m.items...),
		Current:        m.current,
		Failure:        m.failure,
		HistoryLen:     len(m.history),
		Loading:        m.state == StateDetecting || m.state == StateAnalyzing,
		RepairPending:  m.repairPending,
		SupportPending: m.supportPending,
		Prefs:          m.prefs,
	}
	if m.media != nil {
		snap.MediaPreview = m.media.Preview
		snap.MediaKind = m.media.Kind
	}
	return snap
}

// Capture installs a normalized media reference. Media with no content is
// rejected silently: no transition, no error surfaced. A new capture
// replaces the previous one and clears any detected items.
func (m *Machine) Capture(media *domain.MediaReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle && m.state != StateCaptured {
		return &TransitionError{From: m.state, Event: "capture"}
	}
	if media.Empty() {
		return nil
	}

	m.epoch++
	m.media = media
	m.items = nil
	m.current = nil
	m.failure = ""
	m.state = StateCaptured
	return nil
}

// ClearCapture returns the machine to idle without touching history. For
// this machine the outcome is the same as a reset.
func (m *Machine) ClearCapture() {
	m.Reset()
}

// Reset returns the machine to idle from any state. Captured media,
// detected items, the current result and any failure are cleared; the
// history log and the support transcript are preserved.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.state = StateIdle
	m.media = nil
	m.items = nil
	m.current = nil
	m.failure = ""
	m.repairTranscript = nil
}

// ConfirmAnalyze runs item detection on the captured media. A non-empty
// item list moves to selecting; an empty list behaves exactly as if the
// user had chosen "no specific item" and proceeds straight into diagnosis,
// so the user never lands on an empty selection screen.
func (m *Machine) ConfirmAnalyze(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateCaptured {
		m.mu.Unlock()
		return &TransitionError{From: m.state, Event: "confirmAnalyze"}
	}
	media := m.media
	epoch := m.epoch
	m.state = StateDetecting
	m.mu.Unlock()

	items, err := m.gw.DetectItems(ctx, media)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Debug("discarding stale detection result")
		return nil
	}
	if err != nil {
		m.state = StateFailed
		m.failure = failureMessage(err, "Item detection failed. Please try again.")
		m.mu.Unlock()
		return err
	}
	if len(items) == 0 {
		m.items = nil
		m.state = StateAnalyzing
		m.mu.Unlock()
		return m.runAnalyze(ctx, media, "", epoch)
	}
	m.items = items
	m.state = StateSelecting
	m.mu.Unlock()
	return nil
}

// SelectItem runs the diagnosis, focused on the chosen detected item or
// unfocused when itemID is empty.
func (m *Machine) SelectItem(ctx context.Context, itemID string) error {
	m.mu.Lock()
	if m.state != StateSelecting {
		m.mu.Unlock()
		return &TransitionError{From: m.state, Event: "selectItem"}
	}

	focus := ""
	if itemID != "" {
		found := false
		for _, it := range m.items {
			if it.ID == itemID {
				focus = it.Name + " - " + it.Description
				found = true
				break
			}
		}
		if !found {
			m.mu.Unlock()
			return domain.ErrValidation("session.select", "unknown item")
		}
	}

	media := m.media
	epoch := m.epoch
	m.state = StateAnalyzing
	m.mu.Unlock()

	return m.runAnalyze(ctx, media, focus, epoch)
}

// runAnalyze performs the diagnosis call and, when the session has not
// moved on, installs the result and prepends it to history.
func (m *Machine) runAnalyze(ctx context.Context, media *domain.MediaReference, focus string, epoch uint64) error {
	result, err := m.gw.Analyze(ctx, media, focus)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		m.logger.Debug("discarding stale diagnosis result")
		return nil
	}
	if err != nil {
		m.state = StateFailed
		m.failure = failureMessage(err, "Diagnosis failed. Please try again.")
		return err
	}

	m.current = result
	m.history = append([]*domain.DiagnosisResult{result}, m.history...)
	m.repairTranscript = nil
	m.failure = ""
	m.state = StatePresenting
	return nil
}

// SelectAnother re-enters the selection screen with the already detected
// items; no re-detection happens. Only legal while presenting, and only
// when the prior detection produced a non-empty list.
func (m *Machine) SelectAnother() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePresenting {
		return &TransitionError{From: m.state, Event: "selectAnother"}
	}
	if len(m.items) == 0 {
		return &TransitionError{From: m.state, Event: "selectAnother"}
	}
	m.state = StateSelecting
	return nil
}

// SelectFromHistory presents a stored diagnosis. Allowed from any state;
// history ordering is untouched. The repair transcript starts over because
// the active diagnosis changed; the support transcript is unaffected.
func (m *Machine) SelectFromHistory(resultID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.history {
		if r.ID == resultID {
			m.epoch++
			m.current = r
			m.failure = ""
			m.repairTranscript = nil
			m.state = StatePresenting
			return nil
		}
	}
	return domain.ErrValidation("session.history", "no such diagnosis in history")
}

// History returns the diagnosis log, most recent first.
func (m *Machine) History() []*domain.DiagnosisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.DiagnosisResult(nil), m.history...)
}

// Current returns the active diagnosis, or nil.
func (m *Machine) Current() *domain.DiagnosisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetDarkMode flips the UI preference owned by this machine.
func (m *Machine) SetDarkMode(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs.DarkMode = on
}

// failureMessage prefers the user-facing message of a domain error.
func failureMessage(err error, fallback string) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}
