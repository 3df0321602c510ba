package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/repairlens/repairlens/internal/domain"
)

type analyzeCall struct {
	media *domain.MediaReference
	focus string
}

// mockGateway implements domain.Gateway for testing. The block channels,
// when set, let a test hold a call in flight.
type mockGateway struct {
	mu sync.Mutex

	detectItems []domain.DetectedItem
	detectErr   error
	analyzeErr  error

	repairReply string
	repairErr   error

	supportReply string
	supportErr   error

	analyzeCalls []analyzeCall
	nextID       int

	detectStarted chan struct{}
	detectBlock   chan struct{}
	repairStarted chan struct{}
	repairBlock   chan struct{}
}

func (g *mockGateway) DetectItems(ctx context.Context, media *domain.MediaReference) ([]domain.DetectedItem, error) {
	if g.detectStarted != nil {
		close(g.detectStarted)
	}
	if g.detectBlock != nil {
		<-g.detectBlock
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.detectErr != nil {
		return nil, g.detectErr
	}
	return g.detectItems, nil
}

func (g *mockGateway) Analyze(ctx context.Context, media *domain.MediaReference, focus string) (*domain.DiagnosisResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.analyzeCalls = append(g.analyzeCalls, analyzeCall{media: media, focus: focus})
	if g.analyzeErr != nil {
		return nil, g.analyzeErr
	}
	g.nextID++
	return &domain.DiagnosisResult{
		ID:                 fmt.Sprintf("diag-%d", g.nextID),
		Title:              "Dripping faucet",
		ProblemDescription: "Water drips from the spout.",
		RootCause:          "Worn cartridge seal.",
		SafetyWarnings:     []string{"Shut off the water supply first."},
		ToolsNeeded:        []string{"Adjustable wrench"},
		Steps: []domain.RepairStep{
			{Ordinal: 1, Instruction: "Shut off supply valves", Detail: "Under the sink."},
			{Ordinal: 2, Instruction: "Replace the cartridge"},
		},
		VisualGuideText: "Look at the **cartridge seat**.",
		CreatedAt:       time.Now().UTC(),
		SourceMedia:     media,
	}, nil
}

func (g *mockGateway) RepairChat(ctx context.Context, result *domain.DiagnosisResult, transcript domain.Transcript, message string) (string, error) {
	if g.repairStarted != nil {
		close(g.repairStarted)
	}
	if g.repairBlock != nil {
		<-g.repairBlock
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.repairErr != nil {
		return "", g.repairErr
	}
	return g.repairReply, nil
}

func (g *mockGateway) SupportChat(ctx context.Context, transcript domain.Transcript, message string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.supportErr != nil {
		return "", g.supportErr
	}
	return g.supportReply, nil
}

func (g *mockGateway) calls() []analyzeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]analyzeCall(nil), g.analyzeCalls...)
}

func jpegMedia(size int) *domain.MediaReference {
	return &domain.MediaReference{
		Data:     bytes.Repeat([]byte{0xAB}, size),
		MIMEType: "image/jpeg",
		Kind:     domain.MediaKindImage,
	}
}

func TestCaptureThenResetLeavesNoResidue(t *testing.T) {
	m := NewMachine(&mockGateway{}, nil)

	if err := m.Capture(jpegMedia(64)); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if m.State() != StateCaptured {
		t.Fatalf("state = %s, want captured", m.State())
	}

	m.Reset()

	snap := m.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("state = %s, want idle", snap.State)
	}
	if snap.MediaPreview != "" || len(snap.Items) != 0 || snap.Current != nil || snap.Failure != "" {
		t.Errorf("residual state after reset: %+v", snap)
	}
	if snap.HistoryLen != 0 {
		t.Errorf("history = %d, want 0", snap.HistoryLen)
	}
}

func TestCaptureEmptyPayloadRejectedSilently(t *testing.T) {
	m := NewMachine(&mockGateway{}, nil)

	if err := m.Capture(&domain.MediaReference{MIMEType: "image/png"}); err != nil {
		t.Fatalf("Capture() error = %v, want silent rejection", err)
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s, want idle (no transition)", m.State())
	}
}

func TestCaptureReplacesPreviousCapture(t *testing.T) {
	m := NewMachine(&mockGateway{}, nil)

	first := jpegMedia(8)
	second := jpegMedia(16)
	first.Preview = "data:image/jpeg;base64,first"
	second.Preview = "data:image/jpeg;base64,second"

	m.Capture(first)
	m.Capture(second)

	if got := m.Snapshot().MediaPreview; got != second.Preview {
		t.Errorf("media preview = %q, want the replacement capture", got)
	}
}

func TestScenarioFaucetFlow(t *testing.T) {
	gw := &mockGateway{
		detectItems: []domain.DetectedItem{{ID: "1", Name: "Faucet", Description: "dripping"}},
	}
	m := NewMachine(gw, nil)
	ctx := context.Background()

	if err := m.Capture(jpegMedia(2 * 1024 * 1024)); err != nil {
		t.Fatal(err)
	}
	if err := m.ConfirmAnalyze(ctx); err != nil {
		t.Fatalf("ConfirmAnalyze() error = %v", err)
	}
	if m.State() != StateSelecting {
		t.Fatalf("state = %s, want selecting", m.State())
	}

	if err := m.SelectItem(ctx, "1"); err != nil {
		t.Fatalf("SelectItem() error = %v", err)
	}
	if m.State() != StatePresenting {
		t.Errorf("state = %s, want presenting", m.State())
	}
	if len(m.History()) != 1 {
		t.Errorf("history len = %d, want 1", len(m.History()))
	}

	calls := gw.calls()
	if len(calls) != 1 {
		t.Fatalf("analyze calls = %d, want 1", len(calls))
	}
	if calls[0].focus != "Faucet - dripping" {
		t.Errorf("focus = %q, want %q", calls[0].focus, "Faucet - dripping")
	}

	steps := m.Current().Steps
	if len(steps) != 2 || steps[0].Ordinal != 1 || steps[1].Ordinal != 2 {
		t.Errorf("steps = %+v", steps)
	}
}

func TestEmptyDetectionFallsThroughToUnfocusedDiagnosis(t *testing.T) {
	gw := &mockGateway{}
	m := NewMachine(gw, nil)
	ctx := context.Background()

	media := jpegMedia(64)
	m.Capture(media)
	if err := m.ConfirmAnalyze(ctx); err != nil {
		t.Fatalf("ConfirmAnalyze() error = %v", err)
	}

	if m.State() != StatePresenting {
		t.Fatalf("state = %s, want presenting (selection screen skipped)", m.State())
	}

	calls := gw.calls()
	if len(calls) != 1 {
		t.Fatalf("analyze calls = %d, want 1", len(calls))
	}
	// The request must be structurally identical to a no-focus diagnosis:
	// same media, empty focus context.
	if calls[0].focus != "" {
		t.Errorf("focus = %q, want empty", calls[0].focus)
	}
	if calls[0].media != media {
		t.Error("diagnosis used different media than the capture")
	}
}

func TestDetectionFailure(t *testing.T) {
	gw := &mockGateway{
		detectErr: domain.ErrService("gemini.detect", "could not identify items in your submission", errors.New("boom")),
	}
	m := NewMachine(gw, nil)
	ctx := context.Background()

	m.Capture(jpegMedia(64))
	if err := m.ConfirmAnalyze(ctx); err == nil {
		t.Fatal("expected error")
	}

	snap := m.Snapshot()
	if snap.State != StateFailed {
		t.Fatalf("state = %s, want failed", snap.State)
	}
	if snap.Failure != "could not identify items in your submission" {
		t.Errorf("failure = %q, want the detection-specific message", snap.Failure)
	}

	m.Reset()
	if m.State() != StateIdle {
		t.Errorf("state after reset = %s, want idle", m.State())
	}
}

func TestDiagnosisFailure(t *testing.T) {
	gw := &mockGateway{
		detectItems: []domain.DetectedItem{{ID: "1", Name: "Faucet", Description: "dripping"}},
		analyzeErr:  domain.ErrService("gemini.analyze", "could not analyze the problem", nil),
	}
	m := NewMachine(gw, nil)
	ctx := context.Background()

	m.Capture(jpegMedia(64))
	m.ConfirmAnalyze(ctx)
	if err := m.SelectItem(ctx, "1"); err == nil {
		t.Fatal("expected error")
	}

	snap := m.Snapshot()
	if snap.State != StateFailed {
		t.Errorf("state = %s, want failed", snap.State)
	}
	if snap.Failure != "could not analyze the problem" {
		t.Errorf("failure = %q, want the diagnosis-specific message", snap.Failure)
	}
	if snap.HistoryLen != 0 {
		t.Errorf("history len = %d, want 0 after failure", snap.HistoryLen)
	}
}

func TestSelectAnotherGuard(t *testing.T) {
	// With detected items: presenting -> selecting is legal.
	gw := &mockGateway{
		detectItems: []domain.DetectedItem{{ID: "1", Name: "Faucet", Description: "dripping"}},
	}
	m := NewMachine(gw, nil)
	ctx := context.Background()
	m.Capture(jpegMedia(64))
	m.ConfirmAnalyze(ctx)
	m.SelectItem(ctx, "1")

	if err := m.SelectAnother(); err != nil {
		t.Errorf("SelectAnother() error = %v, want re-entry to selection", err)
	}
	if m.State() != StateSelecting {
		t.Errorf("state = %s, want selecting", m.State())
	}

	// Without detected items (empty-detection fallthrough) it is rejected.
	m2 := NewMachine(&mockGateway{}, nil)
	m2.Capture(jpegMedia(64))
	m2.ConfirmAnalyze(ctx)
	var te *TransitionError
	if err := m2.SelectAnother(); !errors.As(err, &te) {
		t.Errorf("SelectAnother() error = %v, want transition error", err)
	}
	if m2.State() != StatePresenting {
		t.Errorf("state = %s, want unchanged presenting", m2.State())
	}

	// Not reachable from idle at all.
	m3 := NewMachine(&mockGateway{}, nil)
	if err := m3.SelectAnother(); !errors.As(err, &te) {
		t.Errorf("SelectAnother() from idle error = %v, want transition error", err)
	}
}

func TestSelectItemUnknownID(t *testing.T) {
	gw := &mockGateway{
		detectItems: []domain.DetectedItem{{ID: "1", Name: "Faucet", Description: "dripping"}},
	}
	m := NewMachine(gw, nil)
	ctx := context.Background()
	m.Capture(jpegMedia(64))
	m.ConfirmAnalyze(ctx)

	if err := m.SelectItem(ctx, "999"); !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
	if m.State() != StateSelecting {
		t.Errorf("state = %s, want still selecting", m.State())
	}
	if len(gw.calls()) != 0 {
		t.Error("no diagnosis call should have been issued")
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	gw := &mockGateway{}
	m := NewMachine(gw, nil)
	ctx := context.Background()

	m.Capture(jpegMedia(64))
	m.ConfirmAnalyze(ctx)

	original := m.Current()
	m.Reset()

	if len(m.History()) != 1 {
		t.Fatalf("history len = %d, want 1 (reset preserves history)", len(m.History()))
	}

	if err := m.SelectFromHistory(original.ID); err != nil {
		t.Fatalf("SelectFromHistory() error = %v", err)
	}
	if m.State() != StatePresenting {
		t.Errorf("state = %s, want presenting", m.State())
	}

	got := m.Current()
	if got.Title != original.Title ||
		got.ProblemDescription != original.ProblemDescription ||
		got.RootCause != original.RootCause ||
		got.VisualGuideText != original.VisualGuideText {
		t.Error("retrieved diagnosis differs from the stored one")
	}
}

func TestHistoryOrderMostRecentFirst(t *testing.T) {
	gw := &mockGateway{
		detectItems: []domain.DetectedItem{{ID: "1", Name: "Faucet", Description: "dripping"}},
	}
	m := NewMachine(gw, nil)
	ctx := context.Background()

	m.Capture(jpegMedia(64))
	m.ConfirmAnalyze(ctx)
	m.SelectItem(ctx, "1")
	first := m.Current().ID

	m.SelectAnother()
	m.SelectItem(ctx, "")
	second := m.Current().ID

	history := m.History()
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[0].ID != second || history[1].ID != first {
		t.Errorf("history order = [%s %s], want most recent first", history[0].ID, history[1].ID)
	}

	// Selecting from history must not reorder the log.
	m.SelectFromHistory(first)
	history = m.History()
	if history[0].ID != second {
		t.Error("history order changed after selection")
	}
}

func TestSelectFromHistoryUnknownID(t *testing.T) {
	m := NewMachine(&mockGateway{}, nil)
	if err := m.SelectFromHistory("nope"); !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestStaleDetectionDiscardedAfterReset(t *testing.T) {
	gw := &mockGateway{
		detectItems:   []domain.DetectedItem{{ID: "1", Name: "Faucet", Description: "dripping"}},
		detectStarted: make(chan struct{}),
		detectBlock:   make(chan struct{}),
	}
	m := NewMachine(gw, nil)

	m.Capture(jpegMedia(64))

	done := make(chan error, 1)
	go func() {
		done <- m.ConfirmAnalyze(context.Background())
	}()

	<-gw.detectStarted
	m.Reset()
	close(gw.detectBlock)

	if err := <-done; err != nil {
		t.Fatalf("ConfirmAnalyze() error = %v, want silent discard", err)
	}

	snap := m.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("state = %s, want idle (stale result discarded)", snap.State)
	}
	if len(snap.Items) != 0 {
		t.Errorf("items = %d, want none applied", len(snap.Items))
	}
}

func TestStaleRepairChatReplyDiscarded(t *testing.T) {
	gw := &mockGateway{
		repairReply:   "try a new washer",
		repairStarted: make(chan struct{}),
		repairBlock:   make(chan struct{}),
	}
	m := NewMachine(gw, nil)
	ctx := context.Background()

	m.Capture(jpegMedia(64))
	m.ConfirmAnalyze(ctx)
	firstID := m.Current().ID

	m.Reset()
	m.Capture(jpegMedia(64))
	m.ConfirmAnalyze(ctx)
	if m.Current().ID == firstID {
		t.Fatal("test needs two distinct diagnoses")
	}

	done := make(chan string, 1)
	go func() {
		reply, _ := m.SendRepairChat(ctx, "what size washer?")
		done <- reply
	}()

	<-gw.repairStarted
	if err := m.SelectFromHistory(firstID); err != nil {
		t.Fatal(err)
	}
	close(gw.repairBlock)

	if reply := <-done; reply != "" {
		t.Errorf("reply = %q, want stale reply discarded", reply)
	}
	if len(m.RepairTranscript()) != 0 {
		t.Error("stale reply was applied to the transcript")
	}
}

func TestDarkModePreference(t *testing.T) {
	m := NewMachine(&mockGateway{}, nil)

	if m.Snapshot().Prefs.DarkMode {
		t.Error("dark mode should start off")
	}
	m.SetDarkMode(true)
	if !m.Snapshot().Prefs.DarkMode {
		t.Error("dark mode not set")
	}

	// Preferences are not part of the diagnosis flow and survive resets.
	m.Reset()
	if !m.Snapshot().Prefs.DarkMode {
		t.Error("dark mode lost on reset")
	}
}

func TestConfirmAnalyzeWrongState(t *testing.T) {
	m := NewMachine(&mockGateway{}, nil)
	var te *TransitionError
	if err := m.ConfirmAnalyze(context.Background()); !errors.As(err, &te) {
		t.Errorf("error = %v, want transition error", err)
	}
}
