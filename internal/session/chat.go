package session

import (
	"context"

	"github.com/repairlens/repairlens/internal/domain"
)

// SendRepairChat asks a follow-up question about the active diagnosis and
// returns the reply. Requires an active diagnosis and no repair reply
// already pending. A service failure appends a fallback apology to the
// transcript instead of failing the session; a reply arriving after the
// active diagnosis changed is discarded silently.
func (m *Machine) SendRepairChat(ctx context.Context, message string) (string, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return "", domain.ErrValidation("session.repair_chat", "no active diagnosis")
	}
	if m.repairPending {
		m.mu.Unlock()
		return "", domain.ErrValidation("session.repair_chat", "a reply is still pending")
	}
	m.repairPending = true
	current := m.current
	transcript := m.repairTranscript
	m.mu.Unlock()

	reply, err := m.gw.RepairChat(ctx, current, transcript, message)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.repairPending = false

	if m.current != current {
		// The user switched diagnoses while the call was in flight.
		m.logger.Debug("discarding stale repair chat reply")
		return "", nil
	}
	if err != nil {
		if domain.IsKind(err, domain.KindConfiguration) {
			return "", err
		}
		m.repairTranscript = m.repairTranscript.
			Append(domain.SpeakerUser, message).
			Append(domain.SpeakerAssistant, FallbackReply)
		return FallbackReply, nil
	}

	m.repairTranscript = m.repairTranscript.
		Append(domain.SpeakerUser, message).
		Append(domain.SpeakerAssistant, reply)
	return reply, nil
}

// SendSupportChat asks an app-usage question. The support transcript is
// session-scoped: it survives resets and diagnosis changes, and is fully
// independent of the repair flow, so a pending repair reply never blocks a
// support send.
func (m *Machine) SendSupportChat(ctx context.Context, message string) (string, error) {
	m.mu.Lock()
	if m.supportPending {
		m.mu.Unlock()
		return "", domain.ErrValidation("session.support_chat", "a reply is still pending")
	}
	m.supportPending = true
	transcript := m.supportTranscript
	m.mu.Unlock()

	reply, err := m.gw.SupportChat(ctx, transcript, message)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.supportPending = false

	if err != nil {
		if domain.IsKind(err, domain.KindConfiguration) {
			return "", err
		}
		m.supportTranscript = m.supportTranscript.
			Append(domain.SpeakerUser, message).
			Append(domain.SpeakerAssistant, FallbackReply)
		return FallbackReply, nil
	}

	m.supportTranscript = m.supportTranscript.
		Append(domain.SpeakerUser, message).
		Append(domain.SpeakerAssistant, reply)
	return reply, nil
}

// RepairTranscript returns a copy of the repair Q&A transcript.
func (m *Machine) RepairTranscript() domain.Transcript {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(domain.Transcript(nil), m.repairTranscript...)
}

// SupportTranscript returns a copy of the support transcript.
func (m *Machine) SupportTranscript() domain.Transcript {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(domain.Transcript(nil), m.supportTranscript...)
}
