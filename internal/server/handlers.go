package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/repairlens/repairlens/internal/domain"
	"github.com/repairlens/repairlens/internal/media"
	"github.com/repairlens/repairlens/internal/render"
	"github.com/repairlens/repairlens/internal/session"
)

type handler struct {
	sessions *session.Store
	adapter  *media.Adapter
	logger   *slog.Logger
}

func (h *handler) mount(r chi.Router) {
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Post("/media", h.captureMedia)
			r.Delete("/media", h.clearCapture)
			r.Post("/analyze", h.confirmAnalyze)
			r.Post("/selection", h.selectItem)
			r.Post("/selection/another", h.selectAnother)
			r.Post("/reset", h.reset)
			r.Get("/history", h.listHistory)
			r.Post("/history/{resultID}", h.selectFromHistory)
			r.Get("/render", h.renderCurrent)
			r.Post("/chat/repair", h.repairChat)
			r.Get("/chat/repair", h.repairTranscript)
			r.Post("/chat/support", h.supportChat)
			r.Get("/chat/support", h.supportTranscript)
			r.Put("/preferences", h.setPreferences)
		})
	})
}

// sessionView is the JSON projection of a machine snapshot.
type sessionView struct {
	ID           string                  `json:"id"`
	State        session.State           `json:"state"`
	MediaPreview string                  `json:"media_preview,omitempty"`
	MediaKind    domain.MediaKind        `json:"media_kind,omitempty"`
	Items        []domain.DetectedItem   `json:"items,omitempty"`
	Result       *domain.DiagnosisResult `json:"result,omitempty"`
	Failure      string                  `json:"failure,omitempty"`
	HistoryLen   int                     `json:"history_len"`
	Loading      bool                    `json:"loading"`
	Preferences  session.Preferences     `json:"preferences"`
}

func viewOf(id string, m *session.Machine) sessionView {
	snap := m.Snapshot()
	return sessionView{
		ID:           id,
		State:        snap.State,
		MediaPreview: snap.MediaPreview,
		MediaKind:    snap.MediaKind,
		Items:        snap.Items,
		Result:       snap.Current,
		Failure:      snap.Failure,
		HistoryLen:   snap.HistoryLen,
		Loading:      snap.Loading,
		Preferences:  snap.Prefs,
	}
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	id, m := h.sessions.Create()
	writeJSON(w, http.StatusCreated, viewOf(id, m))
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

func (h *handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.sessions.Delete(id); err != nil {
		writeErrorMessage(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// captureMedia accepts either a multipart upload under the "file" field or
// a JSON body with a data URL (canvas snapshots, clipboard pastes).
func (h *handler) captureMedia(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var (
		ref *domain.MediaReference
		err error
	)
	if isMultipart(r) {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			writeErrorMessage(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()
		ref, err = h.adapter.Normalize(file, header.Header.Get("Content-Type"))
	} else {
		var body struct {
			DataURL string `json:"data_url"`
		}
		if derr := json.NewDecoder(r.Body).Decode(&body); derr != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ref, err = h.adapter.FromDataURL(body.DataURL)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if err := m.Capture(ref); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

func (h *handler) clearCapture(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	m.ClearCapture()
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

func (h *handler) confirmAnalyze(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	// Gateway failures already moved the machine to failed; the view
	// carries the failure message, so the transition error is the only
	// hard failure here.
	if err := m.ConfirmAnalyze(r.Context()); err != nil {
		var te *session.TransitionError
		if errors.As(err, &te) {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

func (h *handler) selectItem(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	var body struct {
		ItemID string `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := m.SelectItem(r.Context(), body.ItemID); err != nil {
		var te *session.TransitionError
		if errors.As(err, &te) || domain.IsKind(err, domain.KindValidation) {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

func (h *handler) selectAnother(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	if err := m.SelectAnother(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

func (h *handler) reset(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	m.Reset()
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

// historyEntry is the compact listing of one stored diagnosis.
type historyEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	_, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	entries := []historyEntry{}
	for _, res := range m.History() {
		entries = append(entries, historyEntry{
			ID:        res.ID,
			Title:     res.Title,
			CreatedAt: res.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) selectFromHistory(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	if err := m.SelectFromHistory(chi.URLParam(r, "resultID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

func (h *handler) renderCurrent(w http.ResponseWriter, r *http.Request) {
	_, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	current := m.Current()
	if current == nil {
		writeErrorMessage(w, http.StatusNotFound, "no active diagnosis")
		return
	}

	width := queryInt(r, "width", 1000)
	height := queryInt(r, "height", 1000)
	writeJSON(w, http.StatusOK, render.Map(current, width, height))
}

func (h *handler) repairChat(w http.ResponseWriter, r *http.Request) {
	h.chat(w, r, func(m *session.Machine, msg string) (string, error) {
		return m.SendRepairChat(r.Context(), msg)
	})
}

func (h *handler) supportChat(w http.ResponseWriter, r *http.Request) {
	h.chat(w, r, func(m *session.Machine, msg string) (string, error) {
		return m.SendSupportChat(r.Context(), msg)
	})
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request, send func(*session.Machine, string) (string, error)) {
	_, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeErrorMessage(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := send(m, body.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *handler) repairTranscript(w http.ResponseWriter, r *http.Request) {
	_, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.RepairTranscript())
}

func (h *handler) supportTranscript(w http.ResponseWriter, r *http.Request) {
	_, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.SupportTranscript())
}

func (h *handler) setPreferences(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.machine(w, r)
	if !ok {
		return
	}
	var body struct {
		DarkMode bool `json:"dark_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	m.SetDarkMode(body.DarkMode)
	writeJSON(w, http.StatusOK, viewOf(id, m))
}

func (h *handler) machine(w http.ResponseWriter, r *http.Request) (string, *session.Machine, bool) {
	id := chi.URLParam(r, "sessionID")
	m, err := h.sessions.Get(id)
	if err != nil {
		writeErrorMessage(w, http.StatusNotFound, "session not found")
		return "", nil, false
	}
	return id, m, true
}

func isMultipart(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return len(ct) >= 19 && ct[:19] == "multipart/form-data"
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		body := errorBody{}
		body.Error.Kind = string(de.Kind)
		body.Error.Message = de.Message
		writeJSON(w, de.HTTPStatusCode(), body)
		return
	}
	var te *session.TransitionError
	if errors.As(err, &te) {
		writeErrorMessage(w, http.StatusConflict, te.Error())
		return
	}
	writeErrorMessage(w, http.StatusInternalServerError, "internal error")
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	body := errorBody{}
	body.Error.Kind = "request"
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
