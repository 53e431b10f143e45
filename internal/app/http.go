package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voxlead/voxlead/internal/capture"
	"github.com/voxlead/voxlead/internal/lead"
	"github.com/voxlead/voxlead/internal/review"
)

// Handler exposes the capture pipeline over HTTP for the browser UI. The UI
// drives the machine with POSTs and polls GET /v1/capture for state.
type Handler struct {
	mgr *CaptureManager
}

// NewHandler returns a Handler driving the manager's capture machine.
func NewHandler(mgr *CaptureManager) *Handler {
	return &Handler{mgr: mgr}
}

// Register adds the capture control routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/capture", h.snapshot)
	mux.HandleFunc("POST /v1/capture", h.start)
	mux.HandleFunc("POST /v1/capture/pause", h.pause)
	mux.HandleFunc("POST /v1/capture/resume", h.resume)
	mux.HandleFunc("POST /v1/capture/stop", h.stop)
	mux.HandleFunc("POST /v1/capture/cancel", h.cancel)
	mux.HandleFunc("POST /v1/capture/save", h.save)
	mux.HandleFunc("POST /v1/capture/more", h.addMore)
	mux.HandleFunc("POST /v1/capture/retry-permission", h.retryPermission)
	mux.HandleFunc("POST /v1/capture/language", h.setLanguage)
	mux.HandleFunc("POST /v1/capture/fields/{field}", h.edit)
	mux.HandleFunc("POST /v1/capture/fields/{field}/alternative", h.selectAlternative)
}

// ── Wire payloads ───────────────────────────────────────────────────────────

type entityPayload struct {
	Value        string   `json:"value"`
	Confidence   float64  `json:"confidence"`
	Alternatives []string `json:"alternatives,omitempty"`
}

type fieldIssuePayload struct {
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
	Missing    bool    `json:"missing"`
}

type snapshotPayload struct {
	Phase      string                   `json:"phase"`
	Paused     bool                     `json:"paused"`
	Transcript string                   `json:"transcript"`
	Confidence float64                  `json:"confidence"`
	Language   string                   `json:"language,omitempty"`
	Level      float64                  `json:"level"`
	Entities   map[string]entityPayload `json:"entities,omitempty"`
	Notes      string                   `json:"notes,omitempty"`
	Ready      bool                     `json:"ready"`
	Failing    []fieldIssuePayload      `json:"failing,omitempty"`
	Error      *errorPayload            `json:"error,omitempty"`
}

type errorPayload struct {
	Error   string              `json:"error"`
	Stage   string              `json:"stage,omitempty"`
	Failing []fieldIssuePayload `json:"failing,omitempty"`
}

func snapshotWire(s capture.Snapshot) snapshotPayload {
	p := snapshotPayload{
		Phase:      s.Phase.String(),
		Paused:     s.Paused,
		Transcript: s.Transcript,
		Confidence: s.Confidence,
		Language:   s.Language,
		Level:      s.Level,
	}
	if s.Entities != nil {
		p.Entities = make(map[string]entityPayload, 6)
		for name, ent := range s.Entities.Fields() {
			if ent == nil {
				continue
			}
			p.Entities[name] = entityPayload{
				Value:        ent.Value,
				Confidence:   ent.Confidence,
				Alternatives: ent.Alternatives,
			}
		}
		p.Notes = s.Entities.Notes
		p.Ready = s.Validation.OK
		p.Failing = issuesWire(s.Validation.Failing)
	}
	if s.Err != nil {
		p.Error = &errorPayload{Error: s.Err.Err.Error(), Stage: s.Err.Stage}
	}
	return p
}

func issuesWire(issues []review.FieldIssue) []fieldIssuePayload {
	if len(issues) == 0 {
		return nil
	}
	out := make([]fieldIssuePayload, len(issues))
	for i, iss := range issues {
		out[i] = fieldIssuePayload{Field: iss.Field, Confidence: iss.Confidence, Missing: iss.Missing}
	}
	return out
}

// ── Routes ──────────────────────────────────────────────────────────────────

func (h *Handler) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.Machine().RequestCapture(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

func (h *Handler) pause(w http.ResponseWriter, _ *http.Request) {
	h.mgr.Machine().Pause()
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

func (h *Handler) resume(w http.ResponseWriter, _ *http.Request) {
	h.mgr.Machine().Resume()
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

func (h *Handler) stop(w http.ResponseWriter, _ *http.Request) {
	h.mgr.Machine().Stop()
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

func (h *Handler) cancel(w http.ResponseWriter, _ *http.Request) {
	h.mgr.Machine().Cancel()
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	stored, err := h.mgr.Machine().Save(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) addMore(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.Machine().AddMore(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

// retryPermission clears a cached denial so the next capture prompts again,
// for the "enable in settings, then retry" path.
func (h *Handler) retryPermission(w http.ResponseWriter, _ *http.Request) {
	h.mgr.Machine().Negotiator().Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.mgr.Machine().SetLanguage(req.Language); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.mgr.Machine().Edit(r.PathValue("field"), req.Value); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

func (h *Handler) selectAlternative(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.mgr.Machine().SelectAlternative(r.PathValue("field"), req.Index); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotWire(h.mgr.Snapshot()))
}

// ── Error mapping ───────────────────────────────────────────────────────────

// writeError maps pipeline errors onto HTTP statuses: busy and wrong-phase
// conflicts are 409, a blocked commit is 422 with the failing fields, a
// stage failure is 502 with the stage name, anything else is a 400.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var blocked *lead.ErrNotCommittable
	var perr *capture.PhaseError

	switch {
	case errors.Is(err, capture.ErrBusy), errors.Is(err, capture.ErrNotValidating):
		writeJSON(w, http.StatusConflict, errorPayload{Error: err.Error()})
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusUnprocessableEntity, errorPayload{
			Error:   err.Error(),
			Failing: issuesWire(blocked.Report.Failing),
		})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusBadGateway, errorPayload{Error: perr.Err.Error(), Stage: perr.Stage})
	default:
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}
