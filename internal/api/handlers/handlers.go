// Package handlers implements the HTTP handlers for the comms engine:
// tone/topic enrichment, template replies, the AI drafting engine,
// draft memory CRUD, and the tone log.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/blociq/comms-engine/internal/drafts"
	"github.com/blociq/comms-engine/internal/engine"
	"github.com/blociq/comms-engine/internal/enrich"
	"github.com/blociq/comms-engine/internal/inbox"
	"github.com/blociq/comms-engine/internal/reply"
	"github.com/blociq/comms-engine/internal/tone"
	"github.com/blociq/comms-engine/pkg/contracts"
	"github.com/blociq/comms-engine/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Directory contracts.ContextProvider
	Engine    *engine.Engine
	Drafts    contracts.DraftStore
	ToneLog   contracts.ToneLogger
}

// New creates a new Handlers instance with all dependencies.
func New(dir contracts.ContextProvider, eng *engine.Engine, ds contracts.DraftStore, tl contracts.ToneLogger) *Handlers {
	return &Handlers{
		Directory: dir,
		Engine:    eng,
		Drafts:    ds,
		ToneLog:   tl,
	}
}

// ── Enrichment & classification ──────────────────────────────

// EnrichRequest is the body of POST /api/v1/enrich.
type EnrichRequest struct {
	FromEmail string `json:"from_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`

	// Raw is a full RFC 822 message. When set it is parsed and its
	// subject/from/body take the place of the explicit fields.
	Raw string `json:"raw,omitempty"`

	// PriorUnresolvedComplaints biases the tone classifier upward when
	// the sender already has an open complaint on record.
	PriorUnresolvedComplaints bool `json:"prior_unresolved_complaints,omitempty"`
}

// applyRaw parses the raw message, if present, into the explicit fields.
func (req *EnrichRequest) applyRaw() error {
	if req.Raw == "" {
		return nil
	}
	parsed, err := inbox.Parse(strings.NewReader(req.Raw))
	if err != nil {
		return err
	}
	req.Subject = parsed.Subject
	req.FromEmail = parsed.From
	req.Body = parsed.Body
	return nil
}

// EnrichResponse bundles the classification result with the directory
// data found for the sender.
type EnrichResponse struct {
	Topic      models.TopicHint  `json:"topic"`
	Tone       models.ToneResult `json:"tone"`
	Enrichment models.Enrichment `json:"enrichment"`
	SessionID  string            `json:"session_id"`
}

func (h *Handlers) Enrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.applyRaw(); err != nil {
		respondError(w, http.StatusBadRequest, "Unparseable raw message: "+err.Error())
		return
	}
	if req.Body == "" && req.Subject == "" {
		respondError(w, http.StatusBadRequest, "subject or body is required")
		return
	}

	toneResult := tone.Classify(req.Body, req.Subject, req.PriorUnresolvedComplaints)
	enrichment, hint := enrich.Build(r.Context(), h.Directory, req.FromEmail, req.Subject, req.Body)

	h.ToneLog.Log(models.ToneLogEntry{
		DetectedTone:       toneResult.Label,
		Confidence:         toneResult.Confidence,
		Reasons:            toneResult.Reasons,
		EscalationRequired: toneResult.EscalationRequired,
		Topic:              hint,
	})

	respondJSON(w, http.StatusOK, EnrichResponse{
		Topic:      hint,
		Tone:       toneResult,
		Enrichment: enrichment,
		SessionID:  h.ToneLog.SessionID(),
	})
}

// TemplateReplyRequest is the body of POST /api/v1/replies/template.
type TemplateReplyRequest struct {
	FromEmail string `json:"from_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`

	// Raw is a full RFC 822 message, parsed the same way as on the
	// enrich route.
	Raw string `json:"raw,omitempty"`

	PriorUnresolvedComplaints bool `json:"prior_unresolved_complaints,omitempty"`

	// ToneOverride replaces the detected tone band before the reply is
	// assembled. The original classification is still logged.
	ToneOverride models.ToneLabel `json:"tone_override,omitempty"`
}

// TemplateReplyResponse is the deterministic reply plus the signals it
// was built from.
type TemplateReplyResponse struct {
	Reply string            `json:"reply"`
	Topic models.TopicHint  `json:"topic"`
	Tone  models.ToneResult `json:"tone"`
}

func (h *Handlers) TemplateReply(w http.ResponseWriter, r *http.Request) {
	var req TemplateReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Raw != "" {
		parsed, err := inbox.Parse(strings.NewReader(req.Raw))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Unparseable raw message: "+err.Error())
			return
		}
		req.Subject = parsed.Subject
		req.FromEmail = parsed.From
		req.Body = parsed.Body
	}
	if req.Body == "" && req.Subject == "" {
		respondError(w, http.StatusBadRequest, "subject or body is required")
		return
	}

	toneResult := tone.Classify(req.Body, req.Subject, req.PriorUnresolvedComplaints)
	enrichment, hint := enrich.Build(r.Context(), h.Directory, req.FromEmail, req.Subject, req.Body)

	entry := models.ToneLogEntry{
		DetectedTone:       toneResult.Label,
		Confidence:         toneResult.Confidence,
		Reasons:            toneResult.Reasons,
		EscalationRequired: toneResult.EscalationRequired,
		Topic:              hint,
	}

	applied := toneResult
	if req.ToneOverride != "" && req.ToneOverride != toneResult.Label {
		entry.UserOverride = req.ToneOverride
		applied.Label = req.ToneOverride
	}
	h.ToneLog.Log(entry)

	text := reply.Build(enrichment, applied, hint)

	respondJSON(w, http.StatusOK, TemplateReplyResponse{
		Reply: text,
		Topic: hint,
		Tone:  toneResult,
	})
}

// ── AI drafting engine ───────────────────────────────────────

func (h *Handlers) RunEngine(w http.ResponseWriter, r *http.Request) {
	var req models.EngineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Mode.Valid() {
		respondError(w, http.StatusBadRequest, "unknown mode: "+string(req.Mode))
		return
	}
	if req.Input == "" {
		respondError(w, http.StatusBadRequest, "input is required")
		return
	}

	resp, err := h.Engine.Run(r.Context(), &req)
	if err != nil {
		if errors.Is(err, engine.ErrNoDraftForTransform) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("mode", string(req.Mode)).Msg("Engine run failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ── Drafts ───────────────────────────────────────────────────

func (h *Handlers) GetDraft(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	draft, err := h.Drafts.Get(r.Context(), threadID)
	if err != nil {
		var nd *drafts.ErrNoDraft
		if errors.As(err, &nd) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

func (h *Handlers) SaveDraft(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	var draft models.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	draft.ThreadID = threadID

	id, err := h.Drafts.Save(r.Context(), &draft)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("thread_id", threadID).Str("draft_id", id).Msg("Draft saved")
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "thread_id": threadID})
}

func (h *Handlers) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	var patch models.DraftPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.Drafts.Update(r.Context(), threadID, patch)
	if err != nil {
		var nd *drafts.ErrNoDraft
		if errors.As(err, &nd) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "thread_id": threadID})
}

func (h *Handlers) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	removed, err := h.Drafts.Delete(r.Context(), threadID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "no draft found for thread "+threadID)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handlers) ListDrafts(w http.ResponseWriter, r *http.Request) {
	all, err := h.Drafts.ListAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if all == nil {
		all = []models.Draft{}
	}
	respondJSON(w, http.StatusOK, all)
}

// CleanupRequest is the body of POST /api/v1/drafts/cleanup.
type CleanupRequest struct {
	Days int `json:"days,omitempty"`
}

func (h *Handlers) CleanupDrafts(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Days <= 0 {
		req.Days = drafts.DefaultRetentionDays
	}

	removed, err := h.Drafts.CleanupOlderThan(r.Context(), req.Days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Int("removed", removed).Int("days", req.Days).Msg("Draft cleanup complete")
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed, "days": req.Days})
}

// ── Tone log ─────────────────────────────────────────────────

func (h *Handlers) LogTone(w http.ResponseWriter, r *http.Request) {
	var entry models.ToneLogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if entry.DetectedTone == "" {
		respondError(w, http.StatusBadRequest, "detected_tone is required")
		return
	}

	h.ToneLog.Log(entry)
	respondJSON(w, http.StatusAccepted, map[string]string{"session_id": h.ToneLog.SessionID()})
}

func (h *Handlers) ToneStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ToneLog.Stats())
}

func (h *Handlers) ClearToneLog(w http.ResponseWriter, r *http.Request) {
	h.ToneLog.Clear()
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
