package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blociq/comms-engine/internal/api"
	"github.com/blociq/comms-engine/internal/api/handlers"
	"github.com/blociq/comms-engine/internal/config"
	"github.com/blociq/comms-engine/internal/drafts"
	"github.com/blociq/comms-engine/internal/engine"
	"github.com/blociq/comms-engine/internal/tonelog"
	"github.com/blociq/comms-engine/pkg/models"
)

type fakeDirectory struct{}

func (f *fakeDirectory) FetchContext(ctx context.Context, hints models.ContextHints) (*models.ContextData, error) {
	data := &models.ContextData{}
	if hints.BuildingID == "b-1" {
		data.Building = &models.Building{ID: "b-1", Name: "Ashworth House"}
		data.Sources = append(data.Sources, "building:b-1")
	}
	return data, nil
}

func (f *fakeDirectory) ResolveSender(ctx context.Context, email string) (*models.Leaseholder, error) {
	if strings.EqualFold(email, "priya.patel@example.com") {
		return &models.Leaseholder{
			ID:         "l-1",
			Name:       "Priya Patel",
			UnitNumber: "Flat 12",
			BuildingID: "b-1",
		}, nil
	}
	return nil, nil
}

func (f *fakeDirectory) BuildingFacts(ctx context.Context, buildingID string, topic models.TopicHint) (map[string]string, error) {
	if topic == models.TopicLeak {
		return map[string]string{models.FactOpenLeakTicket: "WO-4821"}, nil
	}
	return map[string]string{}, nil
}

type fakeCompletions struct {
	content string
	calls   int
}

func (f *fakeCompletions) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	f.calls++
	return &models.CompletionResponse{Provider: "fake", Model: req.Model, Content: f.content}, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	dir := &fakeDirectory{}
	store := drafts.NewMemoryStore("")
	t.Cleanup(func() { store.Close() })

	completions := &fakeCompletions{
		content: "Subject: Leak update\n\nDear Priya,\n\nWe have raised this with our contractor.\n\nKind regards\nBlocIQ Property Management",
	}
	eng := engine.New(dir, completions, store, "gpt-4")
	h := handlers.New(dir, eng, store, tonelog.New(0))

	return api.NewRouter(&config.Config{Version: "test"}, h)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndVersion(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doJSON(t, h, http.MethodGet, "/version", nil)
	var version map[string]string
	if err := json.NewDecoder(w.Body).Decode(&version); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if version["version"] != "test" {
		t.Errorf("version = %q, want %q", version["version"], "test")
	}
}

func TestEnrichClassifiesAndResolvesSender(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/enrich", handlers.EnrichRequest{
		FromEmail: "priya.patel@example.com",
		Subject:   "Leak in my bathroom",
		Body:      "Water is dripping through the ceiling again.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("enrich: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp handlers.EnrichResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Topic != models.TopicLeak {
		t.Errorf("topic = %q, want %q", resp.Topic, models.TopicLeak)
	}
	if resp.Enrichment.ResidentName != "Priya Patel" {
		t.Errorf("resident = %q, want Priya Patel", resp.Enrichment.ResidentName)
	}
	if resp.Enrichment.BuildingName != "Ashworth House" {
		t.Errorf("building = %q, want Ashworth House", resp.Enrichment.BuildingName)
	}
	if got := resp.Enrichment.Fact(models.FactOpenLeakTicket); got != "WO-4821" {
		t.Errorf("leak ticket fact = %q, want WO-4821", got)
	}
	if resp.Tone.Label == "" {
		t.Error("expected a tone label")
	}
	if resp.SessionID == "" {
		t.Error("expected a session id")
	}

	// The classification lands in the tone log.
	w = doJSON(t, h, http.MethodGet, "/api/v1/tonelog/stats", nil)
	var stats models.ToneLogStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("tone log total = %d, want 1", stats.Total)
	}
}

func TestEnrichAcceptsRawMessage(t *testing.T) {
	h := newTestServer(t)

	raw := "From: Priya Patel <priya.patel@example.com>\r\n" +
		"To: office@blociq.example\r\n" +
		"Subject: Leak in my bathroom\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Water is dripping through the ceiling again.\r\n"

	w := doJSON(t, h, http.MethodPost, "/api/v1/enrich", handlers.EnrichRequest{Raw: raw})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp handlers.EnrichResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Topic != models.TopicLeak {
		t.Errorf("topic = %q, want %q", resp.Topic, models.TopicLeak)
	}
	if resp.Enrichment.ResidentName != "Priya Patel" {
		t.Errorf("resident = %q, want Priya Patel", resp.Enrichment.ResidentName)
	}
}

func TestEnrichRejectsEmptyMessage(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/enrich", handlers.EnrichRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTemplateReplyMentionsTopicAndTicket(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/replies/template", handlers.TemplateReplyRequest{
		FromEmail: "priya.patel@example.com",
		Subject:   "Leak in my bathroom",
		Body:      "Water is coming through the ceiling, please help.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp handlers.TemplateReplyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Topic != models.TopicLeak {
		t.Errorf("topic = %q, want %q", resp.Topic, models.TopicLeak)
	}
	if !strings.Contains(resp.Reply, "Priya Patel") {
		t.Errorf("reply should greet the resident:\n%s", resp.Reply)
	}
	if !strings.Contains(resp.Reply, "WO-4821") {
		t.Errorf("reply should reference the open leak ticket:\n%s", resp.Reply)
	}
}

func TestTemplateReplyToneOverrideIsLogged(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/replies/template", handlers.TemplateReplyRequest{
		FromEmail:    "priya.patel@example.com",
		Subject:      "Quick question",
		Body:         "Could you let me know when the next inspection is due? Thanks.",
		ToneOverride: models.ToneConcerned,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/tonelog/stats", nil)
	var stats models.ToneLogStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.OverrideRate != 100 {
		t.Errorf("override rate = %v, want 100", stats.OverrideRate)
	}
}

func TestEngineDraftLifecycle(t *testing.T) {
	h := newTestServer(t)

	// Generate a reply; the draft lands under its thread.
	w := doJSON(t, h, http.MethodPost, "/api/v1/ai", models.EngineRequest{
		Mode:     models.ModeGenerateReply,
		Input:    "Reply to this leak report",
		ThreadID: "t-1",
		EmailData: &models.EmailData{
			Subject:   "Leak in my bathroom",
			Body:      "Water everywhere",
			FromEmail: "priya.patel@example.com",
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ai: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var engResp models.EngineResponse
	if err := json.NewDecoder(w.Body).Decode(&engResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if engResp.Subject != "Leak update" {
		t.Errorf("subject = %q, want %q", engResp.Subject, "Leak update")
	}
	if engResp.DraftID == "" {
		t.Error("expected a draft id")
	}

	// Fetch it back.
	w = doJSON(t, h, http.MethodGet, "/api/v1/drafts/t-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get draft: status = %d, want %d", w.Code, http.StatusOK)
	}
	var draft models.Draft
	if err := json.NewDecoder(w.Body).Decode(&draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft.Subject != "Leak update" {
		t.Errorf("draft subject = %q, want %q", draft.Subject, "Leak update")
	}

	// Patch the subject.
	newSubject := "Leak update (Flat 12)"
	w = doJSON(t, h, http.MethodPatch, "/api/v1/drafts/t-1", models.DraftPatch{Subject: &newSubject})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: status = %d, want %d", w.Code, http.StatusOK)
	}
	w = doJSON(t, h, http.MethodGet, "/api/v1/drafts/t-1", nil)
	if err := json.NewDecoder(w.Body).Decode(&draft); err != nil {
		t.Fatalf("decode patched draft: %v", err)
	}
	if draft.Subject != newSubject {
		t.Errorf("patched subject = %q, want %q", draft.Subject, newSubject)
	}

	// Delete, then it's gone.
	w = doJSON(t, h, http.MethodDelete, "/api/v1/drafts/t-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d, want %d", w.Code, http.StatusOK)
	}
	w = doJSON(t, h, http.MethodGet, "/api/v1/drafts/t-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d, want %d", w.Code, http.StatusNotFound)
	}
	w = doJSON(t, h, http.MethodDelete, "/api/v1/drafts/t-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete again: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestTransformWithoutPriorDraftIs404(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/ai", models.EngineRequest{
		Mode:     models.ModeTransformReply,
		Input:    "Make it more formal",
		ThreadID: "missing-thread",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d: %s", w.Code, http.StatusNotFound, w.Body.String())
	}
}

func TestEngineRejectsUnknownMode(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/ai", map[string]string{
		"mode":  "summarise",
		"input": "anything",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDraftCleanupDefaultsRetention(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/drafts/cleanup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp map[string]int
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["days"] != drafts.DefaultRetentionDays {
		t.Errorf("days = %d, want %d", resp["days"], drafts.DefaultRetentionDays)
	}
	if resp["removed"] != 0 {
		t.Errorf("removed = %d, want 0", resp["removed"])
	}
}

func TestToneLogEndpoints(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/tonelog", models.ToneLogEntry{
		DetectedTone: models.ToneAngry,
		Confidence:   0.9,
		UserOverride: models.ToneConcerned,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("log: status = %d, want %d", w.Code, http.StatusAccepted)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/tonelog", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty entry: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/tonelog/stats", nil)
	var stats models.ToneLogStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("total = %d, want 1", stats.Total)
	}

	w = doJSON(t, h, http.MethodDelete, "/api/v1/tonelog", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear: status = %d, want %d", w.Code, http.StatusOK)
	}
	w = doJSON(t, h, http.MethodGet, "/api/v1/tonelog/stats", nil)
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats after clear: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("total after clear = %d, want 0", stats.Total)
	}
}
