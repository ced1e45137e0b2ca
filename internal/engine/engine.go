// Package engine is the drafting engine: it assembles a grounded
// system+user prompt for the requested mode, makes exactly one
// completion call, post-processes the output (subject extraction,
// placeholder detection) and persists the resulting draft.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blociq/comms-engine/internal/drafts"
	"github.com/blociq/comms-engine/pkg/contracts"
	"github.com/blociq/comms-engine/pkg/models"
)

// ErrNoDraftForTransform is returned when transform_reply is requested
// for a thread with no stored draft. The check runs before any
// completion call is made.
var ErrNoDraftForTransform = errors.New("no previous draft found for transformation")

const (
	defaultModel     = "gpt-4"
	defaultMaxTokens = 1200
)

var (
	subjectRe        = regexp.MustCompile(`(?m)^Subject:\s*(.+)$`)
	placeholderTagRe = regexp.MustCompile(`\[PLACEHOLDER:([^\]]+)\]`)
	recipientRe      = regexp.MustCompile(`Dear\s+[A-Z][a-z]+\s+[A-Z][a-z]+`)
	buildingNameRe   = regexp.MustCompile(`[A-Z][a-z]+\s+(House|Court|Building|Manor|Gardens)`)
	postcodeRe       = regexp.MustCompile(`\d{5}\s*[A-Z]{1,2}`)
	htmlTagRe        = regexp.MustCompile(`<[^>]*>`)
)

// Engine coordinates context fetching, completion and draft storage.
type Engine struct {
	provider    contracts.ContextProvider
	completions contracts.CompletionService
	drafts      contracts.DraftStore
	model       string
}

// New creates an engine. model may be empty to use the default.
func New(provider contracts.ContextProvider, completions contracts.CompletionService, drafts contracts.DraftStore, model string) *Engine {
	if model == "" {
		model = defaultModel
	}
	return &Engine{
		provider:    provider,
		completions: completions,
		drafts:      drafts,
		model:       model,
	}
}

// Run executes one engine invocation.
func (e *Engine) Run(ctx context.Context, req *models.EngineRequest) (*models.EngineResponse, error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("unsupported mode %q", req.Mode)
	}

	hints := models.ContextHints{}
	if req.ContextHints != nil {
		hints = *req.ContextHints
	}
	// Partial context is normal; a failed fetch is not.
	data, err := e.provider.FetchContext(ctx, hints)
	if err != nil {
		return nil, fmt.Errorf("context fetch failed: %w", err)
	}

	// Transform needs the prior draft, and must fail fast without one.
	var previous *models.Draft
	if req.Mode == models.ModeTransformReply {
		if req.ThreadID == "" {
			return nil, ErrNoDraftForTransform
		}
		previous, err = e.drafts.Get(ctx, req.ThreadID)
		if err != nil {
			var nd *drafts.ErrNoDraft
			if errors.As(err, &nd) {
				return nil, ErrNoDraftForTransform
			}
			return nil, fmt.Errorf("load draft for transform: %w", err)
		}
		if previous == nil {
			return nil, ErrNoDraftForTransform
		}
	}

	completion, err := e.completions.Complete(ctx, &models.CompletionRequest{
		System:    buildSystemPrompt(req, data, previous),
		User:      buildUserPrompt(req, previous),
		Model:     e.model,
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	if completion.Content == "" {
		return nil, fmt.Errorf("provider %s returned empty response", completion.Provider)
	}

	subject := extractSubject(completion.Content)
	content := cleanContent(completion.Content)
	placeholders := detectPlaceholders(content)

	resp := &models.EngineResponse{
		Content:      content,
		Subject:      subject,
		Placeholders: placeholders,
	}
	if data.Building != nil {
		resp.BuildingName = data.Building.Name
	}
	if data.Leaseholder != nil {
		resp.LeaseholderName = data.Leaseholder.Name
	}
	resp.Sources = data.Sources

	if req.ThreadID != "" && (req.Mode == models.ModeGenerateReply || req.Mode == models.ModeTransformReply) {
		draftID, err := e.saveDraft(ctx, req, subject, content)
		if err != nil {
			return nil, fmt.Errorf("save draft: %w", err)
		}
		resp.DraftID = draftID
	}

	return resp, nil
}

func (e *Engine) saveDraft(ctx context.Context, req *models.EngineRequest, subject, content string) (string, error) {
	if subject == "" && req.EmailData != nil {
		subject = req.EmailData.Subject
	}
	if subject == "" {
		subject = "Draft Email"
	}

	tone := req.Tone
	if tone == "" {
		tone = models.DraftToneCasualChaser
	}

	draftContext := map[string]string{
		"mode":           string(req.Mode),
		"original_input": req.Input,
	}
	if req.ContextHints != nil {
		if req.ContextHints.BuildingID != "" {
			draftContext["building_id"] = req.ContextHints.BuildingID
		}
		if req.ContextHints.LeaseholderID != "" {
			draftContext["leaseholder_id"] = req.ContextHints.LeaseholderID
		}
		if req.ContextHints.UnitNumber != "" {
			draftContext["unit_number"] = req.ContextHints.UnitNumber
		}
	}

	return e.drafts.Save(ctx, &models.Draft{
		ThreadID: req.ThreadID,
		Subject:  subject,
		BodyHTML: content,
		BodyText: stripHTML(content),
		Tone:     string(tone),
		Context:  draftContext,
	})
}

// extractSubject returns the value of a leading "Subject:" line, if any.
func extractSubject(content string) string {
	m := subjectRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// cleanContent removes the subject line from the body.
func cleanContent(content string) string {
	return strings.TrimSpace(subjectRe.ReplaceAllString(content, ""))
}

func stripHTML(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}

// detectPlaceholders lists the gaps a human must fill before sending.
// Explicit [PLACEHOLDER:name] tags win; otherwise heuristics flag a
// missing recipient name, building name or postcode.
func detectPlaceholders(content string) []string {
	if tags := placeholderTagRe.FindAllStringSubmatch(content, -1); len(tags) > 0 {
		out := make([]string, 0, len(tags))
		for _, m := range tags {
			out = append(out, m[1])
		}
		return out
	}

	var out []string
	if !recipientRe.MatchString(content) {
		out = append(out, "recipient_name")
	}
	if !buildingNameRe.MatchString(content) {
		out = append(out, "building_name")
	}
	if !postcodeRe.MatchString(content) {
		out = append(out, "postcode")
	}
	return out
}
