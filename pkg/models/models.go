// Package models defines the shared domain types for the BlocIQ comms engine:
// tone and topic classification results, enrichment data, reply drafts, and
// the request/response shapes of the drafting engine.
package models

import (
	"time"
)

// ── Tone ─────────────────────────────────────────────────────

// ToneLabel is the emotional register detected in an inbound message.
// The bands are ordered: neutral < concerned < angry < abusive.
type ToneLabel string

const (
	ToneNeutral   ToneLabel = "neutral"
	ToneConcerned ToneLabel = "concerned"
	ToneAngry     ToneLabel = "angry"
	ToneAbusive   ToneLabel = "abusive"
)

// ToneResult is the output of the tone classifier.
type ToneResult struct {
	Label ToneLabel `json:"label"`

	// Reasons lists the contributing signals, most significant first,
	// capped at five entries.
	Reasons []string `json:"reasons"`

	// Confidence is the normalised raw score, always in [0,1].
	Confidence float64 `json:"confidence"`

	// EscalationRequired is set when a legal-threat or personal-attack
	// pattern matched, or the raw score crossed the escalation threshold.
	// The message must be routed to a human/manager regardless of band.
	EscalationRequired bool `json:"escalation_required"`
}

// ── Topic ────────────────────────────────────────────────────

// TopicHint is the coarse subject-matter classification of a message.
type TopicHint string

const (
	TopicFire       TopicHint = "fire"
	TopicLeak       TopicHint = "leak"
	TopicCosts      TopicHint = "costs"
	TopicEICR       TopicHint = "eicr"
	TopicCompliance TopicHint = "compliance"
	TopicGeneral    TopicHint = "general"
)

// ── Enrichment ───────────────────────────────────────────────

// Well-known fact keys populated by the directory lookups. Facts are
// opaque strings (ISO dates, ticket references, phone numbers); the
// formatter decides how they render.
const (
	FactFRALast          = "fraLast"
	FactFRANext          = "fraNext"
	FactFireDoorLast     = "fireDoorLast"
	FactAlarmServiceLast = "alarmServiceLast"
	FactEICRLast         = "eicrLast"
	FactEICRNext         = "eicrNext"
	FactGasLast          = "gasLast"
	FactGasNext          = "gasNext"
	FactAsbestosLast     = "asbestosLast"
	FactAsbestosNext     = "asbestosNext"
	FactOpenLeakTicket   = "openLeakTicketRef"
	FactEmergencyContact = "emergencyContact"
)

// Enrichment bundles the resident/unit/building data and topic-scoped
// facts used to personalise a reply. Built fresh per inbound message,
// immutable once built, never merged across messages.
type Enrichment struct {
	ResidentName string            `json:"resident_name,omitempty"`
	UnitLabel    string            `json:"unit_label,omitempty"`
	BuildingName string            `json:"building_name,omitempty"`
	Facts        map[string]string `json:"facts,omitempty"`
}

// Fact returns the named fact, empty string when absent.
func (e Enrichment) Fact(key string) string {
	if e.Facts == nil {
		return ""
	}
	return e.Facts[key]
}

// ── Drafts ───────────────────────────────────────────────────

// Draft is a persisted, thread-keyed reply candidate. At most one draft
// exists per ThreadID; a save overwrites, never appends.
type Draft struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text"`
	Tone     string `json:"tone"`

	// Context records the drafting hints the draft was generated from
	// (building/leaseholder ids, mode, original instruction). Opaque to
	// the store.
	Context map[string]string `json:"context,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DraftPatch carries the fields an update may change. Nil fields are
// left untouched.
type DraftPatch struct {
	Subject  *string `json:"subject,omitempty"`
	BodyHTML *string `json:"body_html,omitempty"`
	BodyText *string `json:"body_text,omitempty"`
	Tone     *string `json:"tone,omitempty"`
}

// ── Drafting engine ──────────────────────────────────────────

// Mode selects the drafting engine behaviour.
type Mode string

const (
	ModeAsk              Mode = "ask"
	ModeGenerateReply    Mode = "generate_reply"
	ModeTransformReply   Mode = "transform_reply"
	ModeClassifyDocument Mode = "classify_document"
)

// Valid reports whether m is one of the four supported modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeAsk, ModeGenerateReply, ModeTransformReply, ModeClassifyDocument:
		return true
	}
	return false
}

// DraftTone selects the register of a generated draft.
type DraftTone string

const (
	DraftToneHolding         DraftTone = "Holding"
	DraftToneSolicitorFormal DraftTone = "SolicitorFormal"
	DraftToneResidentNotice  DraftTone = "ResidentNotice"
	DraftToneSupplierRequest DraftTone = "SupplierRequest"
	DraftToneCasualChaser    DraftTone = "CasualChaser"
)

// ContextHints identifies the records the engine should fetch before
// drafting. Every field is individually optional.
type ContextHints struct {
	BuildingID    string   `json:"building_id,omitempty"`
	LeaseholderID string   `json:"leaseholder_id,omitempty"`
	UnitNumber    string   `json:"unit_number,omitempty"`
	EmailID       string   `json:"email_id,omitempty"`
	DocumentIDs   []string `json:"document_ids,omitempty"`
}

// EmailData carries the raw fields of the email being replied to.
type EmailData struct {
	Subject    string   `json:"subject,omitempty"`
	Body       string   `json:"body,omitempty"`
	FromEmail  string   `json:"from_email,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// EngineRequest is one invocation of the drafting engine.
type EngineRequest struct {
	Mode         Mode          `json:"mode"`
	Input        string        `json:"input"`
	ThreadID     string        `json:"thread_id,omitempty"`
	Tone         DraftTone     `json:"tone,omitempty"`
	ContextHints *ContextHints `json:"context_hints,omitempty"`
	EmailData    *EmailData    `json:"email_data,omitempty"`
}

// EngineResponse is the engine's result: the generated text plus the
// post-processing outcome.
type EngineResponse struct {
	Content      string   `json:"content"`
	Subject      string   `json:"subject,omitempty"`
	Placeholders []string `json:"placeholders,omitempty"`
	DraftID      string   `json:"draft_id,omitempty"`

	BuildingName    string   `json:"building_name,omitempty"`
	LeaseholderName string   `json:"leaseholder_name,omitempty"`
	Sources         []string `json:"sources,omitempty"`
}

// ── Context data ─────────────────────────────────────────────

// Building is the building record fetched for drafting context.
type Building struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Address          string `json:"address,omitempty"`
	Postcode         string `json:"postcode,omitempty"`
	UnitCount        int    `json:"unit_count,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

// Leaseholder is the resident record fetched for drafting context.
type Leaseholder struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	UnitNumber string `json:"unit_number,omitempty"`
	BuildingID string `json:"building_id,omitempty"`
}

// ComplianceItem is an outstanding or tracked compliance asset.
type ComplianceItem struct {
	AssetType      string     `json:"asset_type"`
	Status         string     `json:"status,omitempty"`
	LastInspection *time.Time `json:"last_inspection,omitempty"`
	NextDue        *time.Time `json:"next_due,omitempty"`
}

// Document is a stored building document reference.
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// EmailSummary is a related prior email, subject line only.
type EmailSummary struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	FromEmail string `json:"from_email,omitempty"`
}

// ContextData is the best-effort bundle fetched before drafting. Any
// field may be zero; absence of a record is not an error.
type ContextData struct {
	Building    *Building        `json:"building,omitempty"`
	Leaseholder *Leaseholder     `json:"leaseholder,omitempty"`
	Compliance  []ComplianceItem `json:"compliance,omitempty"`
	Documents   []Document       `json:"documents,omitempty"`
	Emails      []EmailSummary   `json:"emails,omitempty"`
	Sources     []string         `json:"sources,omitempty"`
}

// ── Tone log ─────────────────────────────────────────────────

// ToneLogEntry records one classification event, and optionally the
// human override applied to it.
type ToneLogEntry struct {
	Timestamp          time.Time `json:"timestamp"`
	DetectedTone       ToneLabel `json:"detected_tone"`
	Confidence         float64   `json:"confidence"`
	Reasons            []string  `json:"reasons,omitempty"`
	UserOverride       ToneLabel `json:"user_override,omitempty"`
	EscalationRequired bool      `json:"escalation_required"`
	Topic              TopicHint `json:"topic,omitempty"`
	ConversationID     string    `json:"conversation_id,omitempty"`
	SessionID          string    `json:"session_id,omitempty"`
}

// ToneLogStats summarises the rolling tone log.
type ToneLogStats struct {
	Total          int               `json:"total"`
	ByTone         map[ToneLabel]int `json:"by_tone"`
	OverrideRate   float64           `json:"override_rate"`   // percent
	EscalationRate float64           `json:"escalation_rate"` // percent
	MeanConfidence float64           `json:"mean_confidence"`
}

// ── Completion ───────────────────────────────────────────────

// ChatMessage is one turn sent to a completion provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single system+user instruction pair for the
// text-generation collaborator.
type CompletionRequest struct {
	System    string `json:"system"`
	User      string `json:"user"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// CompletionResponse is the provider's generated text plus usage data.
type CompletionResponse struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Content   string `json:"content"`
	LatencyMs int64  `json:"latency_ms"`

	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
}
