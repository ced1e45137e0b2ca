// Package contracts defines the service interfaces of the comms engine.
//
// The drafting engine depends only on these interfaces; the concrete
// implementations (the sqlite directory, the model client, the draft
// stores) live in internal/ and are wired together in pkg/server.
// Upstream services embedding the engine can substitute their own
// implementations of any collaborator.
package contracts

import (
	"context"

	"github.com/blociq/comms-engine/pkg/models"
)

// ── Context Data Provider ───────────────────────────────────

// ContextProvider fetches the best-effort data bundle used to ground a
// draft. Every hint is optional; valid-but-missing identifiers must not
// produce an error — the corresponding field is simply left empty.
type ContextProvider interface {
	// FetchContext resolves the hinted building/leaseholder/document
	// records. Partial results are normal, not a failure.
	FetchContext(ctx context.Context, hints models.ContextHints) (*models.ContextData, error)

	// ResolveSender maps a sender email address to a leaseholder and
	// their unit/building, when known. Returns (nil, nil) for unknown
	// senders.
	ResolveSender(ctx context.Context, email string) (*models.Leaseholder, error)

	// BuildingFacts returns the topic-scoped fact map for a building
	// (inspection dates, open ticket references, emergency contact).
	BuildingFacts(ctx context.Context, buildingID string, topic models.TopicHint) (map[string]string, error)
}

// ── Text-Generation Provider ────────────────────────────────

// CompletionService is the external text-generation collaborator: a
// system+user instruction pair in, generated text out. Retry and
// timeout policy belong to the implementation, not the caller.
type CompletionService interface {
	Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error)
}

// ── Draft Memory ────────────────────────────────────────────

// DraftStore keeps the latest draft per conversation thread.
// Save overwrites any existing entry for the thread (last-write-wins);
// Update must fail, not create, when no draft exists yet.
type DraftStore interface {
	Save(ctx context.Context, draft *models.Draft) (string, error)
	Get(ctx context.Context, threadID string) (*models.Draft, error)
	Update(ctx context.Context, threadID string, patch models.DraftPatch) (string, error)
	Delete(ctx context.Context, threadID string) (bool, error)
	ListAll(ctx context.Context) ([]models.Draft, error)

	// CleanupOlderThan removes drafts whose UpdatedAt is older than the
	// given number of days and returns how many were removed.
	CleanupOlderThan(ctx context.Context, days int) (int, error)

	Close() error
}

// ── Interaction Logger ──────────────────────────────────────

// ToneLogger records classification events and human overrides in a
// bounded rolling log. Log must never propagate a failure into the
// caller's control flow.
type ToneLogger interface {
	Log(entry models.ToneLogEntry)
	Stats() models.ToneLogStats
	Clear()
	SessionID() string
}
