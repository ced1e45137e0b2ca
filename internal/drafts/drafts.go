// Package drafts implements Draft Memory: the latest reply draft per
// conversation thread. Identity is the thread id alone — a save
// overwrites, never appends, and concurrent saves race safely to
// last-write-wins. Two implementations share the contracts.DraftStore
// interface: an in-memory store with JSON snapshot persistence for local
// dev and tests, and a sqlite store for durable deployments.
package drafts

import (
	"fmt"

	"github.com/blociq/comms-engine/pkg/contracts"
)

// DefaultRetentionDays is the cleanup window applied when the caller
// does not supply one.
const DefaultRetentionDays = 30

// ErrNoDraft is returned by Update when no draft exists for the thread.
// Update must fail explicitly, never silently create.
type ErrNoDraft struct {
	ThreadID string
}

func (e *ErrNoDraft) Error() string {
	return fmt.Sprintf("no draft found for thread %s", e.ThreadID)
}

var (
	_ contracts.DraftStore = (*MemoryStore)(nil)
	_ contracts.DraftStore = (*SQLiteStore)(nil)
)
