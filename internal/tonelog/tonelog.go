// Package tonelog keeps a bounded rolling log of tone classification
// events and human tone overrides, used for tuning the classifier.
// Logging is strictly best-effort: a Log call never fails and never
// blocks the drafting path beyond a mutex acquisition.
package tonelog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blociq/comms-engine/pkg/contracts"
	"github.com/blociq/comms-engine/pkg/models"
)

// DefaultCapacity is the rolling window size (most recent entries kept).
const DefaultCapacity = 100

// LogStore is an in-memory rolling tone log. Safe for concurrent use.
type LogStore struct {
	mu        sync.Mutex
	entries   []models.ToneLogEntry
	capacity  int
	sessionID string // assigned lazily on first use
}

var _ contracts.ToneLogger = (*LogStore)(nil)

// New creates a tone log bounded at capacity entries. A capacity of
// zero or less falls back to DefaultCapacity.
func New(capacity int) *LogStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LogStore{
		entries:  make([]models.ToneLogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Log appends an entry, evicting the oldest once the window is full.
// Missing timestamps and session ids are filled in.
func (l *LogStore) Log(entry models.ToneLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.SessionID == "" {
		entry.SessionID = l.sessionIDLocked()
	}

	if len(l.entries) >= l.capacity {
		// Drop the oldest entry. Shift rather than reslice so the
		// backing array does not grow without bound.
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.capacity-1]
	}
	l.entries = append(l.entries, entry)
}

// Stats summarises the current window.
func (l *LogStore) Stats() models.ToneLogStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := models.ToneLogStats{
		Total:  len(l.entries),
		ByTone: make(map[models.ToneLabel]int),
	}
	if stats.Total == 0 {
		return stats
	}

	var overrides, escalations int
	var confidenceSum float64
	for _, e := range l.entries {
		stats.ByTone[e.DetectedTone]++
		if e.UserOverride != "" && e.UserOverride != e.DetectedTone {
			overrides++
		}
		if e.EscalationRequired {
			escalations++
		}
		confidenceSum += e.Confidence
	}

	total := float64(stats.Total)
	stats.OverrideRate = float64(overrides) / total * 100
	stats.EscalationRate = float64(escalations) / total * 100
	stats.MeanConfidence = confidenceSum / total
	return stats
}

// Clear drops all entries. The session id survives a clear.
func (l *LogStore) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

// SessionID returns the stable id for this process's logging session,
// creating it on first call.
func (l *LogStore) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionIDLocked()
}

func (l *LogStore) sessionIDLocked() string {
	if l.sessionID == "" {
		l.sessionID = uuid.NewString()
	}
	return l.sessionID
}

// Entries returns a copy of the current window, oldest first.
func (l *LogStore) Entries() []models.ToneLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ToneLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
