package drafts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/blociq/comms-engine/pkg/models"
)

// memSnapshot is the JSON-serializable shape written to disk.
type memSnapshot struct {
	Drafts map[string]*models.Draft `json:"drafts"` // key: thread_id
}

// MemoryStore keeps drafts in a map keyed by thread id. Used for local
// dev and tests. Supports file-based snapshot persistence so drafts
// survive restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]*models.Draft // key: thread_id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save goroutine to stop
}

// NewMemoryStore creates a new in-memory draft store. If dataDir is
// non-empty, drafts are persisted to a JSON file in that directory.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		drafts: make(map[string]*models.Draft),
		saveCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "drafts.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, draft persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Draft memory store configured")
	return m
}

// Save stores the latest draft for the thread, replacing any previous
// one. The draft id is preserved across overwrites of the same thread.
func (m *MemoryStore) Save(_ context.Context, draft *models.Draft) (string, error) {
	m.mu.Lock()
	stored := *draft
	if prev, ok := m.drafts[draft.ThreadID]; ok && stored.ID == "" {
		stored.ID = prev.ID
	}
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.UpdatedAt = time.Now().UTC()
	m.drafts[draft.ThreadID] = &stored
	m.mu.Unlock()
	m.requestSave()
	return stored.ID, nil
}

func (m *MemoryStore) Get(_ context.Context, threadID string) (*models.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[threadID]
	if !ok {
		return nil, &ErrNoDraft{ThreadID: threadID}
	}
	stored := *d
	return &stored, nil
}

// Update applies the non-nil patch fields to the existing draft. It
// fails with ErrNoDraft when the thread has no draft yet — an update
// never creates.
func (m *MemoryStore) Update(_ context.Context, threadID string, patch models.DraftPatch) (string, error) {
	m.mu.Lock()
	d, ok := m.drafts[threadID]
	if !ok {
		m.mu.Unlock()
		return "", &ErrNoDraft{ThreadID: threadID}
	}
	stored := *d
	if patch.Subject != nil {
		stored.Subject = *patch.Subject
	}
	if patch.BodyHTML != nil {
		stored.BodyHTML = *patch.BodyHTML
	}
	if patch.BodyText != nil {
		stored.BodyText = *patch.BodyText
	}
	if patch.Tone != nil {
		stored.Tone = *patch.Tone
	}
	stored.UpdatedAt = time.Now().UTC()
	m.drafts[threadID] = &stored
	m.mu.Unlock()
	m.requestSave()
	return stored.ID, nil
}

func (m *MemoryStore) Delete(_ context.Context, threadID string) (bool, error) {
	m.mu.Lock()
	_, ok := m.drafts[threadID]
	delete(m.drafts, threadID)
	m.mu.Unlock()
	if ok {
		m.requestSave()
	}
	return ok, nil
}

func (m *MemoryStore) ListAll(_ context.Context) ([]models.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.Draft, 0, len(m.drafts))
	for _, d := range m.drafts {
		result = append(result, *d)
	}
	return result, nil
}

// CleanupOlderThan removes drafts last touched before the cutoff.
func (m *MemoryStore) CleanupOlderThan(_ context.Context, days int) (int, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	m.mu.Lock()
	var removed int
	for threadID, d := range m.drafts {
		if d.UpdatedAt.Before(cutoff) {
			delete(m.drafts, threadID)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		log.Info().Int("removed", removed).Int("days", days).Msg("Cleaned up stale drafts")
		m.requestSave()
	}
	return removed, nil
}

// Close stops the save goroutine and forces a final snapshot write.
// Safe to call multiple times (second call is a no-op).
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}
	if m.snapshotPath != "" {
		m.saveSnapshot()
	}
	return nil
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop runs in a goroutine, debouncing save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := memSnapshot{Drafts: m.drafts}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal draft snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write draft snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename draft snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Draft snapshot saved")
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read draft snapshot")
		return
	}

	var snap memSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse draft snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Drafts != nil {
		m.drafts = snap.Drafts
	}
	log.Info().Int("drafts", len(m.drafts)).Str("path", m.snapshotPath).Msg("Draft snapshot loaded")
}
