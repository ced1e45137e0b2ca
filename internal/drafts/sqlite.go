package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/blociq/comms-engine/pkg/models"
)

// SQLiteStore persists drafts in a sqlite database, one row per thread.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the draft database at dbPath and
// runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create drafts directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS drafts (
		thread_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		subject TEXT,
		body_html TEXT,
		body_text TEXT,
		tone TEXT,
		context TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_drafts_updated_at ON drafts(updated_at);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Save upserts the draft keyed by thread id. The draft id assigned on
// first save is preserved across overwrites.
func (s *SQLiteStore) Save(ctx context.Context, draft *models.Draft) (string, error) {
	id := draft.ID
	if id == "" {
		var existing string
		err := s.db.QueryRowContext(ctx, `SELECT id FROM drafts WHERE thread_id = ?`, draft.ThreadID).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			id = uuid.NewString()
		case err != nil:
			return "", fmt.Errorf("failed to look up draft: %w", err)
		default:
			id = existing
		}
	}

	contextJSON, err := marshalContext(draft.Context)
	if err != nil {
		return "", err
	}

	query := `
	INSERT INTO drafts (thread_id, id, subject, body_html, body_text, tone, context, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(thread_id) DO UPDATE SET
		id = excluded.id,
		subject = excluded.subject,
		body_html = excluded.body_html,
		body_text = excluded.body_text,
		tone = excluded.tone,
		context = excluded.context,
		updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		draft.ThreadID, id, draft.Subject, draft.BodyHTML, draft.BodyText,
		draft.Tone, contextJSON, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save draft: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, threadID string) (*models.Draft, error) {
	query := `SELECT thread_id, id, subject, body_html, body_text, tone, context, updated_at
		FROM drafts WHERE thread_id = ?`

	draft, err := scanDraft(s.db.QueryRowContext(ctx, query, threadID))
	if err == sql.ErrNoRows {
		return nil, &ErrNoDraft{ThreadID: threadID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query draft: %w", err)
	}
	return draft, nil
}

func (s *SQLiteStore) Update(ctx context.Context, threadID string, patch models.DraftPatch) (string, error) {
	draft, err := s.Get(ctx, threadID)
	if err != nil {
		return "", err
	}

	if patch.Subject != nil {
		draft.Subject = *patch.Subject
	}
	if patch.BodyHTML != nil {
		draft.BodyHTML = *patch.BodyHTML
	}
	if patch.BodyText != nil {
		draft.BodyText = *patch.BodyText
	}
	if patch.Tone != nil {
		draft.Tone = *patch.Tone
	}
	return s.Save(ctx, draft)
}

func (s *SQLiteStore) Delete(ctx context.Context, threadID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE thread_id = ?`, threadID)
	if err != nil {
		return false, fmt.Errorf("failed to delete draft: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]models.Draft, error) {
	query := `SELECT thread_id, id, subject, body_html, body_text, tone, context, updated_at
		FROM drafts ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []models.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, *draft)
	}
	return drafts, rows.Err()
}

func (s *SQLiteStore) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE updated_at < ?`, cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up drafts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// scanDraft handles nullable columns when scanning a row.
func scanDraft(scanner interface{ Scan(...any) error }) (*models.Draft, error) {
	var d models.Draft
	var subject, bodyHTML, bodyText, tone, contextJSON sql.NullString
	var updatedAt string

	err := scanner.Scan(&d.ThreadID, &d.ID, &subject, &bodyHTML, &bodyText, &tone, &contextJSON, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.Subject = subject.String
	d.BodyHTML = bodyHTML.String
	d.BodyText = bodyText.String
	d.Tone = tone.String
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &d.Context); err != nil {
			return nil, fmt.Errorf("failed to parse draft context: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		d.UpdatedAt = t
	} else if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		d.UpdatedAt = t
	}
	return &d, nil
}

func marshalContext(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal draft context: %w", err)
	}
	return string(data), nil
}
