// Package directory is the property directory backing the context data
// provider: buildings, units, leaseholders, compliance assets, documents
// and prior emails in a sqlite database.
//
// All lookups are best-effort. A valid-but-unknown identifier yields an
// empty field, not an error; a failed sub-query is logged and skipped so
// the drafting path degrades instead of aborting.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/blociq/comms-engine/pkg/contracts"
	"github.com/blociq/comms-engine/pkg/models"
)

// Asset types recognised when mapping compliance rows to facts.
const (
	AssetFRA       = "fra"
	AssetFireDoors = "fire_doors"
	AssetFireAlarm = "fire_alarm"
	AssetEICR      = "eicr"
	AssetGas       = "gas_safety"
	AssetAsbestos  = "asbestos"
)

// Store is a sqlite-backed property directory.
type Store struct {
	db *sql.DB
}

var _ contracts.ContextProvider = (*Store)(nil)

// Open opens (or creates) the directory database at dbPath and runs
// migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS buildings (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		postcode TEXT,
		unit_count INTEGER,
		emergency_contact TEXT
	);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		unit_number TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_building ON units(building_id);

	CREATE TABLE IF NOT EXISTS leaseholders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		unit_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_leaseholders_email ON leaseholders(email);

	CREATE TABLE IF NOT EXISTS compliance_assets (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		status TEXT,
		last_inspection DATETIME,
		next_due DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_compliance_building ON compliance_assets(building_id);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		building_id TEXT,
		name TEXT NOT NULL,
		type TEXT
	);

	CREATE TABLE IF NOT EXISTS emails (
		id TEXT PRIMARY KEY,
		building_id TEXT,
		leaseholder_id TEXT,
		subject TEXT,
		from_email TEXT,
		received_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_emails_building ON emails(building_id);

	CREATE TABLE IF NOT EXISTS tickets (
		ref TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tickets_building ON tickets(building_id);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// FetchContext resolves the hinted records. Every sub-lookup is
// independent; a miss leaves its field empty and a failure is logged.
func (s *Store) FetchContext(ctx context.Context, hints models.ContextHints) (*models.ContextData, error) {
	data := &models.ContextData{}

	if hints.BuildingID != "" {
		b, err := s.building(ctx, hints.BuildingID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("building_id", hints.BuildingID).Msg("Building lookup failed")
		case b != nil:
			data.Building = b
			data.Sources = append(data.Sources, "building")
		}
	}

	if hints.LeaseholderID != "" {
		l, err := s.leaseholderByID(ctx, hints.LeaseholderID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("leaseholder_id", hints.LeaseholderID).Msg("Leaseholder lookup failed")
		case l != nil:
			data.Leaseholder = l
			data.Sources = append(data.Sources, "leaseholder")
		}
	} else if hints.UnitNumber != "" && hints.BuildingID != "" {
		l, err := s.leaseholderByUnit(ctx, hints.BuildingID, hints.UnitNumber)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("unit", hints.UnitNumber).Msg("Unit leaseholder lookup failed")
		case l != nil:
			data.Leaseholder = l
			data.Sources = append(data.Sources, "leaseholder")
		}
	}

	if hints.BuildingID != "" {
		items, err := s.compliance(ctx, hints.BuildingID)
		if err != nil {
			log.Warn().Err(err).Str("building_id", hints.BuildingID).Msg("Compliance lookup failed")
		} else if len(items) > 0 {
			data.Compliance = items
			data.Sources = append(data.Sources, "compliance")
		}

		emails, err := s.recentEmails(ctx, hints.BuildingID, 5)
		if err != nil {
			log.Warn().Err(err).Str("building_id", hints.BuildingID).Msg("Email history lookup failed")
		} else if len(emails) > 0 {
			data.Emails = emails
			data.Sources = append(data.Sources, "emails")
		}
	}

	if len(hints.DocumentIDs) > 0 {
		docs, err := s.documents(ctx, hints.DocumentIDs)
		if err != nil {
			log.Warn().Err(err).Msg("Document lookup failed")
		} else if len(docs) > 0 {
			data.Documents = docs
			data.Sources = append(data.Sources, "documents")
		}
	}

	return data, nil
}

// ResolveSender maps a sender email address to a leaseholder and their
// unit/building. Unknown senders return (nil, nil).
func (s *Store) ResolveSender(ctx context.Context, email string) (*models.Leaseholder, error) {
	if email == "" {
		return nil, nil
	}

	query := `
	SELECT l.id, l.name, l.email, COALESCE(l.phone, ''), COALESCE(u.unit_number, ''), COALESCE(u.building_id, '')
	FROM leaseholders l
	LEFT JOIN units u ON u.id = l.unit_id
	WHERE lower(l.email) = lower(?)
	LIMIT 1`

	var l models.Leaseholder
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.UnitNumber, &l.BuildingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender: %w", err)
	}
	return &l, nil
}

// BuildingFacts returns the fact map for a building scoped to the
// message topic: fire facts for fire, electrical/compliance facts for
// eicr and compliance, the open leak ticket for leak, and the emergency
// contact otherwise. Dates are returned raw; formatting happens at
// render time.
func (s *Store) BuildingFacts(ctx context.Context, buildingID string, topic models.TopicHint) (map[string]string, error) {
	facts := make(map[string]string)
	if buildingID == "" {
		return facts, nil
	}

	switch topic {
	case models.TopicFire:
		s.addComplianceFacts(ctx, buildingID, facts, map[string][2]string{
			AssetFRA:       {models.FactFRALast, models.FactFRANext},
			AssetFireDoors: {models.FactFireDoorLast, ""},
			AssetFireAlarm: {models.FactAlarmServiceLast, ""},
		})

	case models.TopicEICR:
		s.addComplianceFacts(ctx, buildingID, facts, map[string][2]string{
			AssetEICR: {models.FactEICRLast, models.FactEICRNext},
		})

	case models.TopicCompliance:
		s.addComplianceFacts(ctx, buildingID, facts, map[string][2]string{
			AssetEICR:     {models.FactEICRLast, models.FactEICRNext},
			AssetGas:      {models.FactGasLast, models.FactGasNext},
			AssetAsbestos: {models.FactAsbestosLast, models.FactAsbestosNext},
		})

	case models.TopicLeak:
		var ref string
		err := s.db.QueryRowContext(ctx,
			`SELECT ref FROM tickets WHERE building_id = ? AND category = 'leak' AND status = 'open' ORDER BY ref LIMIT 1`,
			buildingID).Scan(&ref)
		if err != nil && err != sql.ErrNoRows {
			log.Warn().Err(err).Str("building_id", buildingID).Msg("Leak ticket lookup failed")
		}
		if ref != "" {
			facts[models.FactOpenLeakTicket] = ref
		}

	default:
		var contact sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT emergency_contact FROM buildings WHERE id = ?`, buildingID).Scan(&contact)
		if err != nil && err != sql.ErrNoRows {
			log.Warn().Err(err).Str("building_id", buildingID).Msg("Emergency contact lookup failed")
		}
		if contact.Valid && contact.String != "" {
			facts[models.FactEmergencyContact] = contact.String
		}
	}

	return facts, nil
}

// addComplianceFacts fills facts from compliance_assets rows.
// keyMap maps asset type → [lastKey, nextKey]; an empty key is skipped.
func (s *Store) addComplianceFacts(ctx context.Context, buildingID string, facts map[string]string, keyMap map[string][2]string) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_type, COALESCE(last_inspection, ''), COALESCE(next_due, '') FROM compliance_assets WHERE building_id = ?`,
		buildingID)
	if err != nil {
		log.Warn().Err(err).Str("building_id", buildingID).Msg("Compliance facts lookup failed")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var assetType, last, next string
		if err := rows.Scan(&assetType, &last, &next); err != nil {
			log.Warn().Err(err).Msg("Compliance facts scan failed")
			return
		}
		keys, ok := keyMap[assetType]
		if !ok {
			continue
		}
		if keys[0] != "" && last != "" {
			facts[keys[0]] = last
		}
		if keys[1] != "" && next != "" {
			facts[keys[1]] = next
		}
	}
	if err := rows.Err(); err != nil {
		log.Warn().Err(err).Msg("Compliance facts iteration failed")
	}
}

func (s *Store) building(ctx context.Context, id string) (*models.Building, error) {
	query := `SELECT id, name, COALESCE(address, ''), COALESCE(postcode, ''), COALESCE(unit_count, 0), COALESCE(emergency_contact, '')
		FROM buildings WHERE id = ?`

	var b models.Building
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.Address, &b.Postcode, &b.UnitCount, &b.EmergencyContact)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) leaseholderByID(ctx context.Context, id string) (*models.Leaseholder, error) {
	query := `
	SELECT l.id, l.name, COALESCE(l.email, ''), COALESCE(l.phone, ''), COALESCE(u.unit_number, ''), COALESCE(u.building_id, '')
	FROM leaseholders l
	LEFT JOIN units u ON u.id = l.unit_id
	WHERE l.id = ?`

	var l models.Leaseholder
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.UnitNumber, &l.BuildingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) leaseholderByUnit(ctx context.Context, buildingID, unitNumber string) (*models.Leaseholder, error) {
	query := `
	SELECT l.id, l.name, COALESCE(l.email, ''), COALESCE(l.phone, ''), u.unit_number, u.building_id
	FROM leaseholders l
	JOIN units u ON u.id = l.unit_id
	WHERE u.building_id = ? AND u.unit_number = ?
	LIMIT 1`

	var l models.Leaseholder
	err := s.db.QueryRowContext(ctx, query, buildingID, unitNumber).Scan(
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.UnitNumber, &l.BuildingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) compliance(ctx context.Context, buildingID string) ([]models.ComplianceItem, error) {
	query := `SELECT asset_type, COALESCE(status, ''), COALESCE(last_inspection, ''), COALESCE(next_due, '')
		FROM compliance_assets WHERE building_id = ? ORDER BY asset_type`

	rows, err := s.db.QueryContext(ctx, query, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ComplianceItem
	for rows.Next() {
		var item models.ComplianceItem
		var last, next string
		if err := rows.Scan(&item.AssetType, &item.Status, &last, &next); err != nil {
			return nil, err
		}
		item.LastInspection = parseDate(last)
		item.NextDue = parseDate(next)
		items = append(items, item)
	}
	return items, rows.Err()
}

// parseDate reads the date layouts sqlite text columns carry. Returns
// nil for empty or unparseable values.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func (s *Store) documents(ctx context.Context, ids []string) ([]models.Document, error) {
	var docs []models.Document
	for _, id := range ids {
		var d models.Document
		err := s.db.QueryRowContext(ctx,
			`SELECT id, name, COALESCE(type, '') FROM documents WHERE id = ?`, id).Scan(&d.ID, &d.Name, &d.Type)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *Store) recentEmails(ctx context.Context, buildingID string, limit int) ([]models.EmailSummary, error) {
	query := `SELECT id, COALESCE(subject, ''), COALESCE(from_email, '')
		FROM emails WHERE building_id = ? ORDER BY received_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, buildingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []models.EmailSummary
	for rows.Next() {
		var e models.EmailSummary
		if err := rows.Scan(&e.ID, &e.Subject, &e.FromEmail); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
