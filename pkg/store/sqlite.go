package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/registrum/registrum/pkg/chain"
	"github.com/registrum/registrum/pkg/record"
	"github.com/registrum/registrum/pkg/signature"
)

// SQLiteStore persists records and their chains in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// modernc sqlite serializes writes per connection; a single connection
	// also keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)
	return NewSQLiteStore(db)
}

// NewSQLiteStore wraps an existing database handle and migrates it.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const query = `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		registration_number TEXT NOT NULL,
		subject_name TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		birth_place TEXT NOT NULL,
		father_name TEXT NOT NULL DEFAULT '',
		mother_name TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		status TEXT NOT NULL,
		pki_signature TEXT
	);
	CREATE TABLE IF NOT EXISTS log_entries (
		record_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		action TEXT NOT NULL,
		performed_by TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		previous_hash TEXT NOT NULL,
		hash TEXT NOT NULL,
		PRIMARY KEY (record_id, sequence)
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, rec *record.Record) error {
	sigJSON := sql.NullString{}
	if rec.PKISignature != nil {
		raw, err := json.Marshal(rec.PKISignature)
		if err != nil {
			return fmt.Errorf("store: serialize signature: %w", err)
		}
		sigJSON = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, registration_number, subject_name, birth_date, birth_place,
			father_name, mother_name, created_by, created_at, status, pki_signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			registration_number = excluded.registration_number,
			subject_name = excluded.subject_name,
			birth_date = excluded.birth_date,
			birth_place = excluded.birth_place,
			father_name = excluded.father_name,
			mother_name = excluded.mother_name,
			status = excluded.status,
			pki_signature = COALESCE(excluded.pki_signature, records.pki_signature)`,
		rec.ID, rec.Details.RegistrationNumber, rec.Details.SubjectName,
		rec.Details.BirthDate, rec.Details.BirthPlace,
		rec.Details.FatherName, rec.Details.MotherName,
		rec.CreatedBy, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(rec.Status), sigJSON)
	if err != nil {
		return fmt.Errorf("store: save record: %w", err)
	}

	// History rows are append-only: existing sequences are left untouched.
	for _, e := range rec.History.Snapshot() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO log_entries (record_id, sequence, action, performed_by, timestamp, details, previous_hash, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(record_id, sequence) DO NOTHING`,
			rec.ID, e.Sequence, string(e.Action), e.PerformedBy,
			e.Timestamp.UTC().Format(time.RFC3339Nano), e.Details, e.PreviousHash, e.Hash)
		if err != nil {
			return fmt.Errorf("store: save entry %d: %w", e.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, registration_number, subject_name, birth_date, birth_place,
			father_name, mother_name, created_by, created_at, status, pki_signature
		FROM records WHERE id = ?`, id)

	var rec record.Record
	var createdAt string
	var status string
	var sigJSON sql.NullString
	err := row.Scan(&rec.ID, &rec.Details.RegistrationNumber, &rec.Details.SubjectName,
		&rec.Details.BirthDate, &rec.Details.BirthPlace,
		&rec.Details.FatherName, &rec.Details.MotherName,
		&rec.CreatedBy, &createdAt, &status, &sigJSON)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load record: %w", err)
	}

	rec.Status = record.Status(status)
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse created_at: %w", err)
	}
	if sigJSON.Valid {
		var sig signature.QualifiedSignature
		if err := json.Unmarshal([]byte(sigJSON.String), &sig); err != nil {
			return nil, fmt.Errorf("store: parse signature: %w", err)
		}
		rec.PKISignature = &sig
	}

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.History = chain.FromHistory(history)
	return &rec, nil
}

func (s *SQLiteStore) loadHistory(ctx context.Context, recordID string) ([]chain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, action, performed_by, timestamp, details, previous_hash, hash
		FROM log_entries WHERE record_id = ? ORDER BY sequence ASC`, recordID)
	if err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []chain.Entry
	for rows.Next() {
		var e chain.Entry
		var action, ts string
		if err := rows.Scan(&e.Sequence, &action, &e.PerformedBy, &ts, &e.Details, &e.PreviousHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("store: scan entry: %w", err)
		}
		e.Action = chain.Action(action)
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("store: parse entry timestamp: %w", err)
		}
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate history: %w", err)
	}
	return history, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM records ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate ids: %w", err)
	}
	return ids, nil
}
