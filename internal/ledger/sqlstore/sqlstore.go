// Package sqlstore is the SQLite-backed ledger store. A single connection
// serializes transactions, which keeps the per-item sequence and version
// counters gapless without explicit locking.
package sqlstore

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/gatewise/gatewise/internal/ledger"
)

const Schema = `
CREATE TABLE IF NOT EXISTS work_items (
  work_item_id TEXT PRIMARY KEY,
  phase        TEXT NOT NULL,
  body_json    TEXT NOT NULL,
  created_at   TEXT NOT NULL,
  updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
  decision_id  TEXT PRIMARY KEY,
  work_item_id TEXT NOT NULL REFERENCES work_items(work_item_id),
  role_id      TEXT NOT NULL,
  phase        TEXT NOT NULL,
  version      INTEGER NOT NULL,
  status       TEXT NOT NULL,
  body_json    TEXT NOT NULL,
  created_at   TEXT NOT NULL,
  UNIQUE(work_item_id, role_id, phase, version)
);

CREATE TABLE IF NOT EXISTS audit_entries (
  work_item_id         TEXT NOT NULL REFERENCES work_items(work_item_id),
  seq                  INTEGER NOT NULL,
  actor                TEXT NOT NULL,
  category             TEXT NOT NULL,
  title                TEXT NOT NULL,
  body                 TEXT NOT NULL,
  severity             TEXT NOT NULL,
  before_json          TEXT,
  after_json           TEXT,
  counterparty_name    TEXT,
  counterparty_channel TEXT,
  created_at           TEXT NOT NULL,
  PRIMARY KEY(work_item_id, seq)
);

CREATE TABLE IF NOT EXISTS snapshots (
  work_item_id   TEXT NOT NULL REFERENCES work_items(work_item_id),
  version        INTEGER NOT NULL,
  content_hash   TEXT NOT NULL,
  body_json      TEXT NOT NULL,
  fields_json    TEXT NOT NULL,
  documents_json TEXT NOT NULL,
  reason         TEXT NOT NULL,
  artifact_ref   TEXT,
  key_id         TEXT,
  sig            BLOB,
  created_at     TEXT NOT NULL,
  PRIMARY KEY(work_item_id, version)
);

CREATE INDEX IF NOT EXISTS idx_audit_category ON audit_entries(work_item_id, category);
CREATE INDEX IF NOT EXISTS idx_decisions_tuple ON decisions(work_item_id, role_id, phase);
`

type Store struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection: sqlite transactions serialize, counters stay gapless
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) ApplySchema() error {
	_, err := s.db.Exec(Schema)
	return err
}

func (s *Store) WithTx(fn func(ledger.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), &sql.TxOptions{})
	if err != nil {
		return err
	}
	wrapped := &Tx{tx: tx}
	if err := fn(wrapped); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) PutWorkItem(rec ledger.WorkItemRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutWorkItem(rec) })
}

func (s *Store) GetWorkItem(workItemID string) (ledger.WorkItemRecord, bool) {
	return getWorkItem(s.db, workItemID)
}

func (s *Store) PutDecision(rec ledger.DecisionRow) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutDecision(rec) })
}

func (s *Store) ListDecisions(workItemID string) ([]ledger.DecisionRow, error) {
	rows, err := s.db.Query(`SELECT decision_id, work_item_id, role_id, phase, version, status, body_json, created_at
FROM decisions WHERE work_item_id = ? ORDER BY created_at ASC`, workItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.DecisionRow{}
	for rows.Next() {
		var rec ledger.DecisionRow
		var body string
		if err := rows.Scan(&rec.DecisionID, &rec.WorkItemID, &rec.RoleID, &rec.Phase, &rec.Version, &rec.Status, &body, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.BodyJSON = []byte(body)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) LatestDecisionVersion(workItemID, roleID, phase string) (int, error) {
	return latestDecisionVersion(s.db, workItemID, roleID, phase)
}

func (s *Store) PutAuditEntry(rec ledger.AuditEntry) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutAuditEntry(rec) })
}

func (s *Store) LatestAuditSeq(workItemID string) (int64, error) {
	return latestAuditSeq(s.db, workItemID)
}

func (s *Store) ListAuditEntries(workItemID string, q ledger.AuditQuery) ([]ledger.AuditEntry, error) {
	query := `SELECT work_item_id, seq, actor, category, title, body, severity, before_json, after_json, counterparty_name, counterparty_channel, created_at
FROM audit_entries WHERE work_item_id = ?`
	args := []any{workItemID}
	if q.Category != "" {
		query += ` AND category = ?`
		args = append(args, q.Category)
	}
	if q.From != "" {
		query += ` AND created_at >= ?`
		args = append(args, q.From)
	}
	if q.To != "" {
		query += ` AND created_at <= ?`
		args = append(args, q.To)
	}
	query += ` ORDER BY seq DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.AuditEntry{}
	for rows.Next() {
		var rec ledger.AuditEntry
		var severity string
		var before, after sql.NullString
		if err := rows.Scan(&rec.WorkItemID, &rec.Seq, &rec.Actor, &rec.Category, &rec.Title, &rec.Body, &severity, &before, &after, &rec.CounterpartyName, &rec.CounterpartyChannel, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Severity = ledger.Severity(severity)
		if before.Valid {
			rec.BeforeJSON = []byte(before.String)
		}
		if after.Valid {
			rec.AfterJSON = []byte(after.String)
		}
		// severity ranking is not expressible as a plain column compare
		if q.MinSeverity != "" && !rec.Severity.AtLeast(q.MinSeverity) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *Store) PutSnapshot(rec ledger.Snapshot) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutSnapshot(rec) })
}

func (s *Store) GetSnapshot(workItemID string, version int) (ledger.Snapshot, bool) {
	var rec ledger.Snapshot
	var body, fields, documents string
	var artifactRef, keyID sql.NullString
	row := s.db.QueryRow(`SELECT work_item_id, version, content_hash, body_json, fields_json, documents_json, reason, artifact_ref, key_id, sig, created_at
FROM snapshots WHERE work_item_id = ? AND version = ?`, workItemID, version)
	if err := row.Scan(&rec.WorkItemID, &rec.Version, &rec.ContentHash, &body, &fields, &documents, &rec.Reason, &artifactRef, &keyID, &rec.Sig, &rec.CreatedAt); err != nil {
		return ledger.Snapshot{}, false
	}
	rec.BodyJSON = []byte(body)
	rec.FieldsJSON = []byte(fields)
	rec.DocumentsJSON = []byte(documents)
	rec.ArtifactRef = artifactRef.String
	rec.KeyID = keyID.String
	return rec, true
}

func (s *Store) LatestSnapshotVersion(workItemID string) (int, error) {
	return latestSnapshotVersion(s.db, workItemID)
}

type Tx struct {
	tx *sql.Tx
}

func (t *Tx) PutWorkItem(rec ledger.WorkItemRecord) error {
	_, err := t.tx.Exec(
		`INSERT INTO work_items(work_item_id, phase, body_json, created_at, updated_at)
VALUES(?,?,?,?,?)
ON CONFLICT(work_item_id) DO UPDATE SET
  phase=excluded.phase,
  body_json=excluded.body_json,
  updated_at=excluded.updated_at`,
		rec.WorkItemID,
		rec.Phase,
		string(rec.BodyJSON),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (t *Tx) GetWorkItem(workItemID string) (ledger.WorkItemRecord, bool) {
	return getWorkItem(t.tx, workItemID)
}

func (t *Tx) PutDecision(rec ledger.DecisionRow) error {
	_, err := t.tx.Exec(
		`INSERT INTO decisions(decision_id, work_item_id, role_id, phase, version, status, body_json, created_at)
VALUES(?,?,?,?,?,?,?,?)`,
		rec.DecisionID,
		rec.WorkItemID,
		rec.RoleID,
		rec.Phase,
		rec.Version,
		rec.Status,
		string(rec.BodyJSON),
		rec.CreatedAt,
	)
	return err
}

func (t *Tx) LatestDecisionVersion(workItemID, roleID, phase string) (int, error) {
	return latestDecisionVersion(t.tx, workItemID, roleID, phase)
}

func (t *Tx) PutAuditEntry(rec ledger.AuditEntry) error {
	_, err := t.tx.Exec(
		`INSERT INTO audit_entries(work_item_id, seq, actor, category, title, body, severity, before_json, after_json, counterparty_name, counterparty_channel, created_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.WorkItemID,
		rec.Seq,
		rec.Actor,
		rec.Category,
		rec.Title,
		rec.Body,
		string(rec.Severity),
		nullableText(rec.BeforeJSON),
		nullableText(rec.AfterJSON),
		rec.CounterpartyName,
		rec.CounterpartyChannel,
		rec.CreatedAt,
	)
	return err
}

func (t *Tx) LatestAuditSeq(workItemID string) (int64, error) {
	return latestAuditSeq(t.tx, workItemID)
}

func (t *Tx) PutSnapshot(rec ledger.Snapshot) error {
	_, err := t.tx.Exec(
		`INSERT INTO snapshots(work_item_id, version, content_hash, body_json, fields_json, documents_json, reason, artifact_ref, key_id, sig, created_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		rec.WorkItemID,
		rec.Version,
		rec.ContentHash,
		string(rec.BodyJSON),
		string(rec.FieldsJSON),
		string(rec.DocumentsJSON),
		rec.Reason,
		rec.ArtifactRef,
		rec.KeyID,
		rec.Sig,
		rec.CreatedAt,
	)
	return err
}

func (t *Tx) LatestSnapshotVersion(workItemID string) (int, error) {
	return latestSnapshotVersion(t.tx, workItemID)
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getWorkItem(q querier, workItemID string) (ledger.WorkItemRecord, bool) {
	var rec ledger.WorkItemRecord
	var body string
	row := q.QueryRow(`SELECT work_item_id, phase, body_json, created_at, updated_at FROM work_items WHERE work_item_id = ?`, workItemID)
	if err := row.Scan(&rec.WorkItemID, &rec.Phase, &body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return ledger.WorkItemRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

func latestDecisionVersion(q querier, workItemID, roleID, phase string) (int, error) {
	var version int
	row := q.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM decisions WHERE work_item_id = ? AND role_id = ? AND phase = ?`, workItemID, roleID, phase)
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func latestAuditSeq(q querier, workItemID string) (int64, error) {
	var seq int64
	row := q.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM audit_entries WHERE work_item_id = ?`, workItemID)
	if err := row.Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func latestSnapshotVersion(q querier, workItemID string) (int, error) {
	var version int
	row := q.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM snapshots WHERE work_item_id = ?`, workItemID)
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
