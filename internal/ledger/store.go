// Package ledger is the versioned, append-only audit ledger: a per-work-item
// change log with gapless sequence numbers and an immutable, content-hashed
// snapshot store with diffing. Writes go through Store implementations whose
// WithTx serializes the per-item counters.
package ledger

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("concurrency conflict")
)

// Store is the persistence boundary. Implementations must serialize WithTx
// so that read-increment-write sequences on the per-item counters are safe.
type Store interface {
	WithTx(fn func(Tx) error) error

	PutWorkItem(rec WorkItemRecord) error
	GetWorkItem(workItemID string) (WorkItemRecord, bool)

	PutDecision(rec DecisionRow) error
	ListDecisions(workItemID string) ([]DecisionRow, error)
	LatestDecisionVersion(workItemID, roleID, phase string) (int, error)

	PutAuditEntry(rec AuditEntry) error
	LatestAuditSeq(workItemID string) (int64, error)
	ListAuditEntries(workItemID string, q AuditQuery) ([]AuditEntry, error)

	PutSnapshot(rec Snapshot) error
	GetSnapshot(workItemID string, version int) (Snapshot, bool)
	LatestSnapshotVersion(workItemID string) (int, error)
}

// Tx is the transactional view handed to WithTx callbacks.
type Tx interface {
	PutWorkItem(rec WorkItemRecord) error
	GetWorkItem(workItemID string) (WorkItemRecord, bool)

	PutDecision(rec DecisionRow) error
	LatestDecisionVersion(workItemID, roleID, phase string) (int, error)

	PutAuditEntry(rec AuditEntry) error
	LatestAuditSeq(workItemID string) (int64, error)

	PutSnapshot(rec Snapshot) error
	LatestSnapshotVersion(workItemID string) (int, error)
}

// Signer signs snapshot content digests. Sealing is optional; stores accept
// unsigned snapshots when no signer is configured.
type Signer interface {
	KeyID() string
	SignEd25519(message []byte) ([]byte, error)
}

// WorkItemRecord is the stored work item: the current phase is an indexed
// column, the full body is kept as JSON.
type WorkItemRecord struct {
	WorkItemID string
	Phase      string
	BodyJSON   []byte
	CreatedAt  string
	UpdatedAt  string
}

// DecisionRow is one immutable decision version for (work item, role, phase).
type DecisionRow struct {
	DecisionID string
	WorkItemID string
	RoleID     string
	Phase      string
	Version    int
	Status     string
	BodyJSON   []byte
	CreatedAt  string
}

// AuditEntry is one immutable, append-only log entry. Seq is strictly
// increasing and gapless per work item.
type AuditEntry struct {
	WorkItemID          string
	Seq                 int64
	Actor               string
	Category            string
	Title               string
	Body                string
	Severity            Severity
	BeforeJSON          []byte
	AfterJSON           []byte
	CounterpartyName    string
	CounterpartyChannel string
	CreatedAt           string
}

// AuditQuery filters ledger reads. Zero values leave a dimension unbounded.
// Results are returned newest-first, capped at Limit when Limit > 0.
type AuditQuery struct {
	Category    string
	MinSeverity Severity
	From        string
	To          string
	Limit       int
}

// Snapshot is one immutable work item version. BodyJSON is the canonical
// {fields, documents} body the content hash is computed over; FieldsJSON and
// DocumentsJSON are kept separately for diffing.
type Snapshot struct {
	WorkItemID    string
	Version       int
	ContentHash   string
	BodyJSON      []byte
	FieldsJSON    []byte
	DocumentsJSON []byte
	Reason        string
	ArtifactRef   string
	KeyID         string
	Sig           []byte
	CreatedAt     string
}
