package ledger

import (
	"sort"
	"sync"
)

// InMemoryStore backs tests and single-process deployments. A single mutex
// serializes WithTx, which is what keeps the per-item counters gapless.
type InMemoryStore struct {
	mu sync.Mutex

	items     map[string]WorkItemRecord
	decisions map[string][]DecisionRow
	audits    map[string][]AuditEntry
	snapshots map[string]map[int]Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items:     make(map[string]WorkItemRecord),
		decisions: make(map[string][]DecisionRow),
		audits:    make(map[string][]AuditEntry),
		snapshots: make(map[string]map[int]Snapshot),
	}
}

func (s *InMemoryStore) WithTx(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn((*memTx)(s))
}

type memTx InMemoryStore

func (s *InMemoryStore) PutWorkItem(rec WorkItemRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).PutWorkItem(rec)
}

func (s *InMemoryStore) GetWorkItem(workItemID string) (WorkItemRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetWorkItem(workItemID)
}

func (s *InMemoryStore) PutDecision(rec DecisionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).PutDecision(rec)
}

func (s *InMemoryStore) ListDecisions(workItemID string) ([]DecisionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]DecisionRow, len(s.decisions[workItemID]))
	copy(rows, s.decisions[workItemID])
	return rows, nil
}

func (s *InMemoryStore) LatestDecisionVersion(workItemID, roleID, phase string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).LatestDecisionVersion(workItemID, roleID, phase)
}

func (s *InMemoryStore) PutAuditEntry(rec AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).PutAuditEntry(rec)
}

func (s *InMemoryStore) LatestAuditSeq(workItemID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).LatestAuditSeq(workItemID)
}

func (s *InMemoryStore) ListAuditEntries(workItemID string, q AuditQuery) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.audits[workItemID]
	out := []AuditEntry{}
	for _, entry := range entries {
		if matchesQuery(entry, q) {
			out = append(out, entry)
		}
	}

	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) PutSnapshot(rec Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).PutSnapshot(rec)
}

func (s *InMemoryStore) GetSnapshot(workItemID string, version int) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[workItemID][version]
	return snap, ok
}

func (s *InMemoryStore) LatestSnapshotVersion(workItemID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).LatestSnapshotVersion(workItemID)
}

func (t *memTx) PutWorkItem(rec WorkItemRecord) error {
	t.items[rec.WorkItemID] = rec
	return nil
}

func (t *memTx) GetWorkItem(workItemID string) (WorkItemRecord, bool) {
	rec, ok := t.items[workItemID]
	return rec, ok
}

func (t *memTx) PutDecision(rec DecisionRow) error {
	t.decisions[rec.WorkItemID] = append(t.decisions[rec.WorkItemID], rec)
	return nil
}

func (t *memTx) LatestDecisionVersion(workItemID, roleID, phase string) (int, error) {
	latest := 0
	for _, row := range t.decisions[workItemID] {
		if row.RoleID == roleID && row.Phase == phase && row.Version > latest {
			latest = row.Version
		}
	}
	return latest, nil
}

func (t *memTx) PutAuditEntry(rec AuditEntry) error {
	t.audits[rec.WorkItemID] = append(t.audits[rec.WorkItemID], rec)
	return nil
}

func (t *memTx) LatestAuditSeq(workItemID string) (int64, error) {
	entries := t.audits[workItemID]
	var latest int64
	for _, entry := range entries {
		if entry.Seq > latest {
			latest = entry.Seq
		}
	}
	return latest, nil
}

func (t *memTx) PutSnapshot(rec Snapshot) error {
	if t.snapshots[rec.WorkItemID] == nil {
		t.snapshots[rec.WorkItemID] = make(map[int]Snapshot)
	}
	t.snapshots[rec.WorkItemID][rec.Version] = rec
	return nil
}

func (t *memTx) LatestSnapshotVersion(workItemID string) (int, error) {
	latest := 0
	for version := range t.snapshots[workItemID] {
		if version > latest {
			latest = version
		}
	}
	return latest, nil
}
