package sqlstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gatewise/gatewise/internal/ledger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.ApplySchema(); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return s
}

func putTestItem(t *testing.T, s *Store, workItemID string) {
	t.Helper()
	err := s.PutWorkItem(ledger.WorkItemRecord{
		WorkItemID: workItemID,
		Phase:      "intake",
		BodyJSON:   []byte(`{"work_item_id":"` + workItemID + `"}`),
		CreatedAt:  "2026-03-01T10:00:00Z",
		UpdatedAt:  "2026-03-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("put work item: %v", err)
	}
}

func TestStoreCRUD(t *testing.T) {
	s := openTestStore(t)
	putTestItem(t, s, "wi-1")

	got, ok := s.GetWorkItem("wi-1")
	if !ok || got.Phase != "intake" {
		t.Fatalf("get work item mismatch: ok=%v got=%+v", ok, got)
	}

	// phase update overwrites in place
	got.Phase = "qualification"
	got.UpdatedAt = "2026-03-01T11:00:00Z"
	if err := s.PutWorkItem(got); err != nil {
		t.Fatalf("update work item: %v", err)
	}
	if updated, ok := s.GetWorkItem("wi-1"); !ok || updated.Phase != "qualification" {
		t.Fatalf("work item update mismatch: ok=%v got=%+v", ok, updated)
	}

	dec := ledger.DecisionRow{
		DecisionID: "dec-1",
		WorkItemID: "wi-1",
		RoleID:     "legal",
		Phase:      "intake",
		Version:    1,
		Status:     "approve",
		BodyJSON:   []byte(`{"decision_id":"dec-1"}`),
		CreatedAt:  "2026-03-01T10:05:00Z",
	}
	if err := s.PutDecision(dec); err != nil {
		t.Fatalf("put decision: %v", err)
	}
	rows, err := s.ListDecisions("wi-1")
	if err != nil || len(rows) != 1 || rows[0].RoleID != "legal" {
		t.Fatalf("list decisions mismatch: err=%v rows=%+v", err, rows)
	}
	if v, err := s.LatestDecisionVersion("wi-1", "legal", "intake"); err != nil || v != 1 {
		t.Fatalf("latest decision version: err=%v v=%d", err, v)
	}
	if v, err := s.LatestDecisionVersion("wi-1", "fiscal", "intake"); err != nil || v != 0 {
		t.Fatalf("expected 0 for undecided tuple: err=%v v=%d", err, v)
	}

	entry := ledger.AuditEntry{
		WorkItemID: "wi-1",
		Seq:        1,
		Actor:      "legal",
		Category:   "note",
		Title:      "reviewed contract",
		Body:       "no issues found",
		Severity:   ledger.SeverityInfo,
		BeforeJSON: []byte(`{"phase":"intake"}`),
		CreatedAt:  "2026-03-01T10:06:00Z",
	}
	if err := s.PutAuditEntry(entry); err != nil {
		t.Fatalf("put audit entry: %v", err)
	}
	if seq, err := s.LatestAuditSeq("wi-1"); err != nil || seq != 1 {
		t.Fatalf("latest seq: err=%v seq=%d", err, seq)
	}
	entries, err := s.ListAuditEntries("wi-1", ledger.AuditQuery{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("list entries mismatch: err=%v entries=%+v", err, entries)
	}
	if string(entries[0].BeforeJSON) != `{"phase":"intake"}` || entries[0].AfterJSON != nil {
		t.Fatalf("json columns mismatch: %+v", entries[0])
	}

	snap := ledger.Snapshot{
		WorkItemID:    "wi-1",
		Version:       1,
		ContentHash:   "sha256:abc",
		BodyJSON:      []byte(`{"fields":{},"documents":[]}`),
		FieldsJSON:    []byte(`{}`),
		DocumentsJSON: []byte(`[]`),
		Reason:        "baseline",
		CreatedAt:     "2026-03-01T10:07:00Z",
	}
	if err := s.PutSnapshot(snap); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}
	if got, ok := s.GetSnapshot("wi-1", 1); !ok || got.ContentHash != "sha256:abc" {
		t.Fatalf("get snapshot mismatch: ok=%v got=%+v", ok, got)
	}
	if v, err := s.LatestSnapshotVersion("wi-1"); err != nil || v != 1 {
		t.Fatalf("latest snapshot version: err=%v v=%d", err, v)
	}
}

func TestListAuditEntriesFilters(t *testing.T) {
	s := openTestStore(t)
	putTestItem(t, s, "wi-1")

	appends := []struct {
		seq       int64
		category  string
		severity  ledger.Severity
		createdAt string
	}{
		{1, "note", ledger.SeverityInfo, "2026-03-01T10:05:00Z"},
		{2, "communication", ledger.SeverityWarning, "2026-03-01T10:10:00Z"},
		{3, "communication", ledger.SeverityCritical, "2026-03-01T10:15:00Z"},
		{4, "note", ledger.SeverityNotice, "2026-03-01T10:20:00Z"},
	}
	for _, a := range appends {
		err := s.PutAuditEntry(ledger.AuditEntry{
			WorkItemID: "wi-1",
			Seq:        a.seq,
			Actor:      "legal",
			Category:   a.category,
			Title:      fmt.Sprintf("entry %d", a.seq),
			Severity:   a.severity,
			CreatedAt:  a.createdAt,
		})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	byCategory, err := s.ListAuditEntries("wi-1", ledger.AuditQuery{Category: "communication"})
	if err != nil || len(byCategory) != 2 {
		t.Fatalf("category filter: err=%v len=%d", err, len(byCategory))
	}
	if byCategory[0].Seq != 3 {
		t.Fatalf("expected newest-first, got seq %d", byCategory[0].Seq)
	}

	bySeverity, err := s.ListAuditEntries("wi-1", ledger.AuditQuery{MinSeverity: ledger.SeverityWarning})
	if err != nil || len(bySeverity) != 2 {
		t.Fatalf("severity filter: err=%v len=%d", err, len(bySeverity))
	}

	byTime, err := s.ListAuditEntries("wi-1", ledger.AuditQuery{From: "2026-03-01T10:10:00Z", To: "2026-03-01T10:15:00Z"})
	if err != nil || len(byTime) != 2 {
		t.Fatalf("time filter: err=%v len=%d", err, len(byTime))
	}

	limited, err := s.ListAuditEntries("wi-1", ledger.AuditQuery{Limit: 2})
	if err != nil || len(limited) != 2 || limited[0].Seq != 4 {
		t.Fatalf("limit: err=%v entries=%+v", err, limited)
	}
}

func TestWithTxRollback(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(func(tx ledger.Tx) error {
		if err := tx.PutWorkItem(ledger.WorkItemRecord{
			WorkItemID: "wi-rollback",
			Phase:      "intake",
			BodyJSON:   []byte(`{}`),
			CreatedAt:  "now",
			UpdatedAt:  "now",
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := s.GetWorkItem("wi-rollback"); ok {
		t.Fatalf("expected rollback to discard work item")
	}
}

func TestGaplessSequencesThroughLedgerOps(t *testing.T) {
	s := openTestStore(t)
	putTestItem(t, s, "wi-1")

	for i := 0; i < 5; i++ {
		entry, err := ledger.AppendEntry(s, "wi-1", ledger.AppendInput{
			Actor:    "system",
			Category: "note",
			Title:    fmt.Sprintf("note %d", i),
			Severity: ledger.SeverityInfo,
		}, "2026-03-01T11:00:00Z")
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if entry.Seq != int64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, entry.Seq)
		}
	}
}

func TestDuplicateSnapshotVersionRejected(t *testing.T) {
	s := openTestStore(t)
	putTestItem(t, s, "wi-1")

	snap := ledger.Snapshot{
		WorkItemID:    "wi-1",
		Version:       1,
		ContentHash:   "sha256:abc",
		BodyJSON:      []byte(`{}`),
		FieldsJSON:    []byte(`{}`),
		DocumentsJSON: []byte(`[]`),
		Reason:        "baseline",
		CreatedAt:     "now",
	}
	if err := s.PutSnapshot(snap); err != nil {
		t.Fatalf("put v1: %v", err)
	}
	if err := s.PutSnapshot(snap); err == nil {
		t.Fatalf("expected duplicate version to be rejected")
	}
}
