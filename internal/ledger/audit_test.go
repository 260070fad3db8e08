package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gatewise/gatewise/pkg/types"
)

func newStoreWithItem(t *testing.T, workItemID string) *InMemoryStore {
	t.Helper()
	store := NewInMemoryStore()
	_, err := CreateWorkItem(store, types.WorkItem{
		WorkItemID: workItemID,
		Typology:   "services_agreement",
		Amount:     1_200_000,
		Relation:   types.RelationIndependent,
	}, "2026-03-01T10:00:00Z")
	if err != nil {
		t.Fatalf("create work item: %v", err)
	}
	return store
}

func TestAppendEntrySequencesAreGapless(t *testing.T) {
	store := newStoreWithItem(t, "wi-1")

	// creation already wrote seq 1
	for i := 0; i < 5; i++ {
		entry, err := AppendEntry(store, "wi-1", AppendInput{
			Actor:    "legal",
			Category: "note",
			Title:    fmt.Sprintf("note %d", i),
			Severity: SeverityInfo,
		}, fmt.Sprintf("2026-03-01T10:0%d:00Z", i+1))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if entry.Seq != int64(i+2) {
			t.Fatalf("expected seq %d, got %d", i+2, entry.Seq)
		}
	}
}

func TestAppendEntryConcurrentCallersStayGapless(t *testing.T) {
	store := newStoreWithItem(t, "wi-1")

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := AppendEntry(store, "wi-1", AppendInput{
				Actor:    "system",
				Category: "note",
				Title:    fmt.Sprintf("concurrent %d", i),
				Severity: SeverityInfo,
			}, "2026-03-01T11:00:00Z")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := QueryEntries(store, "wi-1", AuditQuery{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != n+1 {
		t.Fatalf("expected %d entries, got %d", n+1, len(entries))
	}

	seen := map[int64]bool{}
	for _, entry := range entries {
		if seen[entry.Seq] {
			t.Fatalf("duplicate seq %d", entry.Seq)
		}
		seen[entry.Seq] = true
	}
	for seq := int64(1); seq <= int64(n+1); seq++ {
		if !seen[seq] {
			t.Fatalf("missing seq %d", seq)
		}
	}
}

func TestAppendEntryUnknownWorkItem(t *testing.T) {
	store := NewInMemoryStore()
	_, err := AppendEntry(store, "missing", AppendInput{
		Actor: "legal", Category: "note", Title: "x", Severity: SeverityInfo,
	}, "2026-03-01T10:00:00Z")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendEntryRejectsUnknownSeverity(t *testing.T) {
	store := newStoreWithItem(t, "wi-1")
	_, err := AppendEntry(store, "wi-1", AppendInput{
		Actor: "legal", Category: "note", Title: "x", Severity: "urgent",
	}, "2026-03-01T10:00:00Z")
	if err == nil {
		t.Fatalf("expected severity validation error")
	}
}

func TestQueryEntriesFilters(t *testing.T) {
	store := newStoreWithItem(t, "wi-1")

	appends := []struct {
		category  string
		severity  Severity
		createdAt string
	}{
		{"note", SeverityInfo, "2026-03-01T10:05:00Z"},
		{"communication", SeverityWarning, "2026-03-01T10:10:00Z"},
		{"communication", SeverityCritical, "2026-03-01T10:15:00Z"},
		{"note", SeverityNotice, "2026-03-01T10:20:00Z"},
	}
	for i, a := range appends {
		_, err := AppendEntry(store, "wi-1", AppendInput{
			Actor: "legal", Category: a.category, Title: fmt.Sprintf("entry %d", i), Severity: a.severity,
		}, a.createdAt)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	byCategory, err := QueryEntries(store, "wi-1", AuditQuery{Category: "communication"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byCategory) != 2 {
		t.Fatalf("expected 2 communication entries, got %d", len(byCategory))
	}
	if byCategory[0].Seq < byCategory[1].Seq {
		t.Fatalf("expected newest-first ordering")
	}

	bySeverity, err := QueryEntries(store, "wi-1", AuditQuery{MinSeverity: SeverityWarning})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bySeverity) != 2 {
		t.Fatalf("expected 2 entries at warning or above, got %d", len(bySeverity))
	}

	byTime, err := QueryEntries(store, "wi-1", AuditQuery{From: "2026-03-01T10:10:00Z", To: "2026-03-01T10:15:00Z"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byTime) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(byTime))
	}

	limited, err := QueryEntries(store, "wi-1", AuditQuery{Limit: 3})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(limited) != 3 {
		t.Fatalf("expected 3 entries with limit, got %d", len(limited))
	}
	if limited[0].Seq != 5 {
		t.Fatalf("expected newest entry first, got seq %d", limited[0].Seq)
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityInfo) {
		t.Fatalf("critical must rank above info")
	}
	if SeverityInfo.AtLeast(SeverityWarning) {
		t.Fatalf("info must not rank above warning")
	}
	if _, err := ParseSeverity("warning"); err != nil {
		t.Fatalf("parse warning: %v", err)
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Fatalf("expected unknown severity error")
	}
}
