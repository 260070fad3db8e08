package ledger

import (
	"encoding/json"
	"fmt"
)

// Severity grades an audit entry. Ordering is fixed: info < notice <
// warning < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityNotice   Severity = "notice"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityNotice:   1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// ParseSeverity validates a loosely-typed severity label.
func ParseSeverity(s string) (Severity, error) {
	if _, ok := severityRank[Severity(s)]; !ok {
		return "", fmt.Errorf("unknown severity: %q", s)
	}
	return Severity(s), nil
}

// AtLeast reports whether s ranks at or above min.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// AppendInput is one change or communication event to record.
type AppendInput struct {
	Actor               string
	Category            string
	Title               string
	Body                string
	Severity            Severity
	Before              any
	After               any
	CounterpartyName    string
	CounterpartyChannel string
}

// AppendEntry assigns the next sequence number for the work item and writes
// the entry. Sequence numbers are 1..N, strictly increasing and gapless,
// which WithTx serialization guarantees even under concurrent callers.
func AppendEntry(store Store, workItemID string, in AppendInput, createdAt string) (AuditEntry, error) {
	if workItemID == "" {
		return AuditEntry{}, fmt.Errorf("missing work item id")
	}
	if in.Actor == "" || in.Category == "" || in.Title == "" {
		return AuditEntry{}, fmt.Errorf("actor, category, and title are required")
	}
	if _, ok := severityRank[in.Severity]; !ok {
		return AuditEntry{}, fmt.Errorf("unknown severity: %q", in.Severity)
	}

	beforeJSON, err := marshalOptional(in.Before)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("encode before value: %w", err)
	}
	afterJSON, err := marshalOptional(in.After)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("encode after value: %w", err)
	}

	var entry AuditEntry
	err = store.WithTx(func(tx Tx) error {
		if _, ok := tx.GetWorkItem(workItemID); !ok {
			return fmt.Errorf("%w: work item %s", ErrNotFound, workItemID)
		}

		seq, err := tx.LatestAuditSeq(workItemID)
		if err != nil {
			return err
		}

		entry = AuditEntry{
			WorkItemID:          workItemID,
			Seq:                 seq + 1,
			Actor:               in.Actor,
			Category:            in.Category,
			Title:               in.Title,
			Body:                in.Body,
			Severity:            in.Severity,
			BeforeJSON:          beforeJSON,
			AfterJSON:           afterJSON,
			CounterpartyName:    in.CounterpartyName,
			CounterpartyChannel: in.CounterpartyChannel,
			CreatedAt:           createdAt,
		}
		return tx.PutAuditEntry(entry)
	})
	if err != nil {
		return AuditEntry{}, err
	}
	return entry, nil
}

// QueryEntries reads the audit log newest-first with the supplied filters.
func QueryEntries(store Store, workItemID string, q AuditQuery) ([]AuditEntry, error) {
	if q.MinSeverity != "" {
		if _, ok := severityRank[q.MinSeverity]; !ok {
			return nil, fmt.Errorf("unknown severity: %q", q.MinSeverity)
		}
	}
	if _, ok := store.GetWorkItem(workItemID); !ok {
		return nil, fmt.Errorf("%w: work item %s", ErrNotFound, workItemID)
	}
	return store.ListAuditEntries(workItemID, q)
}

// matchesQuery is shared by store implementations that filter in memory.
func matchesQuery(entry AuditEntry, q AuditQuery) bool {
	if q.Category != "" && entry.Category != q.Category {
		return false
	}
	if q.MinSeverity != "" && !entry.Severity.AtLeast(q.MinSeverity) {
		return false
	}
	if q.From != "" && entry.CreatedAt < q.From {
		return false
	}
	if q.To != "" && entry.CreatedAt > q.To {
		return false
	}
	return true
}

func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
