package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/gatewise/gatewise/internal/crypto"
	"github.com/gatewise/gatewise/pkg/types"
)

const DecisionSchema = "gatewise.decision.v1"

// SubmitDecisionInput is one incoming role decision. Status arrives loosely
// typed and is validated before any mutation.
type SubmitDecisionInput struct {
	WorkItemID string
	RoleID     string
	Phase      string
	Status     string
	Output     map[string]any
}

// SubmitDecision appends a new decision version for the (work item, role,
// phase) tuple. Versions are 1 + the previous version for the same tuple and
// are never reused; "latest" is always a max-version query, never an edit.
func SubmitDecision(store Store, in SubmitDecisionInput, createdAt string) (types.DecisionRecord, error) {
	status, err := types.ParseDecisionStatus(in.Status)
	if err != nil {
		return types.DecisionRecord{}, fmt.Errorf("%w: %q", err, in.Status)
	}
	phase := types.Phase(in.Phase)
	if !phase.Valid() {
		return types.DecisionRecord{}, fmt.Errorf("unknown phase: %q", in.Phase)
	}
	if in.RoleID == "" {
		return types.DecisionRecord{}, fmt.Errorf("missing role id")
	}

	var record types.DecisionRecord
	err = store.WithTx(func(tx Tx) error {
		if _, ok := tx.GetWorkItem(in.WorkItemID); !ok {
			return fmt.Errorf("%w: work item %s", ErrNotFound, in.WorkItemID)
		}

		prev, err := tx.LatestDecisionVersion(in.WorkItemID, in.RoleID, in.Phase)
		if err != nil {
			return err
		}

		record = types.DecisionRecord{
			Schema:     DecisionSchema,
			WorkItemID: in.WorkItemID,
			RoleID:     in.RoleID,
			Phase:      phase,
			Version:    prev + 1,
			Status:     status,
			Output:     in.Output,
			CreatedAt:  createdAt,
		}

		canonical, err := crypto.Canonicalize(decisionView(record))
		if err != nil {
			return fmt.Errorf("canonicalize decision: %w", err)
		}
		record.DecisionID = crypto.DigestWithPrefix(canonical)

		bodyJSON, err := json.Marshal(record)
		if err != nil {
			return err
		}

		return tx.PutDecision(DecisionRow{
			DecisionID: record.DecisionID,
			WorkItemID: record.WorkItemID,
			RoleID:     record.RoleID,
			Phase:      string(record.Phase),
			Version:    record.Version,
			Status:     string(record.Status),
			BodyJSON:   bodyJSON,
			CreatedAt:  createdAt,
		})
	})
	if err != nil {
		return types.DecisionRecord{}, err
	}

	_, err = AppendEntry(store, in.WorkItemID, AppendInput{
		Actor:    in.RoleID,
		Category: "decision",
		Title:    fmt.Sprintf("%s decided %s at %s", in.RoleID, status, phase),
		Severity: SeverityNotice,
		After:    map[string]any{"decision_id": record.DecisionID, "version": record.Version, "status": string(status)},
	}, createdAt)
	if err != nil {
		return types.DecisionRecord{}, fmt.Errorf("log decision: %w", err)
	}

	return record, nil
}

// DecisionsFor decodes every stored decision for a work item.
func DecisionsFor(store Store, workItemID string) ([]types.DecisionRecord, error) {
	rows, err := store.ListDecisions(workItemID)
	if err != nil {
		return nil, err
	}
	records := make([]types.DecisionRecord, 0, len(rows))
	for _, row := range rows {
		var record types.DecisionRecord
		if err := json.Unmarshal(row.BodyJSON, &record); err != nil {
			return nil, fmt.Errorf("decode decision %s: %w", row.DecisionID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func decisionView(record types.DecisionRecord) map[string]any {
	return map[string]any{
		"schema":       record.Schema,
		"work_item_id": record.WorkItemID,
		"role_id":      record.RoleID,
		"phase":        string(record.Phase),
		"version":      record.Version,
		"status":       string(record.Status),
		"output":       record.Output,
		"created_at":   record.CreatedAt,
	}
}
