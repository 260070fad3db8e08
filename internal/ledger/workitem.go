package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/gatewise/gatewise/pkg/types"
)

const WorkItemSchema = "gatewise.workitem.v1"

// CreateWorkItem stores a new work item at the initial phase and logs its
// creation. The caller supplies the minted id.
func CreateWorkItem(store Store, item types.WorkItem, createdAt string) (types.WorkItem, error) {
	if item.WorkItemID == "" {
		return types.WorkItem{}, fmt.Errorf("missing work item id")
	}
	if item.Typology == "" {
		return types.WorkItem{}, fmt.Errorf("missing typology")
	}

	item.Schema = WorkItemSchema
	item.Phase = types.PhaseOrder[0]
	item.CreatedAt = createdAt
	item.UpdatedAt = createdAt

	err := store.WithTx(func(tx Tx) error {
		if _, exists := tx.GetWorkItem(item.WorkItemID); exists {
			return fmt.Errorf("%w: work item %s already exists", ErrConflict, item.WorkItemID)
		}
		rec, err := workItemRecord(item)
		if err != nil {
			return err
		}
		return tx.PutWorkItem(rec)
	})
	if err != nil {
		return types.WorkItem{}, err
	}

	_, err = AppendEntry(store, item.WorkItemID, AppendInput{
		Actor:    "system",
		Category: "lifecycle",
		Title:    "work item created",
		Body:     fmt.Sprintf("typology %s, amount %d", item.Typology, item.Amount),
		Severity: SeverityInfo,
	}, createdAt)
	if err != nil {
		return types.WorkItem{}, fmt.Errorf("log creation: %w", err)
	}

	return item, nil
}

// workItemReader is the read surface shared by Store and Tx, so loads work
// both outside and inside an open transaction.
type workItemReader interface {
	GetWorkItem(workItemID string) (WorkItemRecord, bool)
}

// LoadWorkItem decodes the stored work item, surfacing NotFound directly.
func LoadWorkItem(src workItemReader, workItemID string) (types.WorkItem, error) {
	rec, ok := src.GetWorkItem(workItemID)
	if !ok {
		return types.WorkItem{}, fmt.Errorf("%w: work item %s", ErrNotFound, workItemID)
	}
	var item types.WorkItem
	if err := json.Unmarshal(rec.BodyJSON, &item); err != nil {
		return types.WorkItem{}, fmt.Errorf("decode work item %s: %w", workItemID, err)
	}
	return item, nil
}

// SaveWorkItem persists an updated work item inside an open transaction.
func SaveWorkItem(tx Tx, item types.WorkItem, updatedAt string) error {
	item.UpdatedAt = updatedAt
	rec, err := workItemRecord(item)
	if err != nil {
		return err
	}
	return tx.PutWorkItem(rec)
}

func workItemRecord(item types.WorkItem) (WorkItemRecord, error) {
	bodyJSON, err := json.Marshal(item)
	if err != nil {
		return WorkItemRecord{}, err
	}
	return WorkItemRecord{
		WorkItemID: item.WorkItemID,
		Phase:      string(item.Phase),
		BodyJSON:   bodyJSON,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}, nil
}
