package ledger

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// FieldChange is one field-level difference between two versions.
type FieldChange struct {
	Field string `json:"field"`
	Kind  string `json:"kind"` // added | removed | changed
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

// DocumentChange is one document-name difference between two versions.
type DocumentChange struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // added | removed
}

// VersionDiff is the computed difference between two stored versions.
type VersionDiff struct {
	WorkItemID      string           `json:"work_item_id"`
	FromVersion     int              `json:"from_version"`
	ToVersion       int              `json:"to_version"`
	FieldChanges    []FieldChange    `json:"field_changes"`
	DocumentChanges []DocumentChange `json:"document_changes"`
}

// DiffVersions recomputes the difference between two versions of the same
// work item directly from the two raw snapshots. There is no delta chain;
// every call decodes both snapshots fresh.
func DiffVersions(store Store, workItemID string, v1, v2 int) (VersionDiff, error) {
	from, err := GetVersion(store, workItemID, v1)
	if err != nil {
		return VersionDiff{}, err
	}
	to, err := GetVersion(store, workItemID, v2)
	if err != nil {
		return VersionDiff{}, err
	}

	fieldChanges, err := diffFields(from.FieldsJSON, to.FieldsJSON)
	if err != nil {
		return VersionDiff{}, err
	}
	docChanges, err := diffDocuments(from.DocumentsJSON, to.DocumentsJSON)
	if err != nil {
		return VersionDiff{}, err
	}

	return VersionDiff{
		WorkItemID:      workItemID,
		FromVersion:     v1,
		ToVersion:       v2,
		FieldChanges:    fieldChanges,
		DocumentChanges: docChanges,
	}, nil
}

func diffFields(fromJSON, toJSON []byte) ([]FieldChange, error) {
	fromFields, err := decodeObject(fromJSON)
	if err != nil {
		return nil, fmt.Errorf("decode from fields: %w", err)
	}
	toFields, err := decodeObject(toJSON)
	if err != nil {
		return nil, fmt.Errorf("decode to fields: %w", err)
	}

	names := map[string]struct{}{}
	for name := range fromFields {
		names[name] = struct{}{}
	}
	for name := range toFields {
		names[name] = struct{}{}
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	changes := []FieldChange{}
	for _, name := range ordered {
		oldVal, inOld := fromFields[name]
		newVal, inNew := toFields[name]
		switch {
		case !inOld:
			changes = append(changes, FieldChange{Field: name, Kind: "added", New: newVal})
		case !inNew:
			changes = append(changes, FieldChange{Field: name, Kind: "removed", Old: oldVal})
		case !reflect.DeepEqual(oldVal, newVal):
			changes = append(changes, FieldChange{Field: name, Kind: "changed", Old: oldVal, New: newVal})
		}
	}
	return changes, nil
}

func diffDocuments(fromJSON, toJSON []byte) ([]DocumentChange, error) {
	fromNames, err := decodeDocumentNames(fromJSON)
	if err != nil {
		return nil, fmt.Errorf("decode from documents: %w", err)
	}
	toNames, err := decodeDocumentNames(toJSON)
	if err != nil {
		return nil, fmt.Errorf("decode to documents: %w", err)
	}

	changes := []DocumentChange{}
	for _, name := range sortedKeys(toNames) {
		if _, ok := fromNames[name]; !ok {
			changes = append(changes, DocumentChange{Name: name, Kind: "added"})
		}
	}
	for _, name := range sortedKeys(fromNames) {
		if _, ok := toNames[name]; !ok {
			changes = append(changes, DocumentChange{Name: name, Kind: "removed"})
		}
	}
	return changes, nil
}

func decodeObject(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func decodeDocumentNames(data []byte) (map[string]struct{}, error) {
	names := map[string]struct{}{}
	if len(data) == 0 {
		return names, nil
	}
	var docs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		names[d.Name] = struct{}{}
	}
	return names, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
