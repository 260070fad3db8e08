package checklist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gatewise/gatewise/pkg/types"
)

var ErrUnknownTypology = errors.New("unknown typology")

// MissingItem is one unmatched mandatory checklist item, reported with its
// acceptance criterion so callers can render actionable messaging.
type MissingItem struct {
	Name        string `json:"name"`
	Criterion   string `json:"criterion"`
	Criticality string `json:"criticality"`
	WantCount   int    `json:"want_count"`
	HaveCount   int    `json:"have_count"`
}

// Result is the outcome of a checklist validation. Compliant is true iff
// Missing is empty.
type Result struct {
	TypologyID string        `json:"typology_id"`
	Phase      types.Phase   `json:"phase"`
	Compliant  bool          `json:"compliant"`
	Missing    []MissingItem `json:"missing"`
	ConfigHash string        `json:"config_hash,omitempty"`
}

// RuleHit is one fired declarative rule.
type RuleHit struct {
	RuleID      string     `json:"rule_id"`
	Description string     `json:"description"`
	Action      RuleAction `json:"action"`
}

// Typology returns the declared typology with the given id.
func (t Table) Typology(typologyID string) (Typology, bool) {
	for _, ty := range t.Typologies {
		if ty.ID == typologyID {
			return ty, true
		}
	}
	return Typology{}, false
}

// HighRisk reports whether the typology is flagged high-risk. Unknown
// typologies report false.
func (t Table) HighRisk(typologyID string) bool {
	ty, ok := t.Typology(typologyID)
	return ok && ty.HighRisk
}

// ValidateChecklist matches the declared checklist for (typology, phase)
// against the uploaded documents. A typology with no checklist for the phase
// is trivially compliant. An unknown typology is a NotFound condition.
func (t Table) ValidateChecklist(typologyID string, phase types.Phase, docs []types.Document) (Result, error) {
	ty, ok := t.Typology(typologyID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTypology, typologyID)
	}

	result := Result{
		TypologyID: typologyID,
		Phase:      phase,
		Missing:    []MissingItem{},
		ConfigHash: t.Hash,
	}

	for _, cl := range ty.Checklists {
		if types.Phase(cl.Phase) != phase {
			continue
		}
		for _, item := range cl.Items {
			if !item.Mandatory {
				continue
			}
			want := item.MinCount
			if want < 1 {
				want = 1
			}
			have := countMatches(docs, item.Name)
			if have < want {
				result.Missing = append(result.Missing, MissingItem{
					Name:        item.Name,
					Criterion:   item.Criterion,
					Criticality: item.Criticality,
					WantCount:   want,
					HaveCount:   have,
				})
			}
		}
	}

	result.Compliant = len(result.Missing) == 0
	return result, nil
}

// EvaluateRules fires every declarative rule of the typology whose full
// predicate set holds against the work item and its documents.
func (t Table) EvaluateRules(typologyID string, item types.WorkItem, docs []types.Document) ([]RuleHit, error) {
	ty, ok := t.Typology(typologyID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTypology, typologyID)
	}

	var hits []RuleHit
	for _, rule := range ty.Rules {
		if ruleMatches(rule.When, item, docs) {
			hits = append(hits, RuleHit{RuleID: rule.ID, Description: rule.Description, Action: rule.Action})
		}
	}
	return hits, nil
}

func ruleMatches(cond RuleCondition, item types.WorkItem, docs []types.Document) bool {
	if cond.MaxDocuments != nil && len(docs) > *cond.MaxDocuments {
		return false
	}
	if cond.MinDocuments != nil && len(docs) < *cond.MinDocuments {
		return false
	}
	if cond.DocumentContains != "" && countMatches(docs, cond.DocumentContains) == 0 {
		return false
	}
	if cond.DocumentAbsent != "" && countMatches(docs, cond.DocumentAbsent) > 0 {
		return false
	}
	if cond.AmountAtLeast != nil && item.Amount < *cond.AmountAtLeast {
		return false
	}
	if cond.AmountBelow != nil && item.Amount >= *cond.AmountBelow {
		return false
	}
	if cond.Relation != "" && item.Relation != types.Relation(cond.Relation) {
		return false
	}
	return true
}

// countMatches counts documents whose type, description, or name contains
// needle, case-insensitively.
func countMatches(docs []types.Document, needle string) int {
	needle = strings.ToLower(needle)
	count := 0
	for _, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Type), needle) ||
			strings.Contains(strings.ToLower(doc.Description), needle) ||
			strings.Contains(strings.ToLower(doc.Name), needle) {
			count++
		}
	}
	return count
}
