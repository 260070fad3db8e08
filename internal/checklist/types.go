// Package checklist implements the typology-driven document checklist and
// the declarative per-typology rule list. Both are data: new checklist items
// and rules are config entries, not code.
package checklist

// Table is the immutable, versioned typology configuration.
type Table struct {
	Version    string     `yaml:"version"`
	Typologies []Typology `yaml:"typologies"`

	Hash string `yaml:"-"`
}

// Typology is a category of work item with its phase checklists and rules.
type Typology struct {
	ID         string           `yaml:"id"`
	Title      string           `yaml:"title"`
	HighRisk   bool             `yaml:"high_risk"`
	Checklists []PhaseChecklist `yaml:"checklists"`
	Rules      []Rule           `yaml:"rules"`
}

// PhaseChecklist declares the expected documents for one phase.
type PhaseChecklist struct {
	Phase string `yaml:"phase"`
	Items []Item `yaml:"items"`
}

// Item is one expected document. Name is matched by case-insensitive
// substring containment against document type, description, and name.
type Item struct {
	Name        string `yaml:"name"`
	Mandatory   bool   `yaml:"mandatory"`
	Criterion   string `yaml:"criterion"`
	Criticality string `yaml:"criticality"`
	MinCount    int    `yaml:"min_count"`
}

// Rule is a declarative domain heuristic: a conjunction of predicates over
// derived facts, and the action to take when every predicate holds.
type Rule struct {
	ID          string        `yaml:"id"`
	Description string        `yaml:"description"`
	When        RuleCondition `yaml:"when"`
	Action      RuleAction    `yaml:"action"`
}

// RuleCondition is the predicate set. Zero-valued fields are not evaluated;
// all declared fields must hold for the rule to fire.
type RuleCondition struct {
	MaxDocuments     *int   `yaml:"max_documents"`
	MinDocuments     *int   `yaml:"min_documents"`
	DocumentContains string `yaml:"document_contains"`
	DocumentAbsent   string `yaml:"document_absent"`
	AmountAtLeast    *int64 `yaml:"amount_at_least"`
	AmountBelow      *int64 `yaml:"amount_below"`
	Relation         string `yaml:"relation"`
}

// RuleAction is the closed set of rule outcomes.
type RuleAction string

const (
	ActionReject         RuleAction = "reject"
	ActionRequestChanges RuleAction = "request_changes"
	ActionBlock          RuleAction = "block"
)

// Valid reports whether a is a declared rule action.
func (a RuleAction) Valid() bool {
	switch a {
	case ActionReject, ActionRequestChanges, ActionBlock:
		return true
	default:
		return false
	}
}
