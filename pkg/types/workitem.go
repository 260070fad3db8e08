package types

// Relation classifies the counterparty relationship of a work item.
type Relation string

const (
	RelationIndependent  Relation = "independent_third_party"
	RelationRelatedParty Relation = "related_party"
	RelationIntraGroup   Relation = "intra_group"
)

// Valid reports whether r is a declared relation.
func (r Relation) Valid() bool {
	switch r {
	case RelationIndependent, RelationRelatedParty, RelationIntraGroup:
		return true
	default:
		return false
	}
}

// RiskBreakdown is the four-component risk score supplied by the score
// computation collaborator. Components and total are opaque ordinals.
type RiskBreakdown struct {
	Counterparty  int64 `json:"counterparty"`
	Documentation int64 `json:"documentation"`
	Financial     int64 `json:"financial"`
	Jurisdiction  int64 `json:"jurisdiction"`
	Total         int64 `json:"total"`
}

// WorkItem is the unit tracked through the phase workflow. Amounts are in
// minor currency units so canonical hashing stays integer-only.
type WorkItem struct {
	Schema              string        `json:"schema"`
	WorkItemID          string        `json:"work_item_id"`
	Typology            string        `json:"typology"`
	Amount              int64         `json:"amount"`
	Phase               Phase         `json:"phase"`
	Risk                RiskBreakdown `json:"risk"`
	Relation            Relation      `json:"relation"`
	EscalationFlags     []string      `json:"escalation_flags,omitempty"`
	FieldworkSignedOff  bool          `json:"fieldwork_signed_off"`
	DocsSignedOff       bool          `json:"docs_signed_off"`
	HumanReviewObtained bool          `json:"human_review_obtained"`
	CreatedAt           string        `json:"created_at"`
	UpdatedAt           string        `json:"updated_at"`
}

// Document is a typed evidence record attached to a work item. DeclaredAmount
// is zero when the document carries no amount.
type Document struct {
	DocumentID     string `json:"document_id"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	DeclaredAmount int64  `json:"declared_amount"`
	UploadedAt     string `json:"uploaded_at"`
}
