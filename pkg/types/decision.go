package types

import "errors"

// DecisionStatus is the closed set of verdicts a role can submit.
type DecisionStatus string

const (
	DecisionApprove               DecisionStatus = "approve"
	DecisionApproveWithConditions DecisionStatus = "approve_with_conditions"
	DecisionReject                DecisionStatus = "reject"
	DecisionRequestChanges        DecisionStatus = "request_changes"
	DecisionPending               DecisionStatus = "pending"
)

var ErrUnknownDecisionStatus = errors.New("unknown decision status")

// ParseDecisionStatus validates a loosely-typed incoming status at the
// boundary. Unknown values are rejected, never passed through.
func ParseDecisionStatus(s string) (DecisionStatus, error) {
	switch DecisionStatus(s) {
	case DecisionApprove, DecisionApproveWithConditions, DecisionReject,
		DecisionRequestChanges, DecisionPending:
		return DecisionStatus(s), nil
	default:
		return "", ErrUnknownDecisionStatus
	}
}

// Approving reports whether the status counts as an approval for gate and
// phase-advancement purposes.
func (s DecisionStatus) Approving() bool {
	return s == DecisionApprove || s == DecisionApproveWithConditions
}

// DecisionRecord is one versioned submission by a role for a work item at a
// phase. Resubmission creates a new version; records are never edited.
type DecisionRecord struct {
	Schema     string         `json:"schema"`
	DecisionID string         `json:"decision_id"`
	WorkItemID string         `json:"work_item_id"`
	RoleID     string         `json:"role_id"`
	Phase      Phase          `json:"phase"`
	Version    int            `json:"version"`
	Status     DecisionStatus `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	CreatedAt  string         `json:"created_at"`
}
