package types

// Phase is one step of the fixed, forward-only workflow.
type Phase string

const (
	PhaseIntake           Phase = "intake"
	PhaseQualification    Phase = "qualification"
	PhaseBudgeting        Phase = "budgeting"
	PhaseExecApproval     Phase = "execution_approval"
	PhaseExecution        Phase = "execution"
	PhaseEvidence         Phase = "evidence_collection"
	PhaseSettlementAuth   Phase = "settlement_authorization"
	PhaseSettlement       Phase = "settlement"
	PhasePaymentAuth      Phase = "payment_authorization"
	PhaseClosed           Phase = "closed"
)

// PhaseOrder is the canonical workflow sequence. Index in this slice is the
// phase index; it never decreases for a given work item.
var PhaseOrder = []Phase{
	PhaseIntake,
	PhaseQualification,
	PhaseBudgeting,
	PhaseExecApproval,
	PhaseExecution,
	PhaseEvidence,
	PhaseSettlementAuth,
	PhaseSettlement,
	PhasePaymentAuth,
	PhaseClosed,
}

var phaseIndex = func() map[Phase]int {
	m := make(map[Phase]int, len(PhaseOrder))
	for i, p := range PhaseOrder {
		m[p] = i
	}
	return m
}()

// PhaseIndex returns the ordinal position of p, or ok=false for an unknown
// phase label.
func PhaseIndex(p Phase) (int, bool) {
	i, ok := phaseIndex[p]
	return i, ok
}

// NextPhase returns the phase after p. ok=false when p is terminal or unknown.
func NextPhase(p Phase) (Phase, bool) {
	i, ok := phaseIndex[p]
	if !ok || i+1 >= len(PhaseOrder) {
		return "", false
	}
	return PhaseOrder[i+1], true
}

// Terminal reports whether p accepts no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseOrder[len(PhaseOrder)-1]
}

func (p Phase) String() string {
	return string(p)
}

// Valid reports whether p is a declared workflow phase.
func (p Phase) Valid() bool {
	_, ok := phaseIndex[p]
	return ok
}
