package gate

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gatewise/gatewise/pkg/types"
)

func testConfig() Config {
	return Config{
		LargeAmountThreshold: 5_000_000,
		HighRiskThreshold:    70,
		MinEvidencePct:       80,
		AmountTolerancePct:   5,
		GenericPhrases:       []string{"misc", "various services", "payment for services"},
	}
}

func decision(role string, phase types.Phase, status types.DecisionStatus, version int) types.DecisionRecord {
	return types.DecisionRecord{
		WorkItemID: "wi-1",
		RoleID:     role,
		Phase:      phase,
		Status:     status,
		Version:    version,
	}
}

func preExecutionInput() Input {
	return Input{
		Item: types.WorkItem{
			WorkItemID: "wi-1",
			Typology:   "services_agreement",
			Amount:     1_200_000,
			Phase:      types.PhaseExecApproval,
			Risk:       types.RiskBreakdown{Total: 30},
			Relation:   types.RelationIndependent,
		},
		Decisions: []types.DecisionRecord{
			decision("sponsor", types.PhaseIntake, types.DecisionApprove, 1),
			decision("legal", types.PhaseIntake, types.DecisionApproveWithConditions, 1),
			decision("fiscal", types.PhaseBudgeting, types.DecisionApprove, 1),
		},
	}
}

func preSettlementInput() Input {
	return Input{
		Item: types.WorkItem{
			WorkItemID:         "wi-1",
			Typology:           "services_agreement",
			Amount:             1_200_000,
			Phase:              types.PhaseSettlementAuth,
			Relation:           types.RelationIndependent,
			FieldworkSignedOff: true,
			DocsSignedOff:      true,
		},
		Decisions: []types.DecisionRecord{
			decision("legal", types.PhaseSettlementAuth, types.DecisionApprove, 1),
			decision("fiscal", types.PhaseSettlementAuth, types.DecisionApprove, 1),
		},
		EvidencePct: 92,
	}
}

func prePaymentInput() Input {
	return Input{
		Item: types.WorkItem{
			WorkItemID: "wi-1",
			Typology:   "services_agreement",
			Phase:      types.PhasePaymentAuth,
			Relation:   types.RelationIndependent,
		},
		Decisions: []types.DecisionRecord{
			decision("finance", types.PhasePaymentAuth, types.DecisionApprove, 1),
		},
		Documents: []types.Document{
			{Type: "contract", Name: "services-contract.pdf", DeclaredAmount: 1_500_000},
			{Type: "proof_of_payment", Name: "wire-2026-02-11.pdf", Description: "wire transfer for services-contract milestone 3", DeclaredAmount: 1_540_000},
		},
	}
}

func TestGatePreExecutionReleased(t *testing.T) {
	result, err := Evaluate(testConfig(), GatePreExecution, preExecutionInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Released {
		t.Fatalf("expected released, reasons: %v", result.Reasons)
	}
	if len(result.Reasons) != 0 {
		t.Fatalf("released result must have no reasons, got %v", result.Reasons)
	}
}

func TestGatePreExecutionFlips(t *testing.T) {
	flips := map[string]func(*Input){
		"budget decision missing": func(in *Input) {
			in.Decisions = in.Decisions[:2]
		},
		"budget decision not strict approve": func(in *Input) {
			in.Decisions[2].Status = types.DecisionApproveWithConditions
		},
		"sponsor rejected": func(in *Input) {
			in.Decisions[0].Status = types.DecisionReject
		},
		"legal missing": func(in *Input) {
			in.Decisions = []types.DecisionRecord{in.Decisions[0], in.Decisions[2]}
		},
		"phase not reached": func(in *Input) {
			in.Item.Phase = types.PhaseBudgeting
		},
		"large amount without human review": func(in *Input) {
			in.Item.Amount = 6_000_000
		},
		"high risk score without human review": func(in *Input) {
			in.Item.Risk.Total = 85
		},
		"high risk typology without human review": func(in *Input) {
			in.TypologyHighRisk = true
		},
	}

	for name, flip := range flips {
		in := preExecutionInput()
		flip(&in)

		result, err := Evaluate(testConfig(), GatePreExecution, in)
		if err != nil {
			t.Fatalf("%s: evaluate: %v", name, err)
		}
		if result.Released {
			t.Fatalf("%s: expected blocked", name)
		}
		if len(result.Reasons) == 0 {
			t.Fatalf("%s: expected at least one reason", name)
		}
	}
}

func TestGatePreExecutionHumanReviewObtainedClears(t *testing.T) {
	in := preExecutionInput()
	in.Item.Amount = 6_000_000
	in.Item.HumanReviewObtained = true

	result, err := Evaluate(testConfig(), GatePreExecution, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Released {
		t.Fatalf("expected released once review obtained, reasons: %v", result.Reasons)
	}
}

func TestGatePreSettlementReleased(t *testing.T) {
	result, err := Evaluate(testConfig(), GatePreSettlement, preSettlementInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Released {
		t.Fatalf("expected released, reasons: %v", result.Reasons)
	}
}

func TestGatePreSettlementFlips(t *testing.T) {
	flips := map[string]func(*Input){
		"evidence below threshold": func(in *Input) { in.EvidencePct = 79 },
		"fieldwork not signed off": func(in *Input) { in.Item.FieldworkSignedOff = false },
		"docs not signed off":      func(in *Input) { in.Item.DocsSignedOff = false },
		"legal not approved": func(in *Input) {
			in.Decisions[0].Status = types.DecisionRequestChanges
		},
		"related party without tp study": func(in *Input) {
			in.Item.Relation = types.RelationRelatedParty
		},
	}

	for name, flip := range flips {
		in := preSettlementInput()
		flip(&in)

		result, err := Evaluate(testConfig(), GatePreSettlement, in)
		if err != nil {
			t.Fatalf("%s: evaluate: %v", name, err)
		}
		if result.Released {
			t.Fatalf("%s: expected blocked", name)
		}
	}
}

func TestGatePreSettlementRelatedPartyWithStudy(t *testing.T) {
	in := preSettlementInput()
	in.Item.Relation = types.RelationRelatedParty
	in.Documents = []types.Document{
		{Type: "transfer pricing study", Name: "tp-study-2026.pdf"},
	}

	result, err := Evaluate(testConfig(), GatePreSettlement, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Released {
		t.Fatalf("expected released with study on file, reasons: %v", result.Reasons)
	}
}

func TestGatePrePaymentReleasedWithinTolerance(t *testing.T) {
	// 1,540,000 vs 1,500,000 is a 2.7% delta, inside the 5% tolerance.
	result, err := Evaluate(testConfig(), GatePrePayment, prePaymentInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Released {
		t.Fatalf("expected released, reasons: %v", result.Reasons)
	}
}

func TestGatePrePaymentAmountMismatch(t *testing.T) {
	// 1,700,000 vs 1,500,000 is a 13.3% delta.
	in := prePaymentInput()
	in.Documents[1].DeclaredAmount = 1_700_000

	result, err := Evaluate(testConfig(), GatePrePayment, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Released {
		t.Fatalf("expected blocked on amount mismatch")
	}
	if len(result.Reasons) != 1 {
		t.Fatalf("expected exactly one reason, got %v", result.Reasons)
	}
}

func TestGatePrePaymentGenericDescription(t *testing.T) {
	in := prePaymentInput()
	in.Documents[1].Description = "Payment for services"

	result, err := Evaluate(testConfig(), GatePrePayment, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Released {
		t.Fatalf("expected blocked on generic description")
	}
}

func TestGatePrePaymentSecondPaymentDocumentQualifies(t *testing.T) {
	// A generic payment document ahead of a proper one must not block: the
	// requirement is satisfied by any non-generic payment document, and that
	// document carries the amount-agreement check.
	in := prePaymentInput()
	generic := types.Document{
		Type:           "proof_of_payment",
		Name:           "wire-2026-01-05.pdf",
		Description:    "payment for services",
		DeclaredAmount: 1_200_000,
	}
	in.Documents = []types.Document{in.Documents[0], generic, in.Documents[1]}

	result, err := Evaluate(testConfig(), GatePrePayment, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Released {
		t.Fatalf("expected released, reasons: %v", result.Reasons)
	}
}

func TestGatePrePaymentAllPaymentDocumentsGeneric(t *testing.T) {
	in := prePaymentInput()
	in.Documents[1].Description = "misc"
	in.Documents = append(in.Documents, types.Document{
		Type:           "proof_of_payment",
		Name:           "wire-2026-02-20.pdf",
		Description:    "payment for services",
		DeclaredAmount: 1_540_000,
	})

	result, err := Evaluate(testConfig(), GatePrePayment, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Released {
		t.Fatalf("expected blocked when every payment document is generic")
	}
	if len(result.Reasons) != 1 {
		t.Fatalf("expected exactly one reason, got %v", result.Reasons)
	}
}

func TestGatePrePaymentMissingPaymentEvidence(t *testing.T) {
	in := prePaymentInput()
	in.Documents = in.Documents[:1]

	result, err := Evaluate(testConfig(), GatePrePayment, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Released {
		t.Fatalf("expected blocked without payment evidence")
	}
}

func TestGateEvaluatesAllRules(t *testing.T) {
	in := preSettlementInput()
	in.EvidencePct = 10
	in.Item.FieldworkSignedOff = false
	in.Item.DocsSignedOff = false
	in.Decisions = nil
	in.Item.Relation = types.RelationIntraGroup

	result, err := Evaluate(testConfig(), GatePreSettlement, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Reasons) != 6 {
		t.Fatalf("expected 6 independent reasons, got %d: %v", len(result.Reasons), result.Reasons)
	}
}

func TestGateDeterministic(t *testing.T) {
	in := preSettlementInput()
	in.EvidencePct = 40
	in.Decisions = nil

	first, err := Evaluate(testConfig(), GatePreSettlement, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Evaluate(testConfig(), GatePreSettlement, in)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("evaluation not deterministic:\n%+v\n%+v", first, again)
		}
	}
}

func TestGateUnknownID(t *testing.T) {
	_, err := Evaluate(testConfig(), "pre_launch", Input{})
	if !errors.Is(err, ErrUnknownGate) {
		t.Fatalf("expected ErrUnknownGate, got %v", err)
	}
}

func TestLatestDecisionWinsByVersion(t *testing.T) {
	in := preExecutionInput()
	in.Decisions = append(in.Decisions,
		decision("sponsor", types.PhaseIntake, types.DecisionReject, 2),
		decision("sponsor", types.PhaseIntake, types.DecisionApprove, 3),
	)

	result, err := Evaluate(testConfig(), GatePreExecution, in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Released {
		t.Fatalf("latest sponsor decision approves, expected released: %v", result.Reasons)
	}
}
