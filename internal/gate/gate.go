// Package gate implements the three hard release gates. Evaluation is pure
// and stateless: same inputs give the same result, every applicable rule is
// evaluated, and each failing rule contributes its own blocking reason.
package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gatewise/gatewise/pkg/types"
)

// Gate identifiers. Each gate guards the exit of one designated phase.
const (
	GatePreExecution  = "pre_execution"
	GatePreSettlement = "pre_settlement"
	GatePrePayment    = "pre_payment"
)

var ErrUnknownGate = errors.New("unknown gate")

var gatePhases = map[string]types.Phase{
	GatePreExecution:  types.PhaseExecApproval,
	GatePreSettlement: types.PhaseSettlementAuth,
	GatePrePayment:    types.PhasePaymentAuth,
}

// PhaseOf returns the phase a gate guards.
func PhaseOf(gateID string) (types.Phase, bool) {
	p, ok := gatePhases[gateID]
	return p, ok
}

// GateFor returns the gate guarding the exit of a phase, if any.
func GateFor(p types.Phase) (string, bool) {
	for id, gp := range gatePhases {
		if gp == p {
			return id, true
		}
	}
	return "", false
}

// Config holds the gate precondition thresholds. The tolerance and evidence
// percentages are deployment configuration, not business constants.
type Config struct {
	LargeAmountThreshold int64    `yaml:"large_amount_threshold"`
	HighRiskThreshold    int64    `yaml:"high_risk_threshold"`
	MinEvidencePct       int64    `yaml:"min_evidence_pct"`
	AmountTolerancePct   float64  `yaml:"amount_tolerance_pct"`
	GenericPhrases       []string `yaml:"generic_payment_phrases"`
}

// Input is the single-point-in-time snapshot a gate is evaluated over. The
// caller is responsible for snapshot consistency; the verifier trusts it.
type Input struct {
	Item             types.WorkItem
	Decisions        []types.DecisionRecord
	Documents        []types.Document
	EvidencePct      int64
	TypologyHighRisk bool
}

// Result is the ephemeral outcome of one gate evaluation. It is never
// cached; it reflects only the inputs of the call that produced it.
type Result struct {
	GateID   string   `json:"gate_id"`
	Released bool     `json:"released"`
	Reasons  []string `json:"reasons"`
}

// Evaluate runs the precondition set of one gate over the supplied snapshot.
// All rules are checked; there is no short-circuit on first failure.
func Evaluate(cfg Config, gateID string, in Input) (Result, error) {
	result := Result{GateID: gateID, Reasons: []string{}}

	switch gateID {
	case GatePreExecution:
		evaluatePreExecution(cfg, in, &result)
	case GatePreSettlement:
		evaluatePreSettlement(cfg, in, &result)
	case GatePrePayment:
		evaluatePrePayment(cfg, in, &result)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownGate, gateID)
	}

	result.Released = len(result.Reasons) == 0
	return result, nil
}

func evaluatePreExecution(cfg Config, in Input, result *Result) {
	checkPhaseReached(in, GatePreExecution, result)

	if d := latestDecision(in.Decisions, "fiscal", types.PhaseBudgeting); d == nil {
		result.Reasons = append(result.Reasons, "budget confirmation decision by fiscal at budgeting is missing")
	} else if d.Status != types.DecisionApprove {
		result.Reasons = append(result.Reasons, fmt.Sprintf("budget confirmation decision is %s, approve is required", d.Status))
	}

	checkHumanReview(cfg, in, result)

	for _, roleID := range []string{"sponsor", "legal"} {
		checkApproval(in, roleID, types.PhaseIntake, result)
	}
}

func evaluatePreSettlement(cfg Config, in Input, result *Result) {
	checkPhaseReached(in, GatePreSettlement, result)

	if in.EvidencePct < cfg.MinEvidencePct {
		result.Reasons = append(result.Reasons, fmt.Sprintf("evidence completeness %d%% is below the required %d%%", in.EvidencePct, cfg.MinEvidencePct))
	}
	if !in.Item.FieldworkSignedOff {
		result.Reasons = append(result.Reasons, "fieldwork sign-off is not recorded")
	}
	if !in.Item.DocsSignedOff {
		result.Reasons = append(result.Reasons, "documentation sign-off is not recorded")
	}

	for _, roleID := range []string{"legal", "fiscal"} {
		checkApproval(in, roleID, types.PhaseSettlementAuth, result)
	}

	if in.Item.Relation != types.RelationIndependent {
		if countDocMatches(in.Documents, "transfer pricing") == 0 {
			result.Reasons = append(result.Reasons, fmt.Sprintf("counterparty relation is %s and no transfer pricing study is on file", in.Item.Relation))
		}
	}
}

func evaluatePrePayment(cfg Config, in Input, result *Result) {
	checkPhaseReached(in, GatePrePayment, result)

	// The requirement is existential: one non-generic payment document
	// satisfies it, no matter how many generic ones sit beside it. The
	// qualifying document also carries the amount-agreement check.
	payments := matchDocuments(in.Documents, "payment")
	var payment *types.Document
	for _, p := range payments {
		if _, generic := genericPhrase(cfg, *p); !generic {
			payment = p
			break
		}
	}
	switch {
	case len(payments) == 0:
		result.Reasons = append(result.Reasons, "no payment evidence document is on file")
	case payment == nil:
		phrase, _ := genericPhrase(cfg, *payments[0])
		result.Reasons = append(result.Reasons, fmt.Sprintf("payment evidence description %q is too generic (matches %q)", payments[0].Description, phrase))
	}

	contract := findDocument(in.Documents, "contract")
	if payment != nil && contract != nil && payment.DeclaredAmount > 0 && contract.DeclaredAmount > 0 {
		if !withinTolerance(payment.DeclaredAmount, contract.DeclaredAmount, cfg.AmountTolerancePct) {
			result.Reasons = append(result.Reasons, fmt.Sprintf(
				"payment amount %d and contract amount %d differ by more than %.1f%%",
				payment.DeclaredAmount, contract.DeclaredAmount, cfg.AmountTolerancePct))
		}
	}

	checkApproval(in, "finance", types.PhasePaymentAuth, result)
}

// checkPhaseReached verifies the item has completed every phase before the
// gate phase, i.e. it currently sits at (or past) the gate phase.
func checkPhaseReached(in Input, gateID string, result *Result) {
	gatePhase := gatePhases[gateID]
	want, _ := types.PhaseIndex(gatePhase)
	have, ok := types.PhaseIndex(in.Item.Phase)
	if !ok {
		result.Reasons = append(result.Reasons, fmt.Sprintf("work item phase %q is not a known phase", in.Item.Phase))
		return
	}
	if have < want {
		result.Reasons = append(result.Reasons, fmt.Sprintf("phase %s has not been reached (current phase %s)", gatePhase, in.Item.Phase))
	}
}

// checkHumanReview enforces the escalation rule shared with the state
// machine: large amount, high risk score, or a high-risk typology all demand
// an obtained human review.
func checkHumanReview(cfg Config, in Input, result *Result) {
	if reason, needed := HumanReviewBlock(cfg, in.Item, in.TypologyHighRisk); needed {
		result.Reasons = append(result.Reasons, reason)
	}
}

// HumanReviewBlock reports the blocking reason when the human-review rule
// applies and the review has not been obtained.
func HumanReviewBlock(cfg Config, item types.WorkItem, typologyHighRisk bool) (string, bool) {
	if item.HumanReviewObtained {
		return "", false
	}
	switch {
	case item.Amount >= cfg.LargeAmountThreshold:
		return fmt.Sprintf("amount %d meets the large-value threshold %d and human review has not been obtained", item.Amount, cfg.LargeAmountThreshold), true
	case item.Risk.Total >= cfg.HighRiskThreshold:
		return fmt.Sprintf("risk score %d meets the high-risk threshold %d and human review has not been obtained", item.Risk.Total, cfg.HighRiskThreshold), true
	case typologyHighRisk:
		return fmt.Sprintf("typology %s is flagged high-risk and human review has not been obtained", item.Typology), true
	default:
		return "", false
	}
}

func checkApproval(in Input, roleID string, phase types.Phase, result *Result) {
	d := latestDecision(in.Decisions, roleID, phase)
	switch {
	case d == nil:
		result.Reasons = append(result.Reasons, fmt.Sprintf("no decision from %s at %s", roleID, phase))
	case !d.Status.Approving():
		result.Reasons = append(result.Reasons, fmt.Sprintf("%s decision at %s is %s, approval is required", roleID, phase, d.Status))
	}
}

// latestDecision returns the highest-version decision for (role, phase), or
// nil when the role has not decided there.
func latestDecision(decisions []types.DecisionRecord, roleID string, phase types.Phase) *types.DecisionRecord {
	var latest *types.DecisionRecord
	for i := range decisions {
		d := &decisions[i]
		if d.RoleID != roleID || d.Phase != phase {
			continue
		}
		if latest == nil || d.Version > latest.Version {
			latest = d
		}
	}
	return latest
}

// findDocument returns the first document whose type, description, or name
// contains needle, case-insensitively.
func findDocument(docs []types.Document, needle string) *types.Document {
	matches := matchDocuments(docs, needle)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// matchDocuments returns every document whose type, description, or name
// contains needle, case-insensitively, in input order.
func matchDocuments(docs []types.Document, needle string) []*types.Document {
	needle = strings.ToLower(needle)
	var matches []*types.Document
	for i := range docs {
		d := &docs[i]
		if strings.Contains(strings.ToLower(d.Type), needle) ||
			strings.Contains(strings.ToLower(d.Description), needle) ||
			strings.Contains(strings.ToLower(d.Name), needle) {
			matches = append(matches, d)
		}
	}
	return matches
}

func countDocMatches(docs []types.Document, needle string) int {
	needle = strings.ToLower(needle)
	count := 0
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Type), needle) ||
			strings.Contains(strings.ToLower(d.Description), needle) ||
			strings.Contains(strings.ToLower(d.Name), needle) {
			count++
		}
	}
	return count
}

func genericPhrase(cfg Config, doc types.Document) (string, bool) {
	desc := strings.ToLower(doc.Description)
	for _, phrase := range cfg.GenericPhrases {
		if phrase != "" && strings.Contains(desc, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}

// withinTolerance checks relative agreement of two declared amounts against
// a percentage tolerance, relative to the contract amount.
func withinTolerance(payment, contract int64, tolerancePct float64) bool {
	if contract == 0 {
		return payment == 0
	}
	delta := payment - contract
	if delta < 0 {
		delta = -delta
	}
	return float64(delta)/float64(contract)*100 <= tolerancePct
}
