// Package phase drives the forward-only workflow: one phase step per
// attempt, role approvals checked at every phase, the hard gates checked at
// their designated phases, and the human-review escalation rule checked
// everywhere. Attempts are serialized per work item.
package phase

import (
	"fmt"
	"sync"

	"github.com/gatewise/gatewise/internal/checklist"
	"github.com/gatewise/gatewise/internal/gate"
	"github.com/gatewise/gatewise/internal/ledger"
	"github.com/gatewise/gatewise/internal/rolereq"
	"github.com/gatewise/gatewise/pkg/types"
)

// Context is the single-point-in-time snapshot an advance attempt is
// evaluated over. The persistence boundary guarantees its consistency; the
// evaluators trust it.
type Context struct {
	Item        types.WorkItem
	Decisions   []types.DecisionRecord
	Documents   []types.Document
	EvidencePct int64
}

// Result is the outcome of one advance attempt. BlockingReasons is complete:
// every failed check contributes its own reason.
type Result struct {
	Advanced        bool        `json:"advanced"`
	FromPhase       types.Phase `json:"from_phase"`
	ToPhase         types.Phase `json:"to_phase,omitempty"`
	BlockingReasons []string    `json:"blocking_reasons"`
	Warnings        []string    `json:"warnings"`
}

// Advancer orchestrates phase transitions against the ledger store.
type Advancer struct {
	Store      ledger.Store
	Gates      gate.Config
	Checklists checklist.Table
	Roles      rolereq.Table

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAdvancer wires an advancer over a store and the loaded config tables.
func NewAdvancer(store ledger.Store, gates gate.Config, checklists checklist.Table, roles rolereq.Table) *Advancer {
	return &Advancer{
		Store:      store,
		Gates:      gates,
		Checklists: checklists,
		Roles:      roles,
		locks:      make(map[string]*sync.Mutex),
	}
}

// AttemptAdvance tries to move the work item one phase forward. Attempts on
// the same item are mutually exclusive; a snapshot whose phase no longer
// matches the stored phase fails with a conflict and must be retried against
// a fresh snapshot.
func (a *Advancer) AttemptAdvance(workItemID string, ctx Context, now string) (Result, error) {
	lock := a.itemLock(workItemID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := ledger.LoadWorkItem(a.Store, workItemID)
	if err != nil {
		return Result{}, err
	}
	if stored.Phase != ctx.Item.Phase {
		return Result{}, fmt.Errorf("%w: snapshot phase %s, stored phase %s", ledger.ErrConflict, ctx.Item.Phase, stored.Phase)
	}

	current := stored.Phase
	result := Result{FromPhase: current, BlockingReasons: []string{}, Warnings: []string{}}

	if current.Terminal() {
		result.BlockingReasons = append(result.BlockingReasons, fmt.Sprintf("phase %s is terminal and accepts no further transitions", current))
		return result, nil
	}

	highRisk := a.Checklists.HighRisk(ctx.Item.Typology)

	if reason, blocked := gate.HumanReviewBlock(a.Gates, ctx.Item, highRisk); blocked {
		result.BlockingReasons = append(result.BlockingReasons, reason)
	}

	a.checkRoleDecisions(current, ctx, &result)

	if err := a.applyTypologyFindings(current, ctx, &result); err != nil {
		return Result{}, err
	}

	if gateID, gated := gate.GateFor(current); gated {
		gateResult, err := gate.Evaluate(a.Gates, gateID, gate.Input{
			Item:             ctx.Item,
			Decisions:        ctx.Decisions,
			Documents:        ctx.Documents,
			EvidencePct:      ctx.EvidencePct,
			TypologyHighRisk: highRisk,
		})
		if err != nil {
			return Result{}, err
		}
		if !gateResult.Released {
			for _, reason := range gateResult.Reasons {
				result.BlockingReasons = append(result.BlockingReasons, fmt.Sprintf("gate %s: %s", gateID, reason))
			}
		}
	}

	if len(result.BlockingReasons) > 0 {
		return result, nil
	}

	next, _ := types.NextPhase(current)

	// The body is reloaded inside the transaction: only the phase changes,
	// so flag writes committed since the snapshot load are preserved.
	err = a.Store.WithTx(func(tx ledger.Tx) error {
		fresh, err := ledger.LoadWorkItem(tx, workItemID)
		if err != nil {
			return err
		}
		if fresh.Phase != current {
			return fmt.Errorf("%w: phase moved to %s during attempt", ledger.ErrConflict, fresh.Phase)
		}
		fresh.Phase = next
		return ledger.SaveWorkItem(tx, fresh, now)
	})
	if err != nil {
		return Result{}, err
	}

	_, err = ledger.AppendEntry(a.Store, workItemID, ledger.AppendInput{
		Actor:    "system",
		Category: "phase",
		Title:    fmt.Sprintf("advanced from %s to %s", current, next),
		Severity: ledger.SeverityNotice,
		Before:   map[string]any{"phase": string(current)},
		After:    map[string]any{"phase": string(next)},
	}, now)
	if err != nil {
		return Result{}, fmt.Errorf("log phase transition: %w", err)
	}

	result.Advanced = true
	result.ToPhase = next
	return result, nil
}

// checkRoleDecisions enforces the per-phase approval rule: for every role
// required at the phase the latest decision must approve; a request-changes
// decision warns without blocking.
func (a *Advancer) checkRoleDecisions(current types.Phase, ctx Context, result *Result) {
	for _, roleID := range a.Roles.RolesDecidingAt(current) {
		d := latestDecision(ctx.Decisions, roleID, current)
		switch {
		case d == nil:
			result.BlockingReasons = append(result.BlockingReasons, fmt.Sprintf("role %s has not decided at %s", roleID, current))
		case d.Status == types.DecisionRequestChanges:
			result.Warnings = append(result.Warnings, fmt.Sprintf("role %s requested changes at %s", roleID, current))
		case !d.Status.Approving():
			result.BlockingReasons = append(result.BlockingReasons, fmt.Sprintf("role %s decision at %s is %s", roleID, current, d.Status))
		}
	}
}

// applyTypologyFindings folds checklist misses and fired rules into the
// result. Checklist misses and advisory rules are messaging; only a rule
// with the block action stops the transition.
func (a *Advancer) applyTypologyFindings(current types.Phase, ctx Context, result *Result) error {
	clResult, err := a.Checklists.ValidateChecklist(ctx.Item.Typology, current, ctx.Documents)
	if err != nil {
		return err
	}
	for _, missing := range clResult.Missing {
		result.Warnings = append(result.Warnings, fmt.Sprintf("checklist item %q unmatched (%s): %s", missing.Name, missing.Criticality, missing.Criterion))
	}

	hits, err := a.Checklists.EvaluateRules(ctx.Item.Typology, ctx.Item, ctx.Documents)
	if err != nil {
		return err
	}
	for _, hit := range hits {
		switch hit.Action {
		case checklist.ActionBlock:
			result.BlockingReasons = append(result.BlockingReasons, fmt.Sprintf("rule %s: %s", hit.RuleID, hit.Description))
		default:
			result.Warnings = append(result.Warnings, fmt.Sprintf("rule %s recommends %s: %s", hit.RuleID, hit.Action, hit.Description))
		}
	}
	return nil
}

func (a *Advancer) itemLock(workItemID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locks == nil {
		a.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := a.locks[workItemID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[workItemID] = lock
	}
	return lock
}

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
