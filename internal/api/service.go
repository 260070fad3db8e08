// Package api exposes the workflow over HTTP: work item lifecycle, decision
// intake, phase advancement, gate checks, the typology and role validators,
// and the audit ledger.
package api

import (
	"crypto/ed25519"
	"fmt"

	"github.com/google/uuid"

	"github.com/gatewise/gatewise/internal/checklist"
	"github.com/gatewise/gatewise/internal/crypto"
	"github.com/gatewise/gatewise/internal/gate"
	"github.com/gatewise/gatewise/internal/ledger"
	"github.com/gatewise/gatewise/internal/phase"
	"github.com/gatewise/gatewise/internal/readiness"
	"github.com/gatewise/gatewise/internal/rolereq"
	"github.com/gatewise/gatewise/pkg/types"
)

type Service struct {
	Store      ledger.Store
	Signer     ledger.Signer
	PublicKey  ed25519.PublicKey
	Gates      gate.Config
	Checklists checklist.Table
	Roles      rolereq.Table
	Advancer   *phase.Advancer
}

func NewService(store ledger.Store, signer ledger.Signer, publicKey ed25519.PublicKey, gates gate.Config, checklists checklist.Table, roles rolereq.Table) *Service {
	return &Service{
		Store:      store,
		Signer:     signer,
		PublicKey:  publicKey,
		Gates:      gates,
		Checklists: checklists,
		Roles:      roles,
		Advancer:   phase.NewAdvancer(store, gates, checklists, roles),
	}
}

type CreateWorkItemRequest struct {
	WorkItemID string              `json:"work_item_id,omitempty"`
	Typology   string              `json:"typology"`
	Amount     int64               `json:"amount"`
	Relation   types.Relation      `json:"relation"`
	Risk       types.RiskBreakdown `json:"risk"`
}

func (s *Service) CreateWorkItem(req CreateWorkItemRequest, now string) (types.WorkItem, error) {
	if _, ok := s.Checklists.Typology(req.Typology); !ok {
		return types.WorkItem{}, fmt.Errorf("%w: %s", checklist.ErrUnknownTypology, req.Typology)
	}
	if req.Relation == "" {
		req.Relation = types.RelationIndependent
	}
	if !req.Relation.Valid() {
		return types.WorkItem{}, fmt.Errorf("unknown relation %q", req.Relation)
	}
	if req.Amount < 0 {
		return types.WorkItem{}, fmt.Errorf("amount must not be negative")
	}

	id := req.WorkItemID
	if id == "" {
		id = "wi-" + uuid.NewString()
	}

	return ledger.CreateWorkItem(s.Store, types.WorkItem{
		WorkItemID: id,
		Typology:   req.Typology,
		Amount:     req.Amount,
		Relation:   req.Relation,
		Risk:       req.Risk,
	}, now)
}

func (s *Service) GetWorkItem(workItemID string) (types.WorkItem, error) {
	return ledger.LoadWorkItem(s.Store, workItemID)
}

type FlagsRequest struct {
	HumanReviewObtained *bool `json:"human_review_obtained,omitempty"`
	FieldworkSignedOff  *bool `json:"fieldwork_signed_off,omitempty"`
	DocsSignedOff       *bool `json:"docs_signed_off,omitempty"`
}

// SetFlags records the manual sign-off bits. Every change is logged. The
// read-modify-write runs inside one transaction so a phase transition
// committed by a concurrent advance is never overwritten with a stale body.
func (s *Service) SetFlags(workItemID string, actor string, req FlagsRequest, now string) (types.WorkItem, error) {
	var item types.WorkItem
	var before, after map[string]any

	err := s.Store.WithTx(func(tx ledger.Tx) error {
		var err error
		item, err = ledger.LoadWorkItem(tx, workItemID)
		if err != nil {
			return err
		}
		before = signoffState(item)
		if req.HumanReviewObtained != nil {
			item.HumanReviewObtained = *req.HumanReviewObtained
		}
		if req.FieldworkSignedOff != nil {
			item.FieldworkSignedOff = *req.FieldworkSignedOff
		}
		if req.DocsSignedOff != nil {
			item.DocsSignedOff = *req.DocsSignedOff
		}
		after = signoffState(item)
		return ledger.SaveWorkItem(tx, item, now)
	})
	if err != nil {
		return types.WorkItem{}, err
	}

	if actor == "" {
		actor = "system"
	}
	_, err = ledger.AppendEntry(s.Store, workItemID, ledger.AppendInput{
		Actor:    actor,
		Category: "lifecycle",
		Title:    "sign-off flags updated",
		Severity: ledger.SeverityNotice,
		Before:   before,
		After:    after,
	}, now)
	if err != nil {
		return types.WorkItem{}, fmt.Errorf("log flag change: %w", err)
	}
	return item, nil
}

func signoffState(item types.WorkItem) map[string]any {
	return map[string]any{
		"human_review_obtained": item.HumanReviewObtained,
		"fieldwork_signed_off":  item.FieldworkSignedOff,
		"docs_signed_off":       item.DocsSignedOff,
	}
}

type AdvanceRequest struct {
	Documents   []types.Document `json:"documents"`
	EvidencePct int64            `json:"evidence_pct"`
}

func (s *Service) Advance(workItemID string, req AdvanceRequest, now string) (phase.Result, error) {
	item, err := ledger.LoadWorkItem(s.Store, workItemID)
	if err != nil {
		return phase.Result{}, err
	}
	decisions, err := ledger.DecisionsFor(s.Store, workItemID)
	if err != nil {
		return phase.Result{}, err
	}
	return s.Advancer.AttemptAdvance(workItemID, phase.Context{
		Item:        item,
		Decisions:   decisions,
		Documents:   req.Documents,
		EvidencePct: req.EvidencePct,
	}, now)
}

func (s *Service) EvaluateGate(workItemID, gateID string, req AdvanceRequest) (gate.Result, error) {
	item, err := ledger.LoadWorkItem(s.Store, workItemID)
	if err != nil {
		return gate.Result{}, err
	}
	decisions, err := ledger.DecisionsFor(s.Store, workItemID)
	if err != nil {
		return gate.Result{}, err
	}
	return gate.Evaluate(s.Gates, gateID, gate.Input{
		Item:             item,
		Decisions:        decisions,
		Documents:        req.Documents,
		EvidencePct:      req.EvidencePct,
		TypologyHighRisk: s.Checklists.HighRisk(item.Typology),
	})
}

func (s *Service) ValidateChecklist(workItemID string, p types.Phase, docs []types.Document) (checklist.Result, error) {
	item, err := ledger.LoadWorkItem(s.Store, workItemID)
	if err != nil {
		return checklist.Result{}, err
	}
	if p == "" {
		p = item.Phase
	}
	if !p.Valid() {
		return checklist.Result{}, fmt.Errorf("unknown phase %q", p)
	}
	return s.Checklists.ValidateChecklist(item.Typology, p, docs)
}

func (s *Service) ValidateContext(roleID string, tree map[string]any) (rolereq.Result, error) {
	return s.Roles.ValidateContext(roleID, tree)
}

type ReadinessRequest struct {
	Documents []types.Document `json:"documents"`
	Context   map[string]any   `json:"context"`
}

// Readiness grades the work item at its current phase: role completeness for
// every role deciding there, the phase checklist, and the human-review rule.
func (s *Service) Readiness(workItemID string, req ReadinessRequest) (readiness.Result, error) {
	item, err := ledger.LoadWorkItem(s.Store, workItemID)
	if err != nil {
		return readiness.Result{}, err
	}

	clResult, err := s.Checklists.ValidateChecklist(item.Typology, item.Phase, req.Documents)
	if err != nil {
		return readiness.Result{}, err
	}

	contexts := []rolereq.Result{}
	for _, roleID := range s.Roles.RolesDecidingAt(item.Phase) {
		ctxResult, err := s.Roles.ValidateContext(roleID, req.Context)
		if err != nil {
			return readiness.Result{}, err
		}
		contexts = append(contexts, ctxResult)
	}

	_, reviewNeeded := gate.HumanReviewBlock(s.Gates, item, s.Checklists.HighRisk(item.Typology))

	return readiness.Evaluate(readiness.Input{
		Contexts:          contexts,
		Checklist:         clResult,
		HumanReviewNeeded: reviewNeeded,
	}), nil
}

func (s *Service) SubmitDecision(in ledger.SubmitDecisionInput, now string) (types.DecisionRecord, error) {
	return ledger.SubmitDecision(s.Store, in, now)
}

func (s *Service) ListDecisions(workItemID string) ([]types.DecisionRecord, error) {
	return ledger.DecisionsFor(s.Store, workItemID)
}

func (s *Service) AppendAudit(workItemID string, in ledger.AppendInput, now string) (ledger.AuditEntry, error) {
	return ledger.AppendEntry(s.Store, workItemID, in, now)
}

func (s *Service) QueryAudit(workItemID string, q ledger.AuditQuery) ([]ledger.AuditEntry, error) {
	return ledger.QueryEntries(s.Store, workItemID, q)
}

func (s *Service) CreateVersion(workItemID string, in ledger.SnapshotInput, now string) (ledger.Snapshot, error) {
	return ledger.CreateVersion(s.Store, s.Signer, workItemID, in, now)
}

func (s *Service) GetVersion(workItemID string, version int) (ledger.Snapshot, error) {
	return ledger.GetVersion(s.Store, workItemID, version)
}

func (s *Service) VerifyVersion(workItemID string, version int) error {
	snap, err := ledger.GetVersion(s.Store, workItemID, version)
	if err != nil {
		return err
	}
	return ledger.VerifySnapshot(snap, s.PublicKey)
}

func (s *Service) DiffVersions(workItemID string, from, to int) (ledger.VersionDiff, error) {
	return ledger.DiffVersions(s.Store, workItemID, from, to)
}

// KeySigner signs snapshot digests with a fixed ed25519 key.
type KeySigner struct {
	ID  string
	Key ed25519.PrivateKey
}

func (s KeySigner) KeyID() string { return s.ID }

func (s KeySigner) SignEd25519(message []byte) ([]byte, error) {
	return crypto.SignEd25519(s.Key, message)
}
