package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatewise/gatewise/internal/auth"
	"github.com/gatewise/gatewise/internal/checklist"
	"github.com/gatewise/gatewise/internal/gate"
	"github.com/gatewise/gatewise/internal/ledger"
	"github.com/gatewise/gatewise/internal/rolereq"
	"github.com/gatewise/gatewise/pkg/types"
)

type Handler struct {
	Auth    auth.Authenticator
	Service *Service
	Now     func() string
}

func NewHandler(a auth.Authenticator, svc *Service) *Handler {
	return &Handler{
		Auth:    a,
		Service: svc,
		Now:     func() string { return time.Now().UTC().Format(time.RFC3339) },
	}
}

func (h *Handler) CreateWorkItem(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req CreateWorkItemRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	item, err := h.Service.CreateWorkItem(req, h.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) GetWorkItem(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	item, err := h.Service.GetWorkItem(chi.URLParam(r, "workItemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) SetFlags(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req FlagsRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	item, err := h.Service.SetFlags(chi.URLParam(r, "workItemID"), r.Header.Get("X-Actor"), req, h.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type decisionRequest struct {
	RoleID string         `json:"role_id"`
	Phase  string         `json:"phase"`
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
}

func (h *Handler) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req decisionRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	record, err := h.Service.SubmitDecision(ledger.SubmitDecisionInput{
		WorkItemID: chi.URLParam(r, "workItemID"),
		RoleID:     req.RoleID,
		Phase:      req.Phase,
		Status:     req.Status,
		Output:     req.Output,
	}, h.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	records, err := h.Service.ListDecisions(chi.URLParam(r, "workItemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": records})
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req AdvanceRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	result, err := h.Service.Advance(chi.URLParam(r, "workItemID"), req, h.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) EvaluateGate(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req AdvanceRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	result, err := h.Service.EvaluateGate(chi.URLParam(r, "workItemID"), chi.URLParam(r, "gateID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type checklistRequest struct {
	Phase     string           `json:"phase,omitempty"`
	Documents []types.Document `json:"documents"`
}

func (h *Handler) ValidateChecklist(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req checklistRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	result, err := h.Service.ValidateChecklist(chi.URLParam(r, "workItemID"), types.Phase(req.Phase), req.Documents)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type contextRequest struct {
	Context map[string]any `json:"context"`
}

func (h *Handler) ValidateContext(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req contextRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	result, err := h.Service.ValidateContext(chi.URLParam(r, "roleID"), req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req ReadinessRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	result, err := h.Service.Readiness(chi.URLParam(r, "workItemID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type auditRequest struct {
	Actor               string `json:"actor"`
	Category            string `json:"category"`
	Title               string `json:"title"`
	Body                string `json:"body,omitempty"`
	Severity            string `json:"severity"`
	Before              any    `json:"before,omitempty"`
	After               any    `json:"after,omitempty"`
	CounterpartyName    string `json:"counterparty_name,omitempty"`
	CounterpartyChannel string `json:"counterparty_channel,omitempty"`
}

func (h *Handler) AppendAudit(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req auditRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	entry, err := h.Service.AppendAudit(chi.URLParam(r, "workItemID"), ledger.AppendInput{
		Actor:               req.Actor,
		Category:            req.Category,
		Title:               req.Title,
		Body:                req.Body,
		Severity:            ledger.Severity(req.Severity),
		Before:              req.Before,
		After:               req.After,
		CounterpartyName:    req.CounterpartyName,
		CounterpartyChannel: req.CounterpartyChannel,
	}, h.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	q := ledger.AuditQuery{
		Category: r.URL.Query().Get("category"),
		From:     r.URL.Query().Get("from"),
		To:       r.URL.Query().Get("to"),
	}
	if raw := r.URL.Query().Get("min_severity"); raw != "" {
		severity, err := ledger.ParseSeverity(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		q.MinSeverity = severity
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		q.Limit = limit
	}
	entries, err := h.Service.QueryAudit(chi.URLParam(r, "workItemID"), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": auditViews(entries)})
}

type versionRequest struct {
	Fields      map[string]any   `json:"fields"`
	Documents   []types.Document `json:"documents"`
	Reason      string           `json:"reason"`
	ArtifactRef string           `json:"artifact_ref,omitempty"`
}

func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	var req versionRequest
	if !decodeBody(w, r.Body, &req) {
		return
	}
	snap, err := h.Service.CreateVersion(chi.URLParam(r, "workItemID"), ledger.SnapshotInput{
		Fields:      req.Fields,
		Documents:   req.Documents,
		Reason:      req.Reason,
		ArtifactRef: req.ArtifactRef,
		Actor:       r.Header.Get("X-Actor"),
	}, h.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotView(snap))
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	version, ok := versionParam(w, r, "version")
	if !ok {
		return
	}
	snap, err := h.Service.GetVersion(chi.URLParam(r, "workItemID"), version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(snap))
}

func (h *Handler) VerifyVersion(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	version, ok := versionParam(w, r, "version")
	if !ok {
		return
	}
	workItemID := chi.URLParam(r, "workItemID")
	err := h.Service.VerifyVersion(workItemID, version)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, err)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"work_item_id": workItemID, "version": version, "valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"work_item_id": workItemID, "version": version, "valid": true})
}

func (h *Handler) DiffVersions(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	from, ok := versionParam(w, r, "version")
	if !ok {
		return
	}
	to, ok := versionParam(w, r, "to")
	if !ok {
		return
	}
	diff, err := h.Service.DiffVersions(chi.URLParam(r, "workItemID"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ensureAuth(w http.ResponseWriter, r *http.Request) bool {
	_, err := h.Auth.Authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func versionParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || version < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version"})
		return 0, false
	}
	return version, true
}

// decodeBody decodes JSON with UseNumber so numeric payload fields survive
// canonicalization: a plain Decode would hand every number over as float64.
func decodeBody(w http.ResponseWriter, body io.Reader, v any) bool {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, checklist.ErrUnknownTypology),
		errors.Is(err, rolereq.ErrUnknownRole),
		errors.Is(err, gate.ErrUnknownGate):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

type auditView struct {
	Seq                 int64           `json:"seq"`
	Actor               string          `json:"actor"`
	Category            string          `json:"category"`
	Title               string          `json:"title"`
	Body                string          `json:"body,omitempty"`
	Severity            ledger.Severity `json:"severity"`
	Before              json.RawMessage `json:"before,omitempty"`
	After               json.RawMessage `json:"after,omitempty"`
	CounterpartyName    string          `json:"counterparty_name,omitempty"`
	CounterpartyChannel string          `json:"counterparty_channel,omitempty"`
	CreatedAt           string          `json:"created_at"`
}

func auditViews(entries []ledger.AuditEntry) []auditView {
	out := make([]auditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditView{
			Seq:                 e.Seq,
			Actor:               e.Actor,
			Category:            e.Category,
			Title:               e.Title,
			Body:                e.Body,
			Severity:            e.Severity,
			Before:              json.RawMessage(e.BeforeJSON),
			After:               json.RawMessage(e.AfterJSON),
			CounterpartyName:    e.CounterpartyName,
			CounterpartyChannel: e.CounterpartyChannel,
			CreatedAt:           e.CreatedAt,
		})
	}
	return out
}

type snapshotVersionView struct {
	WorkItemID  string          `json:"work_item_id"`
	Version     int             `json:"version"`
	ContentHash string          `json:"content_hash"`
	Fields      json.RawMessage `json:"fields"`
	Documents   json.RawMessage `json:"documents"`
	Reason      string          `json:"reason"`
	ArtifactRef string          `json:"artifact_ref,omitempty"`
	KeyID       string          `json:"key_id,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

func snapshotView(snap ledger.Snapshot) snapshotVersionView {
	return snapshotVersionView{
		WorkItemID:  snap.WorkItemID,
		Version:     snap.Version,
		ContentHash: snap.ContentHash,
		Fields:      json.RawMessage(snap.FieldsJSON),
		Documents:   json.RawMessage(snap.DocumentsJSON),
		Reason:      snap.Reason,
		ArtifactRef: snap.ArtifactRef,
		KeyID:       snap.KeyID,
		CreatedAt:   snap.CreatedAt,
	}
}
