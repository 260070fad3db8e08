package ledger

import (
	"fmt"

	"github.com/gatewise/gatewise/internal/crypto"
	"github.com/gatewise/gatewise/pkg/types"
)

const SnapshotSchema = "gatewise.snapshot.v1"

// SnapshotInput is the state to freeze into the next version.
type SnapshotInput struct {
	Fields      map[string]any
	Documents   []types.Document
	Reason      string
	ArtifactRef string
	Actor       string
}

// CreateVersion freezes the supplied state as version latest+1. The content
// hash covers the canonical {fields, documents} body, so two identical
// states always hash identically. When signer is non-nil the digest is
// sealed with Ed25519. A ledger entry describing the version is appended
// after the version write; the two are deliberately not atomic.
func CreateVersion(store Store, signer Signer, workItemID string, in SnapshotInput, createdAt string) (Snapshot, error) {
	if workItemID == "" {
		return Snapshot{}, fmt.Errorf("missing work item id")
	}
	if in.Reason == "" {
		return Snapshot{}, fmt.Errorf("missing snapshot reason")
	}

	fieldsJSON, err := crypto.Canonicalize(in.Fields)
	if err != nil {
		return Snapshot{}, fmt.Errorf("canonicalize fields: %w", err)
	}
	docsView := documentViews(in.Documents)
	docsJSON, err := crypto.Canonicalize(docsView)
	if err != nil {
		return Snapshot{}, fmt.Errorf("canonicalize documents: %w", err)
	}

	body := map[string]any{
		"schema":    SnapshotSchema,
		"fields":    in.Fields,
		"documents": docsView,
	}
	bodyJSON, err := crypto.Canonicalize(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("canonicalize snapshot body: %w", err)
	}

	contentHash := crypto.DigestWithPrefix(bodyJSON)

	var keyID string
	var sig []byte
	if signer != nil {
		sig, err = signer.SignEd25519(crypto.DigestBytes(bodyJSON))
		if err != nil {
			return Snapshot{}, fmt.Errorf("seal snapshot: %w", err)
		}
		keyID = signer.KeyID()
	}

	var snap Snapshot
	err = store.WithTx(func(tx Tx) error {
		if _, ok := tx.GetWorkItem(workItemID); !ok {
			return fmt.Errorf("%w: work item %s", ErrNotFound, workItemID)
		}

		latest, err := tx.LatestSnapshotVersion(workItemID)
		if err != nil {
			return err
		}

		snap = Snapshot{
			WorkItemID:    workItemID,
			Version:       latest + 1,
			ContentHash:   contentHash,
			BodyJSON:      bodyJSON,
			FieldsJSON:    fieldsJSON,
			DocumentsJSON: docsJSON,
			Reason:        in.Reason,
			ArtifactRef:   in.ArtifactRef,
			KeyID:         keyID,
			Sig:           sig,
			CreatedAt:     createdAt,
		}
		return tx.PutSnapshot(snap)
	})
	if err != nil {
		return Snapshot{}, err
	}

	actor := in.Actor
	if actor == "" {
		actor = "system"
	}
	_, err = AppendEntry(store, workItemID, AppendInput{
		Actor:    actor,
		Category: "version",
		Title:    fmt.Sprintf("version %d created", snap.Version),
		Body:     in.Reason,
		Severity: SeverityInfo,
		After:    map[string]any{"version": snap.Version, "content_hash": snap.ContentHash},
	}, createdAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("log version creation: %w", err)
	}

	return snap, nil
}

// GetVersion fetches one stored version, surfacing NotFound directly.
func GetVersion(store Store, workItemID string, version int) (Snapshot, error) {
	snap, ok := store.GetSnapshot(workItemID, version)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: work item %s version %d", ErrNotFound, workItemID, version)
	}
	return snap, nil
}

// documentViews builds the canonicalizable view of the document list.
// Structs are never canonicalized directly; the view pins the field set.
func documentViews(docs []types.Document) []any {
	views := make([]any, 0, len(docs))
	for _, d := range docs {
		views = append(views, map[string]any{
			"document_id":     d.DocumentID,
			"type":            d.Type,
			"name":            d.Name,
			"description":     d.Description,
			"declared_amount": d.DeclaredAmount,
			"uploaded_at":     d.UploadedAt,
		})
	}
	return views
}
