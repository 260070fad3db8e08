package ledger

import (
	"crypto/ed25519"
	"errors"

	"github.com/gatewise/gatewise/internal/crypto"
)

var (
	ErrSnapshotDigestMismatch = errors.New("snapshot content hash mismatch")
	ErrSnapshotSignature      = errors.New("snapshot signature invalid")
	ErrSnapshotUnsigned       = errors.New("snapshot is unsigned")
)

// VerifySnapshot recomputes the content hash from the stored body and, when
// a public key is supplied, checks the Ed25519 seal. A mismatch is tamper
// evidence: stored versions are immutable by contract.
func VerifySnapshot(snap Snapshot, publicKey ed25519.PublicKey) error {
	digestBytes := crypto.DigestBytes(snap.BodyJSON)
	if snap.ContentHash != crypto.DigestWithPrefix(snap.BodyJSON) {
		return ErrSnapshotDigestMismatch
	}

	if publicKey == nil {
		return nil
	}
	if len(snap.Sig) == 0 {
		return ErrSnapshotUnsigned
	}

	ok, err := crypto.VerifyEd25519(publicKey, digestBytes, snap.Sig)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSnapshotSignature
	}
	return nil
}
