package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDigestWithPrefix(t *testing.T) {
	digest := DigestWithPrefix([]byte("gatewise"))
	if !strings.HasPrefix(digest, "sha256:") {
		t.Fatalf("expected sha256: prefix, got %s", digest)
	}
	if len(digest) != len("sha256:")+64 {
		t.Fatalf("unexpected digest length: %d", len(digest))
	}
	if digest != DigestWithPrefix([]byte("gatewise")) {
		t.Fatalf("digest not stable")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}

	priv, pub, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	digest := DigestBytes([]byte("snapshot body"))
	sig, err := SignEd25519(priv, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := VerifyEd25519(pub, digest, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature")
	}

	ok, err = VerifyEd25519(pub, DigestBytes([]byte("tampered")), sig)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if ok {
		t.Fatalf("expected invalid signature for tampered digest")
	}
}

func TestSignRejectsBadDigestLength(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	priv, _, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	if _, err := SignEd25519(priv, []byte("short")); err != ErrInvalidDigestLen {
		t.Fatalf("expected ErrInvalidDigestLen, got %v", err)
	}
}

func TestLoadEd25519KeyHexSeed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}

	path := filepath.Join(t.TempDir(), "seed.key")
	if err := os.WriteFile(path, []byte("hex:"+hex.EncodeToString(seed)), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	priv, pub, err := LoadEd25519Key(path)
	if err != nil {
		t.Fatalf("load key: %v", err)
	}

	wantPriv := ed25519.NewKeyFromSeed(seed)
	if !wantPriv.Equal(priv) {
		t.Fatalf("loaded key mismatch")
	}
	if !wantPriv.Public().(ed25519.PublicKey).Equal(pub) {
		t.Fatalf("loaded public key mismatch")
	}
}
