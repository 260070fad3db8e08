package crypto

import "errors"

// Canonicalization rejects anything that cannot be hashed reproducibly.
var (
	ErrUnsupportedType = errors.New("value cannot be canonicalized")
	ErrFloatNotAllowed = errors.New("non-integer numbers cannot be canonicalized")
	ErrNonStringMapKey = errors.New("map key is not a string")
	ErrKeyCollision    = errors.New("two map keys normalize to the same string")
)

// Ed25519 material checks.
var (
	ErrInvalidSeedSize  = errors.New("ed25519 seed has the wrong size")
	ErrInvalidDigestLen = errors.New("digest has the wrong length for sealing")
)
