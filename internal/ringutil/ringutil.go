// Package ringutil holds the small pieces of arithmetic every scheme in schemes/ring shares: the
// Fiat–Shamir loop's index bookkeeping (spec.md §4.5) and uniform scalar sampling from an RNG
// façade (spec.md §6).
package ringutil

import (
	"fmt"
	"io"

	"github.com/gtank/ristretto255"

	"github.com/codahale/ringsig/hazmat/hash512"
)

// RandomScalar reads 64 bytes from rand and reduces them to a uniform scalar mod ℓ, the same
// hedged-sampling idiom the teacher uses for nonce generation (see schemes/complex/sig.Sign and
// schemes/complex/oprf.generateProof in the teacher repo this module is adapted from).
func RandomScalar(rand io.Reader) (*ristretto255.Scalar, error) {
	var buf [64]byte
	if _, err := io.ReadFull(rand, buf[:]); err != nil {
		return nil, fmt.Errorf("ringutil: reading randomness: %w", err)
	}
	s, err := ristretto255.NewScalar().SetUniformBytes(buf[:])
	if err != nil {
		// SetUniformBytes only fails given fewer than 64 bytes, which io.ReadFull rules out.
		panic(err)
	}
	return s, nil
}

// PrevIndex returns the index immediately before secretIndex in an n-member cycle: (secretIndex -
// 1) mod n, computed without relying on Go's negative-aware % for the secretIndex == 0 case.
func PrevIndex(secretIndex, n int) int {
	return (secretIndex - 1 + n) % n
}

// NextIndex returns the index immediately after i in an n-member cycle.
func NextIndex(i, n int) int {
	return (i + 1) % n
}

// ScalarFromSum reduces a 64-byte hash digest to a uniform scalar mod ℓ — the H_s construction of
// spec.md §4.
func ScalarFromSum(sum [64]byte) *ristretto255.Scalar {
	s, _ := ristretto255.NewScalar().SetUniformBytes(sum[:])
	return s
}

// HashToPoint computes H_p(data): a fresh hash of data reduced to a uniform group element, used by
// the linkable schemes to derive each ring member's key-image base point from its public key.
func HashToPoint(newHasher hash512.New, data []byte) *ristretto255.Element {
	h := newHasher()
	_, _ = h.Write(data)
	sum := h.Sum()
	p, _ := ristretto255.NewIdentityElement().SetUniformBytes(sum[:])
	return p
}

// InsertAt returns a new slice with v inserted into items at index i, used by every scheme's Sign
// to place the signer's own public key(s) into the caller-supplied decoy ring at secretIndex.
func InsertAt[T any](items []T, v T, i int) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, v)
	out = append(out, items[i:]...)
	return out
}
