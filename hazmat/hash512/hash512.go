// Package hash512 provides a cloneable streaming hash façade over the three 64-byte-digest hash
// functions the ring signature schemes are built to work with: SHA-512, Keccak-512, and
// Blake2b-512.
//
// The Fiat–Shamir construction used by every scheme in this module (see schemes/ring) repeatedly
// forks a hash instance mid-stream: a common prefix is hashed once, then cloned so that several
// different suffixes can be appended and finalized independently without re-hashing the prefix.
// Hasher exposes exactly that operation.
package hash512

import (
	"crypto/sha512"
	"encoding"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Hasher is a streaming hash function with a 64-byte digest and the ability to fork its state
// mid-stream.
type Hasher interface {
	// Write absorbs p into the hash state. It never returns an error.
	Write(p []byte) (n int, err error)

	// Clone returns an independent copy of the Hasher's current state. Writes to the clone do not
	// affect the receiver, and vice versa.
	Clone() Hasher

	// Sum returns the 64-byte digest of everything written so far, without altering the Hasher's
	// state, so that Write may be called again afterward.
	Sum() [64]byte
}

// New is a hasher factory: a capability object that produces fresh Hasher instances. Schemes in
// this module take a New value rather than a concrete hash function so that callers can choose
// SHA-512, Keccak-512, Blake2b-512, or any other 64-byte hash satisfying Hasher.
type New func() Hasher

// NewSHA512 constructs a Hasher backed by the standard library's SHA-512.
func NewSHA512() Hasher {
	return wrap(sha512.New, sha512.New())
}

// NewKeccak512 constructs a Hasher backed by the original (pre-NIST, non-SHA3-padded) Keccak-512
// construction, as used by Monero, Ethereum, and the ring signature literature this module's
// schemes are drawn from.
func NewKeccak512() Hasher {
	return wrap(sha3.NewLegacyKeccak512, sha3.NewLegacyKeccak512())
}

// NewBlake2b512 constructs a Hasher backed by unkeyed Blake2b-512.
func NewBlake2b512() Hasher {
	new := func() hash.Hash {
		h, err := blake2b.New512(nil)
		if err != nil {
			// New512(nil) only fails for an oversized key, and we never supply one.
			panic(err)
		}
		return h
	}
	return wrap(new, new())
}

// marshalHasher adapts a standard library hash.Hash implementing encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler into a Hasher. Cloning is implemented as a marshal/unmarshal
// round-trip into a freshly constructed instance, since none of SHA-512, Keccak-512, or Blake2b-512
// expose their internal state as a plain struct the way hazmat/turboshake does.
type marshalHasher struct {
	h   hash.Hash
	new func() hash.Hash
}

func wrap(new func() hash.Hash, h hash.Hash) Hasher {
	return &marshalHasher{h: h, new: new}
}

func (m *marshalHasher) Write(p []byte) (int, error) {
	return m.h.Write(p)
}

func (m *marshalHasher) Sum() [64]byte {
	var out [64]byte
	copy(out[:], m.h.Sum(nil))
	return out
}

func (m *marshalHasher) Clone() Hasher {
	marshaler, ok := m.h.(encoding.BinaryMarshaler)
	if !ok {
		panic("hash512: underlying hash does not support cloning")
	}

	state, err := marshaler.MarshalBinary()
	if err != nil {
		panic(err)
	}

	clone := m.new()
	if err := clone.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		panic(err)
	}

	return &marshalHasher{h: clone, new: m.new}
}
