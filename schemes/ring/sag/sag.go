// Package sag implements Spontaneous Anonymous Group (SAG) signatures: a non-linkable ring
// signature that lets a signer prove membership in an ad-hoc set of public keys without revealing
// which key is theirs.
package sag

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gtank/ristretto255"

	"github.com/codahale/ringsig/hazmat/hash512"
	"github.com/codahale/ringsig/internal/ringutil"
	"github.com/codahale/ringsig/internal/wire"
)

// ErrInvalidSecretIndex is returned by Sign when secretIndex does not fall within the ring
// produced by inserting the signer's public key into decoys.
var ErrInvalidSecretIndex = errors.New("sag: secret index out of range")

// ErrEmptyRing is returned by Sign when decoys is empty, so the ring would hold only the signer's
// own public key.
var ErrEmptyRing = errors.New("sag: decoy ring is empty")

// Signature is a SAG ring signature.
type Signature struct {
	Challenge *ristretto255.Scalar
	Responses []*ristretto255.Scalar
	Ring      []*ristretto255.Element
}

// Sign produces a SAG signature over message using private key k. decoys is the ring of every
// other member's public key; the signer's own public key k·G is inserted at secretIndex, so the
// signature's ring has length len(decoys)+1. rand supplies uniform randomness (typically
// crypto/rand.Reader).
func Sign(newHasher hash512.New, rand io.Reader, k *ristretto255.Scalar, decoys []*ristretto255.Element, secretIndex int, message []byte) (*Signature, error) {
	n := len(decoys) + 1
	if len(decoys) == 0 {
		return nil, ErrEmptyRing
	}
	if secretIndex < 0 || secretIndex > len(decoys) {
		return nil, ErrInvalidSecretIndex
	}

	ring := ringutil.InsertAt(decoys, ristretto255.NewIdentityElement().ScalarBaseMult(k), secretIndex)

	a, err := ringutil.RandomScalar(rand)
	if err != nil {
		return nil, err
	}

	responses := make([]*ristretto255.Scalar, n)
	for i := range responses {
		responses[i], err = ringutil.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
	}

	challenges := make([]*ristretto255.Scalar, n)

	// H0 = H(pk_0 ‖ ... ‖ pk_{n-1} ‖ msg), forked once per ring index.
	seed := newHasher()
	for _, pk := range ring {
		_, _ = seed.Write(pk.Bytes())
	}
	_, _ = seed.Write(message)

	hashes := make([]hash512.Hasher, n)
	for i := range hashes {
		hashes[i] = seed.Clone()
	}

	next := ringutil.NextIndex(secretIndex, n)
	aG := ristretto255.NewIdentityElement().ScalarBaseMult(a)
	_, _ = hashes[next].Write(aG.Bytes())
	challenges[next] = ringutil.ScalarFromSum(hashes[next].Sum())

	prev := ringutil.PrevIndex(secretIndex, n)
	for i := next; ; {
		term := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{responses[i], challenges[i]},
			[]*ristretto255.Element{ristretto255.NewGeneratorElement(), ring[i]},
		)

		next = ringutil.NextIndex(i, n)
		_, _ = hashes[next].Write(term.Bytes())
		challenges[next] = ringutil.ScalarFromSum(hashes[next].Sum())

		if i == prev {
			break
		}
		i = next
	}

	responses[secretIndex] = ristretto255.NewScalar().Subtract(a, ristretto255.NewScalar().Multiply(challenges[secretIndex], k))

	return &Signature{
		Challenge: challenges[0],
		Responses: responses,
		Ring:      ring,
	}, nil
}

// Verify reports whether sig is a valid SAG signature over message.
func Verify(newHasher hash512.New, sig *Signature, message []byte) bool {
	n := len(sig.Ring)
	if n == 0 || len(sig.Responses) != n {
		return false
	}

	seed := newHasher()
	for _, pk := range sig.Ring {
		_, _ = seed.Write(pk.Bytes())
	}
	_, _ = seed.Write(message)

	reconstructed := sig.Challenge
	for j := 0; j < n; j++ {
		h := seed.Clone()
		term := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{sig.Responses[j], reconstructed},
			[]*ristretto255.Element{ristretto255.NewGeneratorElement(), sig.Ring[j]},
		)
		_, _ = h.Write(term.Bytes())
		reconstructed = ringutil.ScalarFromSum(h.Sum())
	}

	return sig.Challenge.Equal(reconstructed) == 1
}

// Marshal encodes sig per spec.md §6: challenge ‖ len(responses) ‖ responses… ‖ len(ring) ‖ ring….
func (sig *Signature) Marshal() []byte {
	var buf []byte
	buf = wire.AppendScalar(buf, sig.Challenge)
	buf = wire.AppendScalarList(buf, sig.Responses)
	buf = wire.AppendPointList(buf, sig.Ring)
	return buf
}

// Unmarshal decodes a Signature from the encoding produced by Marshal. It reports false on any
// structural or encoding mismatch.
func Unmarshal(b []byte) (*Signature, bool) {
	challenge, b, ok := wire.ReadScalar(b)
	if !ok {
		return nil, false
	}
	responses, b, ok := wire.ReadScalarList(b)
	if !ok {
		return nil, false
	}
	ring, b, ok := wire.ReadPointList(b)
	if !ok || len(b) != 0 {
		return nil, false
	}
	return &Signature{Challenge: challenge, Responses: responses, Ring: ring}, true
}

type jsonSignature struct {
	Challenge string   `json:"challenge"`
	Responses []string `json:"responses"`
	Ring      []string `json:"ring"`
}

// MarshalJSON encodes sig as hex-encoded fields named per spec.md §6.
func (sig *Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonSignature{
		Challenge: wire.ScalarHex(sig.Challenge),
		Responses: wire.ScalarHexList(sig.Responses),
		Ring:      wire.PointHexList(sig.Ring),
	})
}

// UnmarshalJSON decodes a Signature from the encoding produced by MarshalJSON.
func (sig *Signature) UnmarshalJSON(data []byte) error {
	var js jsonSignature
	if err := json.Unmarshal(data, &js); err != nil {
		return err
	}
	challenge, err := wire.ScalarFromHex(js.Challenge)
	if err != nil {
		return err
	}
	responses, err := wire.ScalarsFromHexList(js.Responses)
	if err != nil {
		return err
	}
	ring, err := wire.PointsFromHexList(js.Ring)
	if err != nil {
		return err
	}
	sig.Challenge, sig.Responses, sig.Ring = challenge, responses, ring
	return nil
}

