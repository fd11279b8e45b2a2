// Package blsag implements Back's Linkable Spontaneous Anonymous Group (bLSAG) signatures: a ring
// signature that additionally produces a key image, letting any verifier detect when two
// signatures were produced by the same signer without learning which ring member they are.
package blsag

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
var ErrInvalidSecretIndex = errors.New("blsag: secret index out of range")

// ErrEmptyRing is returned by Sign when decoys is empty, so the ring would hold only the signer's
// own public key.
var ErrEmptyRing = errors.New("blsag: decoy ring is empty")

// Signature is a bLSAG ring signature.
type Signature struct {
	Challenge *ristretto255.Scalar
	Responses []*ristretto255.Scalar
	Ring      []*ristretto255.Element
	KeyImage  *ristretto255.Element
}

// GenerateKeyImage derives the key image I = k·H_p(compress(k·G)) for private key k. Two
// signatures produced with the same k and newHasher always carry the same key image.
func GenerateKeyImage(newHasher hash512.New, k *ristretto255.Scalar) *ristretto255.Element {
	kPoint := ristretto255.NewIdentityElement().ScalarBaseMult(k)
	hp := ringutil.HashToPoint(newHasher, kPoint.Bytes())
	return ristretto255.NewIdentityElement().ScalarMult(k, hp)
}

// Sign produces a bLSAG signature over message using private key k. decoys is the ring of every
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

	kPoint := ristretto255.NewIdentityElement().ScalarBaseMult(k)
	keyImage := GenerateKeyImage(newHasher, k)

	ring := ringutil.InsertAt(decoys, kPoint, secretIndex)

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

	// Each per-step hash is forked from a message-only seed, not a ring-wide one.
	seed := newHasher()
	_, _ = seed.Write(message)

	hashes := make([]hash512.Hasher, n)
	for i := range hashes {
		hashes[i] = seed.Clone()
	}

	kHp := ringutil.HashToPoint(newHasher, kPoint.Bytes())

	next := ringutil.NextIndex(secretIndex, n)
	aG := ristretto255.NewIdentityElement().ScalarBaseMult(a)
	aHp := ristretto255.NewIdentityElement().ScalarMult(a, kHp)
	_, _ = hashes[next].Write(aG.Bytes())
	_, _ = hashes[next].Write(aHp.Bytes())
	challenges[next] = ringutil.ScalarFromSum(hashes[next].Sum())

	prev := ringutil.PrevIndex(secretIndex, n)
	for i := next; ; {
		term1 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{responses[i], challenges[i]},
			[]*ristretto255.Element{ristretto255.NewGeneratorElement(), ring[i]},
		)
		hp := ringutil.HashToPoint(newHasher, ring[i].Bytes())
		term2 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{responses[i], challenges[i]},
			[]*ristretto255.Element{hp, keyImage},
		)

		next = ringutil.NextIndex(i, n)
		_, _ = hashes[next].Write(term1.Bytes())
		_, _ = hashes[next].Write(term2.Bytes())
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
		KeyImage:  keyImage,
	}, nil
}

// Verify reports whether sig is a valid bLSAG signature over message.
func Verify(newHasher hash512.New, sig *Signature, message []byte) bool {
	n := len(sig.Ring)
	if n == 0 || len(sig.Responses) != n {
		return false
	}

	reconstructed := sig.Challenge
	for j := 0; j < n; j++ {
		h := newHasher()
		_, _ = h.Write(message)

		term1 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{sig.Responses[j], reconstructed},
			[]*ristretto255.Element{ristretto255.NewGeneratorElement(), sig.Ring[j]},
		)
		hp := ringutil.HashToPoint(newHasher, sig.Ring[j].Bytes())
		term2 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{sig.Responses[j], reconstructed},
			[]*ristretto255.Element{hp, sig.KeyImage},
		)

		_, _ = h.Write(term1.Bytes())
		_, _ = h.Write(term2.Bytes())
		reconstructed = ringutil.ScalarFromSum(h.Sum())
	}

	return sig.Challenge.Equal(reconstructed) == 1
}

// Link reports whether a and b were produced by the same private key, regardless of the rings or
// messages either signature used.
func Link(a, b *Signature) bool {
	return a.KeyImage.Equal(b.KeyImage) == 1
}

// Marshal encodes sig per spec.md §6: SAG encoding ‖ key_image.
func (sig *Signature) Marshal() []byte {
	var buf []byte
	buf = wire.AppendScalar(buf, sig.Challenge)
	buf = wire.AppendScalarList(buf, sig.Responses)
	buf = wire.AppendPointList(buf, sig.Ring)
	buf = wire.AppendPoint(buf, sig.KeyImage)
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
	if !ok {
		return nil, false
	}
	keyImage, b, ok := wire.ReadPoint(b)
	if !ok || len(b) != 0 {
		return nil, false
	}
	return &Signature{Challenge: challenge, Responses: responses, Ring: ring, KeyImage: keyImage}, true
}

type jsonSignature struct {
	Challenge string   `json:"challenge"`
	Responses []string `json:"responses"`
	Ring      []string `json:"ring"`
	KeyImage  string   `json:"key_image"`
}

// MarshalJSON encodes sig as hex-encoded fields named per spec.md §6.
func (sig *Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonSignature{
		Challenge: wire.ScalarHex(sig.Challenge),
		Responses: wire.ScalarHexList(sig.Responses),
		Ring:      wire.PointHexList(sig.Ring),
		KeyImage:  wire.PointHex(sig.KeyImage),
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
	keyImage, err := wire.PointFromHex(js.KeyImage)
	if err != nil {
		return err
	}
	sig.Challenge, sig.Responses, sig.Ring, sig.KeyImage = challenge, responses, ring, keyImage
	return nil
}
