// Package clsag implements Concise Linkable Spontaneous Anonymous Group (CLSAG) signatures: a
// compressed alternative to MLSAG that proves knowledge of an entire row of a public key matrix
// with one response per row rather than per cell, so the number of responses no longer scales with
// the column count, at the cost of linkability applying only to the first ("primary") column.
package clsag

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/gtank/ristretto255"

	"github.com/codahale/ringsig/hazmat/hash512"
	"github.com/codahale/ringsig/internal/ringutil"
	"github.com/codahale/ringsig/internal/wire"
)

// ErrInvalidSecretIndex is returned by Sign when secretIndex does not fall within the ring
// produced by inserting the signer's public keys into decoys.
var ErrInvalidSecretIndex = errors.New("clsag: secret index out of range")

// ErrRaggedRing is returned when ks is empty, when decoys is not rectangular, or when its column
// count does not match the number of private keys supplied to Sign.
var ErrRaggedRing = errors.New("clsag: ring rows must all have the same column count as ks")

// ErrEmptyRing is returned by Sign when decoys is empty, so the ring would hold only the signer's
// own key row.
var ErrEmptyRing = errors.New("clsag: decoy ring is empty")

// Signature is a CLSAG ring signature over an nr×nc public key matrix, with a single response per
// row rather than per cell.
type Signature struct {
	Challenge *ristretto255.Scalar
	Responses []*ristretto255.Scalar
	Ring      [][]*ristretto255.Element
	KeyImages []*ristretto255.Element
}

// aggregationCoefficients computes μ_j = H_s("CSLAG_" ‖ j ‖ ring(row-major) ‖ key_images) for
// every column j. The "CSLAG_" label (an apparent transposition of "CLSAG") is preserved verbatim
// from the reference construction this scheme is drawn from.
func aggregationCoefficients(newHasher hash512.New, ring [][]*ristretto255.Element, keyImages []*ristretto255.Element) []*ristretto255.Scalar {
	nc := len(keyImages)
	mu := make([]*ristretto255.Scalar, nc)
	for j := 0; j < nc; j++ {
		h := newHasher()
		_, _ = h.Write([]byte("CSLAG_" + strconv.Itoa(j)))
		for _, row := range ring {
			for _, p := range row {
				_, _ = h.Write(p.Bytes())
			}
		}
		for _, ki := range keyImages {
			_, _ = h.Write(ki.Bytes())
		}
		mu[j] = ringutil.ScalarFromSum(h.Sum())
	}
	return mu
}

// aggregatePublicKeys computes, for every ring row i, Σ_j μ_j·ring[i][j].
func aggregatePublicKeys(ring [][]*ristretto255.Element, mu []*ristretto255.Scalar) []*ristretto255.Element {
	nr := len(ring)
	out := make([]*ristretto255.Element, nr)
	for i := 0; i < nr; i++ {
		out[i] = ristretto255.NewIdentityElement().VarTimeMultiScalarMult(mu, ring[i])
	}
	return out
}

// aggregateKeyImage computes Σ_j μ_j·key_images[j].
func aggregateKeyImage(keyImages []*ristretto255.Element, mu []*ristretto255.Scalar) *ristretto255.Element {
	return ristretto255.NewIdentityElement().VarTimeMultiScalarMult(mu, keyImages)
}

// GenerateKeyImages derives the key images for the private keys ks, all anchored to the hash-to-
// point of the primary (first) public key: I_j = k_j·H_p(compress(k_0·G)).
func GenerateKeyImages(newHasher hash512.New, ks []*ristretto255.Scalar) []*ristretto255.Element {
	kPoint0 := ristretto255.NewIdentityElement().ScalarBaseMult(ks[0])
	baseHp := ringutil.HashToPoint(newHasher, kPoint0.Bytes())

	images := make([]*ristretto255.Element, len(ks))
	for j, k := range ks {
		images[j] = ristretto255.NewIdentityElement().ScalarMult(k, baseHp)
	}
	return images
}

// Sign produces a CLSAG signature over message using private keys ks. decoys is the ring of
// every other member's key row; the signer's own key row (ks_j·G for each j) is inserted at
// secretIndex, so the signature's ring has length len(decoys)+1. rand supplies uniform randomness
// (typically crypto/rand.Reader).
func Sign(newHasher hash512.New, rand io.Reader, ks []*ristretto255.Scalar, decoys [][]*ristretto255.Element, secretIndex int, message []byte) (*Signature, error) {
	nc := len(ks)
	nr := len(decoys) + 1
	if nc == 0 {
		return nil, ErrRaggedRing
	}
	if len(decoys) == 0 {
		return nil, ErrEmptyRing
	}
	if secretIndex < 0 || secretIndex > len(decoys) {
		return nil, ErrInvalidSecretIndex
	}
	for _, row := range decoys {
		if len(row) != nc {
			return nil, ErrRaggedRing
		}
	}

	kPoints := make([]*ristretto255.Element, nc)
	for j, k := range ks {
		kPoints[j] = ristretto255.NewIdentityElement().ScalarBaseMult(k)
	}

	baseKeyHp := ringutil.HashToPoint(newHasher, kPoints[0].Bytes())
	keyImages := GenerateKeyImages(newHasher, ks)

	ring := ringutil.InsertAt(decoys, kPoints, secretIndex)

	a, err := ringutil.RandomScalar(rand)
	if err != nil {
		return nil, err
	}

	responses := make([]*ristretto255.Scalar, nr)
	for i := range responses {
		responses[i], err = ringutil.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
	}

	mu := aggregationCoefficients(newHasher, ring, keyImages)
	aggPub := aggregatePublicKeys(ring, mu)
	aggImage := aggregateKeyImage(keyImages, mu)

	aggPriv := ristretto255.NewScalar()
	for j := 0; j < nc; j++ {
		aggPriv.Add(aggPriv, ristretto255.NewScalar().Multiply(mu[j], ks[j]))
	}

	challenges := make([]*ristretto255.Scalar, nr)

	seed := newHasher()
	_, _ = seed.Write([]byte("CSLAG_c"))
	for _, row := range ring {
		for _, p := range row {
			_, _ = seed.Write(p.Bytes())
		}
	}
	_, _ = seed.Write(message)

	hashes := make([]hash512.Hasher, nr)
	for i := range hashes {
		hashes[i] = seed.Clone()
	}

	next := ringutil.NextIndex(secretIndex, nr)
	aG := ristretto255.NewIdentityElement().ScalarBaseMult(a)
	aHp := ristretto255.NewIdentityElement().ScalarMult(a, baseKeyHp)
	_, _ = hashes[next].Write(aG.Bytes())
	_, _ = hashes[next].Write(aHp.Bytes())
	challenges[next] = ringutil.ScalarFromSum(hashes[next].Sum())

	prev := ringutil.PrevIndex(secretIndex, nr)
	for i := next; ; {
		term1 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{responses[i], challenges[i]},
			[]*ristretto255.Element{ristretto255.NewGeneratorElement(), aggPub[i]},
		)
		hp := ringutil.HashToPoint(newHasher, ring[i][0].Bytes())
		term2 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{responses[i], challenges[i]},
			[]*ristretto255.Element{hp, aggImage},
		)

		next = ringutil.NextIndex(i, nr)
		_, _ = hashes[next].Write(term1.Bytes())
		_, _ = hashes[next].Write(term2.Bytes())
		challenges[next] = ringutil.ScalarFromSum(hashes[next].Sum())

		if i == prev {
			break
		}
		i = next
	}

	responses[secretIndex] = ristretto255.NewScalar().Subtract(a, ristretto255.NewScalar().Multiply(challenges[secretIndex], aggPriv))

	return &Signature{
		Challenge: challenges[0],
		Responses: responses,
		Ring:      ring,
		KeyImages: keyImages,
	}, nil
}

// Verify reports whether sig is a valid CLSAG signature over message.
func Verify(newHasher hash512.New, sig *Signature, message []byte) bool {
	nr := len(sig.Ring)
	if nr == 0 || len(sig.Responses) != nr {
		return false
	}
	nc := len(sig.Ring[0])
	if nc == 0 || nc != len(sig.KeyImages) {
		return false
	}
	for _, row := range sig.Ring {
		if len(row) != nc {
			return false
		}
	}

	mu := aggregationCoefficients(newHasher, sig.Ring, sig.KeyImages)
	aggPub := aggregatePublicKeys(sig.Ring, mu)
	aggImage := aggregateKeyImage(sig.KeyImages, mu)

	reconstructed := sig.Challenge
	for i := 0; i < nr; i++ {
		h := newHasher()
		_, _ = h.Write([]byte("CSLAG_c"))
		for _, row := range sig.Ring {
			for _, p := range row {
				_, _ = h.Write(p.Bytes())
			}
		}
		_, _ = h.Write(message)

		term1 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{sig.Responses[i], reconstructed},
			[]*ristretto255.Element{ristretto255.NewGeneratorElement(), aggPub[i]},
		)
		hp := ringutil.HashToPoint(newHasher, sig.Ring[i][0].Bytes())
		term2 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
			[]*ristretto255.Scalar{sig.Responses[i], reconstructed},
			[]*ristretto255.Element{hp, aggImage},
		)
		_, _ = h.Write(term1.Bytes())
		_, _ = h.Write(term2.Bytes())
		reconstructed = ringutil.ScalarFromSum(h.Sum())
	}

	return sig.Challenge.Equal(reconstructed) == 1
}

// Link reports whether a and b share a primary key image, meaning the same private key was used
// for column 0 of both signatures. Auxiliary columns are not linkable.
func Link(a, b *Signature) bool {
	if len(a.KeyImages) == 0 || len(b.KeyImages) == 0 {
		return false
	}
	return a.KeyImages[0].Equal(b.KeyImages[0]) == 1
}

// Marshal encodes sig as challenge ‖ nr ‖ nc ‖ len(responses) ‖ responses(one per row) ‖
// ring(row-major) ‖ len(key_images) ‖ key_images…. The responses and the key images each carry
// their own count prefix; their numbers are not taken from nr and nc.
func (sig *Signature) Marshal() []byte {
	nr := len(sig.Ring)
	nc := 0
	if nr > 0 {
		nc = len(sig.Ring[0])
	}

	var buf []byte
	buf = wire.AppendScalar(buf, sig.Challenge)
	buf = wire.AppendUint32(buf, nr)
	buf = wire.AppendUint32(buf, nc)
	buf = wire.AppendScalarList(buf, sig.Responses)
	for _, row := range sig.Ring {
		for _, p := range row {
			buf = wire.AppendPoint(buf, p)
		}
	}
	buf = wire.AppendPointList(buf, sig.KeyImages)
	return buf
}

// Unmarshal decodes a Signature from the encoding produced by Marshal. It reports false on any
// structural or encoding mismatch.
func Unmarshal(b []byte) (*Signature, bool) {
	challenge, b, ok := wire.ReadScalar(b)
	if !ok {
		return nil, false
	}
	nr, b, ok := wire.ReadUint32(b)
	if !ok || nr < 0 {
		return nil, false
	}
	nc, b, ok := wire.ReadUint32(b)
	if !ok || nc < 0 {
		return nil, false
	}
	responses, b, ok := wire.ReadScalarList(b)
	if !ok || len(responses) != nr {
		return nil, false
	}
	ring := make([][]*ristretto255.Element, nr)
	for i := range ring {
		row, next, ok := wire.ReadFixedPoints(b, nc)
		if !ok {
			return nil, false
		}
		ring[i], b = row, next
	}
	keyImages, b, ok := wire.ReadPointList(b)
	if !ok || len(b) != 0 {
		return nil, false
	}
	return &Signature{Challenge: challenge, Responses: responses, Ring: ring, KeyImages: keyImages}, true
}

type jsonSignature struct {
	Challenge string     `json:"challenge"`
	Responses []string   `json:"responses"`
	Ring      [][]string `json:"ring"`
	KeyImages []string   `json:"key_images"`
}

// MarshalJSON encodes sig as hex-encoded fields named per spec.md §6.
func (sig *Signature) MarshalJSON() ([]byte, error) {
	ring := make([][]string, len(sig.Ring))
	for i, row := range sig.Ring {
		ring[i] = wire.PointHexList(row)
	}
	return json.Marshal(jsonSignature{
		Challenge: wire.ScalarHex(sig.Challenge),
		Responses: wire.ScalarHexList(sig.Responses),
		Ring:      ring,
		KeyImages: wire.PointHexList(sig.KeyImages),
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
	ring := make([][]*ristretto255.Element, len(js.Ring))
	for i, row := range js.Ring {
		r, err := wire.PointsFromHexList(row)
		if err != nil {
			return err
		}
		ring[i] = r
	}
	keyImages, err := wire.PointsFromHexList(js.KeyImages)
	if err != nil {
		return err
	}
	sig.Challenge, sig.Responses, sig.Ring, sig.KeyImages = challenge, responses, ring, keyImages
	return nil
}
