// Package mlsag implements Multilayer Linkable Spontaneous Anonymous Group (MLSAG) signatures: the
// multi-key generalization of bLSAG used when a signer must prove knowledge of an entire row of a
// public key matrix rather than a single key.
package mlsag

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"

	"github.com/gtank/ristretto255"

	"github.com/codahale/ringsig/hazmat/hash512"
	"github.com/codahale/ringsig/internal/ringutil"
	"github.com/codahale/ringsig/internal/wire"
)

// ErrInvalidSecretIndex is returned by Sign when secretIndex does not fall within the ring
// produced by inserting the signer's public keys into decoys.
var ErrInvalidSecretIndex = errors.New("mlsag: secret index out of range")

// ErrRaggedRing is returned when ks is empty, when decoys is not rectangular, or when its column
// count does not match the number of private keys supplied to Sign.
var ErrRaggedRing = errors.New("mlsag: ring rows must all have the same column count as ks")

// ErrEmptyRing is returned by Sign when decoys is empty, so the ring would hold only the signer's
// own key row.
var ErrEmptyRing = errors.New("mlsag: decoy ring is empty")

// Signature is an MLSAG ring signature over an nr×nc public key matrix.
type Signature struct {
	Challenge *ristretto255.Scalar
	Responses [][]*ristretto255.Scalar
	Ring      [][]*ristretto255.Element
	KeyImages []*ristretto255.Element
}

// GenerateKeyImages derives one key image per private key in ks, I_j = k_j·H_p(compress(k_j·G)).
func GenerateKeyImages(newHasher hash512.New, ks []*ristretto255.Scalar) []*ristretto255.Element {
	images := make([]*ristretto255.Element, len(ks))
	for j, k := range ks {
		kPoint := ristretto255.NewIdentityElement().ScalarBaseMult(k)
		hp := ringutil.HashToPoint(newHasher, kPoint.Bytes())
		images[j] = ristretto255.NewIdentityElement().ScalarMult(k, hp)
	}
	return images
}

// Sign produces an MLSAG signature over message using private keys ks. decoys is the ring of
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

	keyImages := GenerateKeyImages(newHasher, ks)

	ring := ringutil.InsertAt(decoys, kPoints, secretIndex)

	a := make([]*ristretto255.Scalar, nc)
	for j := range a {
		s, err := ringutil.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
		a[j] = s
	}

	responses := make([][]*ristretto255.Scalar, nr)
	for i := range responses {
		row := make([]*ristretto255.Scalar, nc)
		for j := range row {
			s, err := ringutil.RandomScalar(rand)
			if err != nil {
				return nil, err
			}
			row[j] = s
		}
		responses[i] = row
	}

	challenges := make([]*ristretto255.Scalar, nr)

	seed := newHasher()
	_, _ = seed.Write(message)

	hashes := make([]hash512.Hasher, nr)
	for i := range hashes {
		hashes[i] = seed.Clone()
	}

	next := ringutil.NextIndex(secretIndex, nr)
	for j := 0; j < nc; j++ {
		hp := ringutil.HashToPoint(newHasher, kPoints[j].Bytes())
		aG := ristretto255.NewIdentityElement().ScalarBaseMult(a[j])
		aHp := ristretto255.NewIdentityElement().ScalarMult(a[j], hp)
		_, _ = hashes[next].Write(aG.Bytes())
		_, _ = hashes[next].Write(aHp.Bytes())
	}
	challenges[next] = ringutil.ScalarFromSum(hashes[next].Sum())

	prev := ringutil.PrevIndex(secretIndex, nr)
	for i := next; ; {
		for j := 0; j < nc; j++ {
			term1 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
				[]*ristretto255.Scalar{responses[i][j], challenges[i]},
				[]*ristretto255.Element{ristretto255.NewGeneratorElement(), ring[i][j]},
			)
			hp := ringutil.HashToPoint(newHasher, ring[i][j].Bytes())
			term2 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
				[]*ristretto255.Scalar{responses[i][j], challenges[i]},
				[]*ristretto255.Element{hp, keyImages[j]},
			)

			next = ringutil.NextIndex(i, nr)
			_, _ = hashes[next].Write(term1.Bytes())
			_, _ = hashes[next].Write(term2.Bytes())
		}
		challenges[next] = ringutil.ScalarFromSum(hashes[next].Sum())

		if i == prev {
			break
		}
		i = next
	}

	for j := 0; j < nc; j++ {
		responses[secretIndex][j] = ristretto255.NewScalar().Subtract(a[j], ristretto255.NewScalar().Multiply(challenges[secretIndex], ks[j]))
	}

	return &Signature{
		Challenge: challenges[0],
		Responses: responses,
		Ring:      ring,
		KeyImages: keyImages,
	}, nil
}

// Verify reports whether sig is a valid MLSAG signature over message.
func Verify(newHasher hash512.New, sig *Signature, message []byte) bool {
	nr := len(sig.Ring)
	if nr == 0 || len(sig.Responses) != nr {
		return false
	}
	nc := len(sig.Ring[0])
	if nc == 0 || nc != len(sig.KeyImages) {
		return false
	}
	for i := range sig.Ring {
		if len(sig.Ring[i]) != nc || len(sig.Responses[i]) != nc {
			return false
		}
	}

	reconstructed := sig.Challenge
	for i := 0; i < nr; i++ {
		h := newHasher()
		_, _ = h.Write(message)

		for j := 0; j < nc; j++ {
			term1 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
				[]*ristretto255.Scalar{sig.Responses[i][j], reconstructed},
				[]*ristretto255.Element{ristretto255.NewGeneratorElement(), sig.Ring[i][j]},
			)
			hp := ringutil.HashToPoint(newHasher, sig.Ring[i][j].Bytes())
			term2 := ristretto255.NewIdentityElement().VarTimeMultiScalarMult(
				[]*ristretto255.Scalar{sig.Responses[i][j], reconstructed},
				[]*ristretto255.Element{hp, sig.KeyImages[j]},
			)
			_, _ = h.Write(term1.Bytes())
			_, _ = h.Write(term2.Bytes())
		}
		reconstructed = ringutil.ScalarFromSum(h.Sum())
	}

	return sig.Challenge.Equal(reconstructed) == 1
}

// Link reports whether a and b share any key image, meaning the same private key was used to
// produce at least one column of both signatures.
func Link(a, b *Signature) bool {
	all := make([][]byte, 0, len(a.KeyImages)+len(b.KeyImages))
	for _, p := range a.KeyImages {
		all = append(all, p.Bytes())
	}
	for _, p := range b.KeyImages {
		all = append(all, p.Bytes())
	}
	sort.Slice(all, func(i, j int) bool { return bytes.Compare(all[i], all[j]) < 0 })
	for i := 1; i < len(all); i++ {
		if bytes.Equal(all[i-1], all[i]) {
			return true
		}
	}
	return false
}

// Marshal encodes sig as challenge ‖ nr ‖ nc ‖ responses(row-major) ‖ ring(row-major) ‖
// len(key_images) ‖ key_images…. The key images carry their own count prefix; their number is
// not taken from nc.
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
	buf = wire.AppendScalarRows(buf, sig.Responses)
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
	responses, b, ok := wire.ReadScalarRows(b, nr, nc)
	if !ok {
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
	Responses [][]string `json:"responses"`
	Ring      [][]string `json:"ring"`
	KeyImages []string   `json:"key_images"`
}

// MarshalJSON encodes sig as hex-encoded fields named per spec.md §6.
func (sig *Signature) MarshalJSON() ([]byte, error) {
	responses := make([][]string, len(sig.Responses))
	for i, row := range sig.Responses {
		responses[i] = wire.ScalarHexList(row)
	}
	ring := make([][]string, len(sig.Ring))
	for i, row := range sig.Ring {
		ring[i] = wire.PointHexList(row)
	}
	return json.Marshal(jsonSignature{
		Challenge: wire.ScalarHex(sig.Challenge),
		Responses: responses,
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
	responses := make([][]*ristretto255.Scalar, len(js.Responses))
	for i, row := range js.Responses {
		r, err := wire.ScalarsFromHexList(row)
		if err != nil {
			return err
		}
		responses[i] = r
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
