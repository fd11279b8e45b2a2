// Package wire implements the fixed-shape, length-prefixed scalar/point encoding shared by every
// ring signature record in this module (see spec.md §6).
//
// It deliberately does not reuse a general transcript-framing scheme: the signing and verifying
// algorithms hash raw, unframed point and scalar encodings (see schemes/ring), so the serialization
// layer here exists only to persist and reload a Signature, never to feed the hash chain.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/gtank/ristretto255"
)

// AppendUint32 appends a 4-byte big-endian count prefix to dst.
func AppendUint32(dst []byte, v int) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return append(dst, buf[:]...)
}

// ReadUint32 reads a 4-byte big-endian count prefix from the front of b.
func ReadUint32(b []byte) (v int, rest []byte, ok bool) {
	if len(b) < 4 {
		return 0, nil, false
	}
	return int(binary.BigEndian.Uint32(b[:4])), b[4:], true
}

// AppendScalar appends the 32-byte canonical little-endian encoding of s to dst.
func AppendScalar(dst []byte, s *ristretto255.Scalar) []byte {
	return append(dst, s.Bytes()...)
}

// ReadScalar reads a 32-byte canonical scalar encoding from the front of b. It fails if the
// encoding is not canonically reduced.
func ReadScalar(b []byte) (s *ristretto255.Scalar, rest []byte, ok bool) {
	if len(b) < 32 {
		return nil, nil, false
	}
	s, err := ristretto255.NewScalar().SetCanonicalBytes(b[:32])
	if err != nil {
		return nil, nil, false
	}
	return s, b[32:], true
}

// AppendPoint appends the 32-byte canonical compressed encoding of p to dst.
func AppendPoint(dst []byte, p *ristretto255.Element) []byte {
	return append(dst, p.Bytes()...)
}

// ReadPoint reads a 32-byte canonical point encoding from the front of b. It fails if the encoding
// does not decode to a valid Ristretto255 element.
func ReadPoint(b []byte) (p *ristretto255.Element, rest []byte, ok bool) {
	if len(b) < 32 {
		return nil, nil, false
	}
	p, err := ristretto255.NewIdentityElement().SetCanonicalBytes(b[:32])
	if err != nil {
		return nil, nil, false
	}
	return p, b[32:], true
}

// AppendScalarList appends a 4-byte count followed by that many canonical scalars.
func AppendScalarList(dst []byte, ss []*ristretto255.Scalar) []byte {
	dst = AppendUint32(dst, len(ss))
	for _, s := range ss {
		dst = AppendScalar(dst, s)
	}
	return dst
}

// ReadScalarList reads a count-prefixed scalar list from the front of b.
func ReadScalarList(b []byte) (ss []*ristretto255.Scalar, rest []byte, ok bool) {
	n, b, ok := ReadUint32(b)
	if !ok || n < 0 {
		return nil, nil, false
	}
	ss = make([]*ristretto255.Scalar, n)
	for i := range ss {
		s, next, ok := ReadScalar(b)
		if !ok {
			return nil, nil, false
		}
		ss[i], b = s, next
	}
	return ss, b, true
}

// AppendPointList appends a 4-byte count followed by that many canonical points.
func AppendPointList(dst []byte, ps []*ristretto255.Element) []byte {
	dst = AppendUint32(dst, len(ps))
	for _, p := range ps {
		dst = AppendPoint(dst, p)
	}
	return dst
}

// ReadPointList reads a count-prefixed point list from the front of b.
func ReadPointList(b []byte) (ps []*ristretto255.Element, rest []byte, ok bool) {
	n, b, ok := ReadUint32(b)
	if !ok || n < 0 {
		return nil, nil, false
	}
	ps = make([]*ristretto255.Element, n)
	for i := range ps {
		p, next, ok := ReadPoint(b)
		if !ok {
			return nil, nil, false
		}
		ps[i], b = p, next
	}
	return ps, b, true
}

// ReadFixedPoints reads exactly n points with no length prefix, used for ring rows, whose count is
// implied by the ring's column width rather than self-described.
func ReadFixedPoints(b []byte, n int) (ps []*ristretto255.Element, rest []byte, ok bool) {
	ps = make([]*ristretto255.Element, n)
	for i := range ps {
		p, next, ok := ReadPoint(b)
		if !ok {
			return nil, nil, false
		}
		ps[i], b = p, next
	}
	return ps, b, true
}

// AppendScalarRows appends nr*nc canonical scalars in row-major order, with no count prefix (the
// caller already knows nr and nc from the accompanying ring).
func AppendScalarRows(dst []byte, rows [][]*ristretto255.Scalar) []byte {
	for _, row := range rows {
		for _, s := range row {
			dst = AppendScalar(dst, s)
		}
	}
	return dst
}

// ScalarHex returns the hex encoding of s's canonical 32-byte form, for the optional text/JSON
// encoding spec.md §6 allows.
func ScalarHex(s *ristretto255.Scalar) string {
	return hex.EncodeToString(s.Bytes())
}

// ScalarFromHex decodes a hex-encoded canonical scalar produced by ScalarHex.
func ScalarFromHex(s string) (*ristretto255.Scalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("wire: decoding scalar hex: %w", err)
	}
	scalar, err := ristretto255.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("wire: decoding scalar: %w", err)
	}
	return scalar, nil
}

// PointHex returns the hex encoding of p's canonical compressed form.
func PointHex(p *ristretto255.Element) string {
	return hex.EncodeToString(p.Bytes())
}

// PointFromHex decodes a hex-encoded canonical point produced by PointHex.
func PointFromHex(s string) (*ristretto255.Element, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("wire: decoding point hex: %w", err)
	}
	p, err := ristretto255.NewIdentityElement().SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("wire: decoding point: %w", err)
	}
	return p, nil
}

// ScalarHexList hex-encodes each scalar in ss.
func ScalarHexList(ss []*ristretto255.Scalar) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = ScalarHex(s)
	}
	return out
}

// ScalarsFromHexList decodes a list of hex-encoded scalars produced by ScalarHexList.
func ScalarsFromHexList(ss []string) ([]*ristretto255.Scalar, error) {
	out := make([]*ristretto255.Scalar, len(ss))
	for i, s := range ss {
		scalar, err := ScalarFromHex(s)
		if err != nil {
			return nil, err
		}
		out[i] = scalar
	}
	return out, nil
}

// PointHexList hex-encodes each point in ps.
func PointHexList(ps []*ristretto255.Element) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = PointHex(p)
	}
	return out
}

// PointsFromHexList decodes a list of hex-encoded points produced by PointHexList.
func PointsFromHexList(ps []string) ([]*ristretto255.Element, error) {
	out := make([]*ristretto255.Element, len(ps))
	for i, p := range ps {
		point, err := PointFromHex(p)
		if err != nil {
			return nil, err
		}
		out[i] = point
	}
	return out, nil
}

// ReadScalarRows reads nr rows of nc canonical scalars each from the front of b.
func ReadScalarRows(b []byte, nr, nc int) (rows [][]*ristretto255.Scalar, rest []byte, ok bool) {
	rows = make([][]*ristretto255.Scalar, nr)
	for i := range rows {
		row := make([]*ristretto255.Scalar, nc)
		for j := range row {
			s, next, ok := ReadScalar(b)
			if !ok {
				return nil, nil, false
			}
			row[j], b = s, next
		}
		rows[i] = row
	}
	return rows, b, true
}
