package blsag_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/gtank/ristretto255"

	"github.com/codahale/ringsig/hazmat/hash512"
	"github.com/codahale/ringsig/internal/testdata"
	"github.com/codahale/ringsig/schemes/ring/blsag"
)

var hashers = map[string]hash512.New{
	"sha512":     hash512.NewSHA512,
	"keccak512":  hash512.NewKeccak512,
	"blake2b512": hash512.NewBlake2b512,
}

func decoyRing(d *testdata.DRBG, n int) []*ristretto255.Element {
	decoys := make([]*ristretto255.Element, n)
	for i := range decoys {
		_, pk := d.KeyPair()
		decoys[i] = pk
	}
	return decoys
}

func TestSignVerify_roundTrip(t *testing.T) {
	for name, newHasher := range hashers {
		t.Run(name, func(t *testing.T) {
			for _, n := range []int{2, 4} {
				for secretIndex := 0; secretIndex < n; secretIndex++ {
					d := testdata.ZeroSeeded()
					k, _ := d.KeyPair()
					decoys := decoyRing(d, n-1)
					message := []byte("This is the message")

					s, err := blsag.Sign(newHasher, d.Reader(), k, decoys, secretIndex, message)
					if err != nil {
						t.Fatalf("n=%d secretIndex=%d: Sign returned error: %v", n, secretIndex, err)
					}
					if !blsag.Verify(newHasher, s, message) {
						t.Fatalf("n=%d secretIndex=%d: Verify rejected a genuine signature", n, secretIndex)
					}
				}
			}
		})
	}
}

func TestGenerateKeyImage_deterministic(t *testing.T) {
	d := testdata.ZeroSeeded()
	k, _ := d.KeyPair()

	a := blsag.GenerateKeyImage(hash512.NewSHA512, k)
	b := blsag.GenerateKeyImage(hash512.NewSHA512, k)
	if a.Equal(b) != 1 {
		t.Fatal("GenerateKeyImage is not deterministic for a fixed key and hasher")
	}

	otherK, _ := d.KeyPair()
	c := blsag.GenerateKeyImage(hash512.NewSHA512, otherK)
	if a.Equal(c) == 1 {
		t.Fatal("GenerateKeyImage produced the same key image for two different keys")
	}
}

func TestLink(t *testing.T) {
	d := testdata.ZeroSeeded()
	k, _ := d.KeyPair()
	ring1 := decoyRing(d, 1)
	ring2 := decoyRing(d, 1)

	sig1, err := blsag.Sign(hash512.NewSHA512, d.Reader(), k, ring1, 0, []byte("This is another message"))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	sig2, err := blsag.Sign(hash512.NewSHA512, d.Reader(), k, ring2, 0, []byte("This is the message"))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if !blsag.Link(sig1, sig2) {
		t.Fatal("Link rejected two signatures produced by the same key")
	}

	otherK, _ := d.KeyPair()
	sig3, err := blsag.Sign(hash512.NewSHA512, d.Reader(), otherK, ring2, 0, []byte("This is the message"))
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if blsag.Link(sig1, sig3) {
		t.Fatal("Link accepted two signatures produced by different keys")
	}
}

func TestVerify_rejectsTamperedMessage(t *testing.T) {
	d := testdata.ZeroSeeded()
	k, _ := d.KeyPair()
	decoys := decoyRing(d, 3)
	message := []byte("This is the message")

	s, err := blsag.Sign(hash512.NewSHA512, d.Reader(), k, decoys, 1, message)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if blsag.Verify(hash512.NewSHA512, s, []byte("This is another message")) {
		t.Fatal("Verify accepted a signature over the wrong message")
	}
}

func TestVerify_rejectsSwappedKeyImage(t *testing.T) {
	d := testdata.ZeroSeeded()
	k, _ := d.KeyPair()
	decoys := decoyRing(d, 3)
	message := []byte("This is the message")

	s, err := blsag.Sign(hash512.NewSHA512, d.Reader(), k, decoys, 1, message)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	otherK, _ := d.KeyPair()
	s.KeyImage = blsag.GenerateKeyImage(hash512.NewSHA512, otherK)
	if blsag.Verify(hash512.NewSHA512, s, message) {
		t.Fatal("Verify accepted a signature with a substituted key image")
	}
}

func TestSign_invalidSecretIndex(t *testing.T) {
	d := testdata.ZeroSeeded()
	k, _ := d.KeyPair()
	decoys := decoyRing(d, 3)

	for _, secretIndex := range []int{-1, 4} {
		if _, err := blsag.Sign(hash512.NewSHA512, d.Reader(), k, decoys, secretIndex, []byte("m")); err != blsag.ErrInvalidSecretIndex {
			t.Fatalf("secretIndex=%d: Sign returned %v, want ErrInvalidSecretIndex", secretIndex, err)
		}
	}
}

func TestJSON_roundTrip(t *testing.T) {
	d := testdata.ZeroSeeded()
	k, _ := d.KeyPair()
	decoys := decoyRing(d, 3)
	message := []byte("This is the message")

	s, err := blsag.Sign(hash512.NewSHA512, d.Reader(), k, decoys, 1, message)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	encoded, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("MarshalJSON returned error: %v", err)
	}

	var decoded blsag.Signature
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("UnmarshalJSON returned error: %v", err)
	}
	if !blsag.Verify(hash512.NewSHA512, &decoded, message) {
		t.Fatal("a signature round-tripped through JSON failed to verify")
	}
}

func TestMarshalUnmarshal_roundTrip(t *testing.T) {
	d := testdata.ZeroSeeded()
	k, _ := d.KeyPair()
	decoys := decoyRing(d, 3)
	message := []byte("This is the message")

	s, err := blsag.Sign(hash512.NewSHA512, d.Reader(), k, decoys, 2, message)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	encoded := s.Marshal()
	decoded, ok := blsag.Unmarshal(encoded)
	if !ok {
		t.Fatal("Unmarshal rejected a signature produced by Marshal")
	}
	if !blsag.Verify(hash512.NewSHA512, decoded, message) {
		t.Fatal("a signature round-tripped through Marshal/Unmarshal failed to verify")
	}
	if !bytes.Equal(encoded, decoded.Marshal()) {
		t.Fatal("re-encoding a decoded signature produced a different byte string")
	}
}
