package hash512_test

import (
	"testing"

	"github.com/codahale/ringsig/hazmat/hash512"
)

func TestClone_independence(t *testing.T) {
	for name, new := range map[string]hash512.New{
		"sha512":     hash512.NewSHA512,
		"keccak512":  hash512.NewKeccak512,
		"blake2b512": hash512.NewBlake2b512,
	} {
		t.Run(name, func(t *testing.T) {
			base := new()
			_, _ = base.Write([]byte("shared prefix"))

			a := base.Clone()
			b := base.Clone()

			_, _ = a.Write([]byte("suffix a"))
			_, _ = b.Write([]byte("suffix b"))

			sumA := a.Sum()
			sumB := b.Sum()
			if sumA == sumB {
				t.Fatalf("clones with different suffixes produced identical digests")
			}

			// The base hasher must be unaffected by writes to its clones.
			baseAgain := base.Clone()
			_, _ = baseAgain.Write([]byte("suffix a"))
			if baseAgain.Sum() != sumA {
				t.Fatalf("cloning after a fork did not reproduce the original prefix state")
			}
		})
	}
}

func TestSum_nonDestructive(t *testing.T) {
	h := hash512.NewSHA512()
	_, _ = h.Write([]byte("hello"))

	first := h.Sum()
	second := h.Sum()
	if first != second {
		t.Fatalf("Sum() mutated hasher state between calls")
	}

	_, _ = h.Write([]byte(" world"))
	third := h.Sum()
	if third == first {
		t.Fatalf("Sum() did not reflect subsequent writes")
	}
}
