package clsag_test

import (
	"fmt"
	"testing"

	"github.com/codahale/ringsig/hazmat/hash512"
	"github.com/codahale/ringsig/internal/testdata"
	"github.com/codahale/ringsig/schemes/ring/clsag"
)

var ringSizes = []int{2, 8, 32}

func BenchmarkSign(b *testing.B) {
	for _, nr := range ringSizes {
		b.Run(fmt.Sprintf("nr=%d,nc=2", nr), func(b *testing.B) {
			d := testdata.ZeroSeeded()
			ks := keys(d, 2)
			decoys := decoyRows(d, nr-1, 2)
			message := []byte("benchmark message")
			b.ReportAllocs()
			for b.Loop() {
				if _, err := clsag.Sign(hash512.NewSHA512, d.Reader(), ks, decoys, nr/2, message); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkVerify(b *testing.B) {
	for _, nr := range ringSizes {
		b.Run(fmt.Sprintf("nr=%d,nc=2", nr), func(b *testing.B) {
			d := testdata.ZeroSeeded()
			ks := keys(d, 2)
			decoys := decoyRows(d, nr-1, 2)
			message := []byte("benchmark message")
			s, err := clsag.Sign(hash512.NewSHA512, d.Reader(), ks, decoys, nr/2, message)
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			for b.Loop() {
				if !clsag.Verify(hash512.NewSHA512, s, message) {
					b.Fatal("Verify rejected a genuine signature")
				}
			}
		})
	}
}
