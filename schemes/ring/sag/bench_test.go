package sag_test

import (
	"fmt"
	"testing"

	"github.com/codahale/ringsig/hazmat/hash512"
	"github.com/codahale/ringsig/internal/testdata"
	"github.com/codahale/ringsig/schemes/ring/sag"
)

var ringSizes = []int{2, 8, 32, 128}

func BenchmarkSign(b *testing.B) {
	for _, n := range ringSizes {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			d := testdata.ZeroSeeded()
			k, _ := d.KeyPair()
			decoys := decoyRing(d, n-1)
			message := []byte("benchmark message")
			b.ReportAllocs()
			for b.Loop() {
				if _, err := sag.Sign(hash512.NewSHA512, d.Reader(), k, decoys, n/2, message); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkVerify(b *testing.B) {
	for _, n := range ringSizes {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			d := testdata.ZeroSeeded()
			k, _ := d.KeyPair()
			decoys := decoyRing(d, n-1)
			message := []byte("benchmark message")
			s, err := sag.Sign(hash512.NewSHA512, d.Reader(), k, decoys, n/2, message)
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			for b.Loop() {
				if !sag.Verify(hash512.NewSHA512, s, message) {
					b.Fatal("Verify rejected a genuine signature")
				}
			}
		})
	}
}
