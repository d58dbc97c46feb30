package wire_test

import (
	"bufio"
	"bytes"
	nethttp "net/http"
	"testing"

	"github.com/shapestone/shape-message/pkg/wire"
)

// Comparison with net/http reading the same request.

func BenchmarkStdlib_ReadRequest(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := nethttp.ReadRequest(bufio.NewReader(bytes.NewReader(benchRequest))); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecoder_DecodeRequest(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := wire.NewDecoder(bytes.NewReader(benchRequest)).DecodeRequest(); err != nil {
			b.Fatal(err)
		}
	}
}
