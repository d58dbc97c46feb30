package wire_test

import (
	"testing"

	"github.com/shapestone/shape-message/pkg/wire"
)

var benchRequest = []byte("POST /api/users HTTP/1.1\r\n" +
	"Host: example.com\r\n" +
	"Content-Type: application/json\r\n" +
	"Accept: application/json\r\n" +
	"User-Agent: shape-message/1.0\r\n" +
	"Content-Length: 55\r\n" +
	"\r\n" +
	`{"name":"John Doe","email":"john@example.com","age":30}`)

func BenchmarkUnmarshalRequest(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := wire.UnmarshalRequest(benchRequest); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMarshal_Request(b *testing.B) {
	req, err := wire.UnmarshalRequest(benchRequest)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := wire.Marshal(req); err != nil {
			b.Fatal(err)
		}
	}
}
