package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/plain/path", "/plain/path"},
		{"/with space", "/with%20space"},
		{"/already%2Fencoded", "/already%2Fencoded"},
		{"/bad%zzescape", "/bad%25zzescape"},
		{"/trailing%", "/trailing%25"},
		{"/sub-delims!$&'()*+,;=:@", "/sub-delims!$&'()*+,;=:@"},
		{"/q?mark", "/q%3Fmark"},
		{"/ünïcode", "/%C3%BCn%C3%AFcode"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodePath(tt.in), tt.in)
	}
}

func TestEncodeQuery(t *testing.T) {
	assert.Equal(t, "a=1&b=%5B%5D?x", EncodeQuery("a=1&b=[]?x"))
	assert.Equal(t, "frag%23ment", EncodeQuery("frag#ment"))
}

func TestEncode_Idempotent(t *testing.T) {
	inputs := []string{"/a b/%2F/c", "/%", "/%4", "/%41%", "/x?y#z", "/ünï"}
	for _, in := range inputs {
		once := EncodePath(in)
		assert.Equal(t, once, EncodePath(once), in)

		onceQ := EncodeQuery(in)
		assert.Equal(t, onceQ, EncodeQuery(onceQ), in)
	}
}

func TestEncode_UserInfo(t *testing.T) {
	assert.Equal(t, "us%3Aer%40x", encode("us:er@x", encodeUserInfo))
}

func TestDecode(t *testing.T) {
	assert.Equal(t, "/a b/c", Decode("/a%20b/c"))
	assert.Equal(t, "/100%", Decode("/100%"))
	assert.Equal(t, "/%zz", Decode("/%zz"))
	assert.Equal(t, "a+b", Decode("a+b"))
}
