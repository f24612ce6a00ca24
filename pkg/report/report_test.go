package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	payload := "FEEDBACK_SERVER_UID\tabc123\nVERSION\t10.6.12\nuname_sysname\tLinux\n"
	r := Parse([]byte(payload))

	assert.Equal(t, 3, r.Len())

	uid, ok := r.Get("FEEDBACK_SERVER_UID")
	assert.True(t, ok)
	assert.Equal(t, "abc123", uid)

	version, ok := r.Get("VERSION")
	assert.True(t, ok)
	assert.Equal(t, "10.6.12", version)
}

func TestParse_SkipsMalformedRows(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"no tab", "justonefield\nkey\tvalue\n", 1},
		{"too many fields", "a\tb\tc\nkey\tvalue\n", 1},
		{"empty line", "\nkey\tvalue\n\n", 1},
		{"all malformed", "one\ntwo three\n", 0},
		{"empty payload", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Parse([]byte(tt.payload))
			assert.Equal(t, tt.want, r.Len())
		})
	}
}

func TestParse_StripsNulBytes(t *testing.T) {
	payload := []byte("ke\x00y\tval\x00ue\n")
	r := Parse(payload)

	value, ok := r.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", value)
}

func TestParse_CarriageReturns(t *testing.T) {
	r := Parse([]byte("key\tvalue\r\nother\tdata\r\n"))
	assert.Equal(t, 2, r.Len())

	value, ok := r.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", value)
}

func TestParse_MultiValuedKeys(t *testing.T) {
	payload := "key\tfirst\nkey\tsecond\nkey\tthird\n"
	r := Parse([]byte(payload))

	// Scalar lookup takes the last value.
	value, ok := r.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "third", value)

	assert.Equal(t, []string{"first", "second", "third"}, r.Values("key"))
	assert.Equal(t, 3, r.Len())
}

func TestParse_PreservesFieldOrder(t *testing.T) {
	payload := "b\t2\na\t1\nc\t3\n"
	r := Parse([]byte(payload))

	keys := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"b", "a", "c"}, keys)
}

func TestReport_MissingKey(t *testing.T) {
	r := Parse([]byte("key\tvalue\n"))

	_, ok := r.Get("absent")
	assert.False(t, ok)
	assert.False(t, r.Has("absent"))
	assert.Nil(t, r.Values("absent"))
}
