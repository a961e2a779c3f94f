package wireproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBinary_RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0x00},
		{0xff, 0xfe, 0xfd},
		[]byte("hello world"),
	}

	for _, c := range cases {
		encoded := EncodeBinary(c)
		decoded, err := DecodeBinary(encoded)
		require.NoError(t, err)
		assert.Equal(t, c, decoded)
	}
}
