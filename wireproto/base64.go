package wireproto

import "encoding/base64"

// EncodeBinary renders a CRDT payload for the wire: standard base64 with
// '=' padding.
func EncodeBinary(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBinary parses a wire-encoded CRDT payload back into bytes.
func DecodeBinary(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
