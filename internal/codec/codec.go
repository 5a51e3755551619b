// Package codec converts raw bytes (vault keys, ciphertext) to storable text
// and back. The encoding is standard base64 with padding.
package codec

import (
	"encoding/base64"
	"fmt"
)

// Encode returns the text form of b.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode parses text produced by Encode.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return b, nil
}
