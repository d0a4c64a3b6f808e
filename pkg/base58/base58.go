// Package base58 wraps mr-tron/base58 for fixed-size 32-byte keys.
package base58

import (
	"fmt"

	"github.com/mr-tron/base58"
)

func DecodeFromString(str string) ([32]byte, error) {
	var out [32]byte
	b, err := base58.Decode(str)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("base58: %q decodes to %d bytes, want %d", str, len(b), len(out))
	}
	copy(out[:], b)
	return out, nil
}

// MustDecodeFromString panics if str is not a valid 32-byte key. Use only
// for compile-time constants.
func MustDecodeFromString(str string) [32]byte {
	out, err := DecodeFromString(str)
	if err != nil {
		panic(err)
	}
	return out
}

func Encode(key [32]byte) string {
	return base58.Encode(key[:])
}
