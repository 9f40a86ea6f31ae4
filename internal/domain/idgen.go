package domain

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID mints a 128-bit random identifier rendered as 32 lowercase hex
// characters: the same bit width and alphabet as the original
// two-uint64 scheme, drawn from 16 bytes of crypto/rand. No uniqueness
// check is performed; collisions are bounded only by the 128-bit
// birthday bound.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
