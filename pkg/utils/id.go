// Package utils holds small identifier helpers shared across the gateway.
package utils

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// ShortID returns n random bytes as lowercase hex. Agent loops are tagged
// with a short ID so log lines and debug chunk folders can be correlated.
func ShortID(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// TimestampID returns an 8-char hex Unix timestamp followed by a short
// random suffix, e.g. "68ac3f1e_a41b". Sorts chronologically as a string.
func TimestampID() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(time.Now().Unix()))
	return hex.EncodeToString(b) + "_" + ShortID(2)
}
