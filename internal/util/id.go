package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 24-character random hex token, safe in headers and
// log lines. Used as the request id fallback when the caller sends
// none.
func NewID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
