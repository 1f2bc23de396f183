package internal

import (
	"crypto/sha256"
	"crypto/subtle"
	"net"
	"strings"
)

// HashBindingValue describes the hashbindingvalue operation and its observable behavior.
//
// HashBindingValue may return an error when input validation, dependency calls, or security checks fail.
// HashBindingValue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// NormalizeNetworkAddress strips an optional port so "10.0.0.1:4431" and
// "10.0.0.1:9000" bind to the same client address.
func NormalizeNetworkAddress(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(trimmed); err == nil && host != "" {
		return strings.ToLower(host)
	}
	return strings.ToLower(trimmed)
}

// EqualBinding compares two binding values in constant time.
func EqualBinding(a, b string) bool {
	ha := HashBindingValue(a)
	hb := HashBindingValue(b)
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
