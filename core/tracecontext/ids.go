package tracecontext

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	// TraceIDLength is the length of a hex encoded trace id
	TraceIDLength = 32
	// SpanIDLength is the length of a hex encoded span id
	SpanIDLength = 16

	invalidTraceID = "00000000000000000000000000000000"
	invalidSpanID  = "0000000000000000"
)

// GenerateTraceID returns a new random 32 character lowercase hex trace id.
func GenerateTraceID() string {
	return randomHex(TraceIDLength/2, invalidTraceID)
}

// GenerateSpanID returns a new random 16 character lowercase hex span id.
func GenerateSpanID() string {
	return randomHex(SpanIDLength/2, invalidSpanID)
}

// randomHex draws n random bytes until they encode to something other than
// invalid. Every bit of the result is random.
func randomHex(n int, invalid string) string {
	buf := make([]byte, n)
	for {
		// crypto/rand.Read never returns an error on supported platforms
		_, _ = rand.Read(buf)
		if id := hex.EncodeToString(buf); id != invalid {
			return id
		}
	}
}

// IsValidTraceID reports whether id is exactly 32 hex characters and not all zero.
func IsValidTraceID(id string) bool {
	return isValidID(id, TraceIDLength, invalidTraceID)
}

// IsValidSpanID reports whether id is exactly 16 hex characters and not all zero.
func IsValidSpanID(id string) bool {
	return isValidID(id, SpanIDLength, invalidSpanID)
}

func isValidID(id string, length int, invalid string) bool {
	if len(id) != length || id == invalid {
		return false
	}
	if !isHexString(id) {
		return false
	}
	// Upper case zeros are still zeros.
	return strings.ToLower(id) != invalid
}

// isHexString checks if a string contains only hexadecimal characters.
func isHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
