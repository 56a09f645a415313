package license

import "strings"

// fingerprintLen is the canonical fingerprint length in characters.
const fingerprintLen = 16

// NormalizeMachineID canonicalizes a client-supplied machine identifier into
// a fixed-form fingerprint. Client builds report machine identity in varying
// shapes (raw hex, UUIDs with separators, truncated hashes); normalization
// makes seat de-duplication robust to that drift.
//
// The input is lower-cased and trimmed. If the cleaned value is a hex string
// of at least 16 characters, the fingerprint is its first 16. Otherwise all
// non-hex characters are stripped and, if 16 or more hex characters remain,
// the first 16 of those are used. Failing both, the first 16 characters of
// the cleaned input serve as a degraded but stable fallback.
//
// The function is deterministic and idempotent: normalizing an already
// canonical value returns it unchanged.
func NormalizeMachineID(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return ""
	}

	if len(cleaned) >= fingerprintLen && isHexString(cleaned) {
		return cleaned[:fingerprintLen]
	}

	hexOnly := stripNonHex(cleaned)
	if len(hexOnly) >= fingerprintLen {
		return hexOnly[:fingerprintLen]
	}

	if len(cleaned) > fingerprintLen {
		return cleaned[:fingerprintLen]
	}
	return cleaned
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

func stripNonHex(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if isHexDigit(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
