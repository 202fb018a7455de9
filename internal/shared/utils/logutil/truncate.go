// Package logutil formats values for log output.
package logutil

import "unicode/utf8"

// BinaryPlaceholder replaces payloads that are not valid UTF-8.
const BinaryPlaceholder = "<binary>"

// TruncateForLog shortens s to at most maxLen bytes and appends "..." when
// anything was cut. The cut never splits a multi-byte rune.
func TruncateForLog(s string, maxLen int) string {
	if maxLen <= 0 {
		return "..."
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Preview renders a payload for logging: text is truncated to maxLen and
// anything else becomes BinaryPlaceholder.
func Preview(b []byte, maxLen int) string {
	if !utf8.Valid(b) {
		return BinaryPlaceholder
	}
	return TruncateForLog(string(b), maxLen)
}
