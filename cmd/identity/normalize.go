package identity

import "strings"

// NormalizeUserName performs case-insensitive canonicalization.
// Only trim + lower-case for now; confusable folding would need a versioned policy.
func NormalizeUserName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
