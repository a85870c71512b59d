package service

import (
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	hexAddressRegex = regexp.MustCompile(`^0x[0-9a-f]{1,64}$`)
)

// normalizeWalletAddress lowercases and trims a wallet address so that the
// same wallet always maps to the same document keys.
func normalizeWalletAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// validWalletAddress reports whether the (already normalized) address looks
// like a hex account address.
func validWalletAddress(address string) bool {
	return hexAddressRegex.MatchString(address)
}

// normalizeEmail lowercases and trims the provided email.
func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// sanitizeString collapses whitespace and trims the result.
func sanitizeString(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}
