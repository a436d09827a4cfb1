// internal/app/system/normalize/normalize.go

// Package normalize provides canonical forms for user-entered identity
// fields before they are persisted or compared.
package normalize

import "strings"

// Email lowercases and trims an email address. Empty input stays empty.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Slug lowercases, trims, and converts interior whitespace to hyphens.
// Used for role codes.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "-")
}
