package validation

import (
	"regexp"
	"strings"
)

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Examples valid: read, write, profile, profile:read, a_b-c.d:scope2
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ParseScope splits a space-delimited scope string into tokens.
// The wire format stays space-separated for OAuth compatibility; internally
// we work with slices/sets.
func ParseScope(s string) []string {
	return strings.Fields(s)
}

// JoinScope is the inverse of ParseScope.
func JoinScope(tokens []string) string {
	return strings.Join(tokens, " ")
}

// FilterScope returns requested ∩ allowed, preserving the order of the
// requested tokens. Unknown scopes are dropped silently, never an error.
func FilterScope(requested string, allowed []string) string {
	if requested == "" {
		return ""
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range ParseScope(requested) {
		if _, ok := set[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return JoinScope(out)
}

// ScopeSubset reports whether every token of sub is present in super.
// Both are space-delimited strings.
func ScopeSubset(sub, super string) bool {
	set := make(map[string]struct{})
	for _, tok := range ParseScope(super) {
		set[tok] = struct{}{}
	}
	for _, tok := range ParseScope(sub) {
		if _, ok := set[tok]; !ok {
			return false
		}
	}
	return true
}

// HasScope reports whether the granted scope string contains the token.
func HasScope(granted, token string) bool {
	for _, tok := range ParseScope(granted) {
		if tok == token {
			return true
		}
	}
	return false
}
