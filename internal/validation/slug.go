package validation

import "regexp"

// Tenant slug rules: lowercase alphanumeric and hyphen, must start and end
// with [a-z0-9], length 1..100. The slug is immutable once issued.
var slugRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,98}[a-z0-9])?$`)

// ValidSlug returns true if the provided tenant slug matches the allowed pattern.
func ValidSlug(slug string) bool {
	return slugRe.MatchString(slug)
}
