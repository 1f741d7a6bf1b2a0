package identity

import (
	"regexp"
	"strings"
)

// DefaultKey is used when a display name canonicalizes to nothing.
const DefaultKey = "default_user"

var (
	disallowed  = regexp.MustCompile(`[^\w\s-]`)
	whitespace  = regexp.MustCompile(`\s+`)
	underscores = regexp.MustCompile(`_+`)
)

// Canonicalize turns a display name into a stable storage key.
// Characters outside word/space/hyphen become underscores, whitespace
// collapses to single underscores, and runs of underscores are merged.
// The result is safe as a path component and idempotent: canonicalizing
// a canonical key returns it unchanged.
func Canonicalize(name string) string {
	s := disallowed.ReplaceAllString(name, "_")
	s = whitespace.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultKey
	}
	return s
}
