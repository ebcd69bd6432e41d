package utils

import "strings"

// ToID normalizes a display name into a user or room identity: lowercase,
// with everything outside [a-z0-9] removed.
func ToID(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
