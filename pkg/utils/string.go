package utils

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
// Used for log previews of stored content.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
