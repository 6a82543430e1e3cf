// Package nickname implements the display-name suffix rules. Pure string
// logic; applying the result to a member is the platform adapter's job.
package nickname

import "strings"

// MaxLength is Discord's nickname limit, in characters.
const MaxLength = 32

// Apply appends the suffix, truncating the base name so the result fits
// MaxLength. Names already carrying the suffix are returned unchanged.
func Apply(name, suffix string) string {
	if suffix == "" || strings.HasSuffix(name, suffix) {
		return name
	}
	max := MaxLength - len([]rune(suffix))
	if max < 0 {
		max = 0
	}
	runes := []rune(name)
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes) + suffix
}

// Strip removes the suffix. If stripping would leave an empty name, the
// fallback (the account username) is returned instead. Names without the
// suffix are returned unchanged.
func Strip(name, suffix, fallback string) string {
	if suffix == "" || !strings.HasSuffix(name, suffix) {
		return name
	}
	stripped := strings.TrimSuffix(name, suffix)
	if strings.TrimSpace(stripped) == "" {
		return fallback
	}
	return stripped
}
