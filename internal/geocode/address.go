package geocode

import (
	"regexp"
	"strings"
)

// A leading house number (optionally with a letter or range) followed by at least one word.
var streetAddressPattern = regexp.MustCompile(`^\d+[A-Za-z]?(-\d+[A-Za-z]?)?,?\s+\p{L}`)

// LooksLikeStreetAddress is the structural check run before any geocoder lookup.
func LooksLikeStreetAddress(text string) bool {
	return streetAddressPattern.MatchString(strings.TrimSpace(text))
}

// NormalizeQuery is the cache and debounce comparison form of an address.
func NormalizeQuery(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
