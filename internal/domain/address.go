package domain

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultCity is the city appended to addresses that do not name one.
const DefaultCity = "Tunis"

const countrySuffix = ", Tunisia"

// trailingTokenRe matches one trailing country or capital-city token, e.g.
// "…, Tunisie" or "…,TUNIS", or an address made of the token alone.
// Applied repeatedly until nothing matches.
var trailingTokenRe = regexp.MustCompile(`(?i)(^|\s*,)\s*(tunisia|tunisie|tunis)\s*$`)

// Locality is a secondary locality of greater Tunis that providers resolve
// better than the capital itself.
type Locality struct {
	Token string // case-folded match token
	Name  string // display form used in queries
}

// SecondaryLocalities is the fixed allow-list scanned by the degrading fallback.
var SecondaryLocalities = []Locality{
	{Token: "carthage", Name: "Carthage"},
	{Token: "marsa", Name: "La Marsa"},
	{Token: "goulette", Name: "La Goulette"},
	{Token: "ariana", Name: "Ariana"},
	{Token: "bardo", Name: "Le Bardo"},
	{Token: "sidi bou said", Name: "Sidi Bou Said"},
	{Token: "manouba", Name: "Manouba"},
	{Token: "ben arous", Name: "Ben Arous"},
}

// NormalizeAddress canonicalizes a raw address before it is sent to a provider.
// Trailing ", Tunisia", ", Tunisie" and ", Tunis" tokens are stripped, then
// ", Tunisia" is appended, preceded by the city when the address does not
// already mention it. The result is a fixed point: normalizing it again returns
// the same string.
func NormalizeAddress(address, city string) string {
	city = strings.TrimSpace(city)
	if city == "" {
		city = DefaultCity
	}

	base := stripTrailingTokens(address)
	if base == "" {
		return city + countrySuffix
	}
	if strings.Contains(fold(base), fold(city)) {
		return base + countrySuffix
	}
	return base + ", " + city + countrySuffix
}

func stripTrailingTokens(address string) string {
	s := strings.Trim(address, " \t\r\n,")
	for {
		next := strings.Trim(trailingTokenRe.ReplaceAllString(s, ""), " \t\r\n,")
		if next == s {
			return s
		}
		s = next
	}
}

// AddressSegments splits a raw address on commas, dropping blank segments.
func AddressSegments(address string) []string {
	parts := strings.Split(address, ",")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// MatchLocalities returns the allow-listed localities mentioned in segments,
// in segment order and without duplicates.
func MatchLocalities(segments []string) []Locality {
	var matched []Locality
	seen := make(map[string]bool)
	for _, seg := range segments {
		folded := fold(seg)
		for _, loc := range SecondaryLocalities {
			if seen[loc.Token] || !strings.Contains(folded, loc.Token) {
				continue
			}
			seen[loc.Token] = true
			matched = append(matched, loc)
		}
	}
	return matched
}

// fold builds a fresh Caser per call; Casers are stateful and not goroutine-safe.
func fold(s string) string {
	return cases.Fold().String(s)
}

// HasLocalityPrefix reports whether name begins with locality, ignoring case.
// Providers fall back to the locality centroid with a display name of this form.
func HasLocalityPrefix(name, locality string) bool {
	locality = strings.TrimSpace(locality)
	if locality == "" {
		return false
	}
	return strings.HasPrefix(fold(strings.TrimSpace(name)), fold(locality))
}
