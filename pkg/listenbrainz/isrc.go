package listenbrainz

import "regexp"

var (
	isrcSuffixPattern = regexp.MustCompile(`[A-Z]{2}-?\w{3}-?\d{2}-?\d{5}$`)
	isrcPattern       = regexp.MustCompile(`[A-Z]{2}-?\w{3}-?\d{2}-?\d{5}`)
)

// ExtractISRC pulls an ISRC code out of a raw metadata value.
//
// Players sometimes decorate the code with prefixes or suffixes. A code
// (CC-XXX-YY-NNNNN, hyphens optional) ending the value wins, since an
// unanchored scan would start inside an uppercase prefix. Otherwise the last
// ISRC-shaped substring is returned; ok is false when nothing matches and
// the field should be omitted.
func ExtractISRC(raw string) (isrc string, ok bool) {
	if m := isrcSuffixPattern.FindString(raw); m != "" {
		return m, true
	}

	matches := isrcPattern.FindAllString(raw, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1], true
}
