package directory

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var canonicalFold = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

var lowerCaser = cases.Lower(language.Und)

// CanonicalName folds an organization name for uniqueness checks and
// search: accents stripped, case lowered, inner whitespace collapsed.
// "Résidences  du Parc" and "residences du parc" canonicalize identically.
func CanonicalName(name string) string {
	folded, _, err := transform.String(canonicalFold, name)
	if err != nil {
		folded = name
	}
	folded = lowerCaser.String(folded)
	return strings.Join(strings.Fields(folded), " ")
}
