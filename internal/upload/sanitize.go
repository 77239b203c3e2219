package upload

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// SanitizeName turns a client-declared file name into a safe single path
// component. The stem and the extension are cleaned separately:
// compatibility-decomposed to ASCII, whitespace runs collapsed to
// underscores, anything outside [A-Za-z0-9_.-] dropped and leading or
// trailing dots and underscores trimmed. When the stem cleans to nothing
// (a name written entirely in a non-Latin script) fallbackStem is used in
// its place so the extension survives. The result is empty only when both
// are empty.
func SanitizeName(declared, fallbackStem string) string {
	stem, ext := splitExt(declared)
	stem = cleanNamePart(stem)
	ext = cleanNamePart(ext)
	if stem == "" {
		stem = cleanNamePart(fallbackStem)
	}
	switch {
	case stem == "":
		return ""
	case ext == "":
		return stem
	default:
		return stem + "." + ext
	}
}

// splitExt separates the text after the last dot of the final path
// component. A leading-dot name such as ".hidden" has no stem.
func splitExt(name string) (stem, ext string) {
	dot := strings.LastIndex(name, ".")
	if dot < 0 || strings.ContainsAny(name[dot:], `/\`) {
		return name, ""
	}
	return name[:dot], name[dot+1:]
}

func cleanNamePart(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("/", " ", `\`, " ").Replace(folded)
	joined := strings.Join(strings.Fields(folded), "_")
	return strings.Trim(unsafeNameChars.ReplaceAllString(joined, ""), "._")
}
