package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes text and drops the combining marks, so "Tiểu" becomes "Tieu".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// compatibility characters that survive NFD decomposition and need an
// explicit plain-Latin mapping.
var latinFold = strings.NewReplacer(
	"đ", "d",
	"Đ", "D",
)

// Normalize canonicalizes free text for matching: diacritics stripped,
// whitespace collapsed, lower-cased. It is deterministic and idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	folded, _, err := transform.String(stripMarks, text)
	if err != nil {
		// Malformed input; fall back to the raw text so matching degrades
		// to case folding instead of failing the row.
		folded = text
	}
	folded = latinFold.Replace(folded)
	folded = strings.Join(strings.Fields(folded), " ")
	return strings.ToLower(folded)
}

// AlnumKey reduces a column header to a normalized key containing only
// letters and digits. "Mã học sinh" and "ma_hoc_sinh" share the same key.
func AlnumKey(text string) string {
	normalized := Normalize(text)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
