// Package textutil canonicalizes free-form customer text so keyword and alias
// matching can rely on plain ASCII substrings.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumRx = regexp.MustCompile(`[^a-z0-9]+`)
	nonDigitRx = regexp.MustCompile(`\D+`)
	orderNoRx  = regexp.MustCompile(`\d{6,}`)
	cpfRx      = regexp.MustCompile(`\d{3}[ .-]?\d{3}[ .-]?\d{3}[ .-]?\d{2}`)
	emailRx    = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
)

// Normalize lowercases, folds accented characters to ASCII, collapses every
// run of non-alphanumeric characters into a single space and trims the ends.
// Idempotent and total: any input (including empty) yields a valid result.
func Normalize(s string) string {
	s = strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.TrimSpace(nonAlnumRx.ReplaceAllString(s, " "))
}

// DigitsOnly strips everything but decimal digits.
func DigitsOnly(s string) string {
	return nonDigitRx.ReplaceAllString(s, "")
}

// NormalizePhone reduces a phone number to digits and guarantees the Brazilian
// country code prefix.
func NormalizePhone(s string) string {
	d := DigitsOnly(s)
	if d != "" && !strings.HasPrefix(d, "55") {
		d = "55" + d
	}
	return d
}

// OrderNoFromText returns the first run of 6 or more digits, or "".
func OrderNoFromText(s string) string {
	return orderNoRx.FindString(s)
}

// CPFFromText returns the digits of the first CPF-shaped number (11 digits,
// optionally grouped with separators), or "".
func CPFFromText(s string) string {
	for _, m := range cpfRx.FindAllString(s, -1) {
		if d := DigitsOnly(m); len(d) == 11 {
			return d
		}
	}
	return ""
}

// EmailFromText returns the first email address in s, lowercased, or "".
// It runs on the raw text: normalization would strip the @ and dots.
func EmailFromText(s string) string {
	return strings.ToLower(emailRx.FindString(s))
}

// FirstName returns the first word of a full name, title-cased for use in
// greetings. Empty input yields "".
func FirstName(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return ""
	}
	return cases.Title(language.BrazilianPortuguese).String(strings.ToLower(fields[0]))
}
