package match

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RuleSet describes how recognized and expected text are folded before comparison.
type RuleSet struct {
	Name string
	// Fold maps letter variants onto one canonical letter. Applied before
	// combining marks are stripped.
	Fold map[rune]rune
	// Remove lists runes dropped outright (tatweel, zero-width marks).
	Remove []rune
	// DropSpaces removes all whitespace instead of collapsing it. Useful for
	// scripts where recognizers split or join words inconsistently.
	DropSpaces bool
}

// Basic lower-cases, strips combining marks, punctuation and invisible
// formatting characters, and collapses whitespace.
var Basic = RuleSet{
	Name:   "basic",
	Remove: invisibles,
}

// Arabic extends Basic with the letter folding speech recognizers apply
// inconsistently: ta marbuta, alif with hamza or madda, alif maqsura.
var Arabic = RuleSet{
	Name: "arabic",
	Fold: map[rune]rune{
		'ة': 'ه',
		'أ': 'ا',
		'إ': 'ا',
		'آ': 'ا',
		'ٱ': 'ا',
		'ى': 'ي',
	},
	Remove:     append([]rune{'\u0640'}, invisibles...),
	DropSpaces: true,
}

var invisibles = []rune{
	'\u200B', // zero width space
	'\u200C', // zero width non-joiner
	'\u200D', // zero width joiner
	'\u200E', // left-to-right mark
	'\u200F', // right-to-left mark
	'\uFEFF', // byte order mark
}

// RuleSetByName returns a predefined rule set.
func RuleSetByName(name string) (RuleSet, error) {
	switch strings.ToLower(name) {
	case "", "arabic":
		return Arabic, nil
	case "basic":
		return Basic, nil
	}
	return RuleSet{}, fmt.Errorf("unknown match rule set %q", name)
}

// Normalize folds s according to the rule set.
func (rs RuleSet) Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if len(rs.Fold) > 0 {
		s = strings.Map(func(r rune) rune {
			if f, ok := rs.Fold[r]; ok {
				return f
			}
			return r
		}, s)
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}

	remove := make(map[rune]bool, len(rs.Remove))
	for _, r := range rs.Remove {
		remove[r] = true
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case remove[r], unicode.IsPunct(r), unicode.IsSymbol(r):
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		}
		if space && !rs.DropSpaces && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
