// Package match scores a recognized transcription against the word a patient
// was asked to name.
//
// Both strings are folded by a RuleSet first. An exact match after folding
// scores 1.0. When one string contains the other (the recognizer picked up a
// carrier phrase around the target) the score is ContainmentScore. Otherwise
// the score is a weighted blend of normalized Levenshtein similarity,
// multiset character overlap and character-set Jaccard overlap.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	// DefaultThreshold is the minimum similarity accepted as a correct answer.
	DefaultThreshold = 0.80

	// ContainmentScore is assigned when one normalized string contains the other.
	ContainmentScore = 0.95

	editWeight    = 0.6
	overlapWeight = 0.3
	jaccardWeight = 0.1
)

// Verdict is the outcome of comparing a transcription with its target word.
type Verdict struct {
	Correct    bool    `json:"is_correct"`
	Confidence float64 `json:"confidence"`
}

// Option is a functional option for configuring a Scorer.
type Option func(*Scorer)

// WithThreshold sets the base similarity threshold. Default: 0.80.
func WithThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.threshold = threshold
	}
}

// WithRuleSet sets the normalization rules. Default: Arabic.
func WithRuleSet(rs RuleSet) Option {
	return func(s *Scorer) {
		s.rules = rs
	}
}

// WithLengthAdjust raises the threshold for short targets, where a single
// wrong letter already changes the word: at least 0.80 for targets of up to
// three letters and 0.75 for up to five.
func WithLengthAdjust(enabled bool) Option {
	return func(s *Scorer) {
		s.lengthAdjust = enabled
	}
}

// Scorer compares transcriptions with expected words. It is read-only after
// construction and safe for concurrent use.
type Scorer struct {
	threshold    float64
	rules        RuleSet
	lengthAdjust bool
}

// New returns a Scorer configured with the supplied options.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		threshold:    DefaultThreshold,
		rules:        Arabic,
		lengthAdjust: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Threshold returns the configured base threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Rules returns the configured rule set.
func (s *Scorer) Rules() RuleSet { return s.rules }

// Score compares recognized against expected. An empty transcription never matches.
func (s *Scorer) Score(recognized, expected string) Verdict {
	got := s.rules.Normalize(recognized)
	want := s.rules.Normalize(expected)
	if got == "" || want == "" {
		return Verdict{}
	}
	if got == want {
		return Verdict{Correct: true, Confidence: 1.0}
	}

	sim := Similarity(got, want)
	return Verdict{
		Correct:    sim >= s.thresholdFor(want),
		Confidence: sim,
	}
}

func (s *Scorer) thresholdFor(target string) float64 {
	t := s.threshold
	if !s.lengthAdjust {
		return t
	}
	switch n := utf8.RuneCountInString(target); {
	case n <= 3:
		return max(t, 0.80)
	case n <= 5:
		return max(t, 0.75)
	}
	return t
}

// Similarity returns a score in [0,1] for two already normalized strings.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return ContainmentScore
	}

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	maxLen := float64(max(la, lb))

	edit := 1 - float64(matchr.Levenshtein(a, b))/maxLen
	if edit < 0 {
		edit = 0
	}
	overlap := float64(multisetOverlap(a, b)) / maxLen

	sim := editWeight*edit + overlapWeight*overlap + jaccardWeight*jaccard(a, b)
	return clamp(sim)
}

// multisetOverlap counts runes of a that can be paired with a distinct rune of b.
func multisetOverlap(a, b string) int {
	counts := make(map[rune]int)
	for _, r := range b {
		counts[r]++
	}
	n := 0
	for _, r := range a {
		if counts[r] > 0 {
			counts[r]--
			n++
		}
	}
	return n
}

func jaccard(a, b string) float64 {
	sa := make(map[rune]struct{})
	for _, r := range a {
		sa[r] = struct{}{}
	}
	union := len(sa)
	inter := 0
	seen := make(map[rune]struct{})
	for _, r := range b {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		if _, ok := sa[r]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
