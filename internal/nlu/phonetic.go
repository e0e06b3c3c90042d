package nlu

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// TitleOption is a functional option for configuring a [TitleMatcher].
type TitleOption func(*TitleMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched title to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) TitleOption {
	return func(m *TitleMatcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) TitleOption {
	return func(m *TitleMatcher) {
		m.fuzzyThreshold = threshold
	}
}

// TitleMatcher resolves a spoken task or project name against the user's
// stored titles. Speech transcription mangles proper nouns ("buy groceries"
// arrives as "by grocery's"), so exact lookups fail where a human would not.
//
// Matching runs in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word of the spoken name and of each stored title; any code overlap
//     makes the title a candidate.
//  2. Jaro-Winkler ranking: candidates are ranked by string similarity on the
//     original titles (case-insensitive) and the best one wins, provided it
//     clears the phonetic threshold. With no phonetic candidate, a second
//     pass accepts a pure similarity match above the stricter fuzzy threshold.
//
// Multi-word titles are supported: codes are computed per word and the best
// pairwise score across word pairs feeds the ranking.
//
// All methods are safe for concurrent use; the matcher is read-only after
// construction.
type TitleMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewTitleMatcher returns a [TitleMatcher] configured with the supplied
// options. Default thresholds are 0.70 for phonetic matches and 0.85 for
// fuzzy fallback matches.
func NewTitleMatcher(opts ...TitleOption) *TitleMatcher {
	m := &TitleMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the stored title most likely meant by spoken.
//
// spoken may be a single word or a multi-word phrase. When matched is false,
// corrected equals spoken unchanged and confidence is 0, so callers can pass
// the value through untouched.
func (m *TitleMatcher) Match(spoken string, titles []string) (corrected string, confidence float64, matched bool) {
	if len(titles) == 0 || strings.TrimSpace(spoken) == "" {
		return spoken, 0, false
	}

	spokenLower := strings.ToLower(strings.TrimSpace(spoken))
	spokenTokens := strings.Fields(spokenLower)
	spokenCodes := codesForTokens(spokenTokens)

	type candidate struct {
		title    string
		score    float64
		phonetic bool
	}

	var best candidate

	for _, title := range titles {
		titleLower := strings.ToLower(strings.TrimSpace(title))
		if titleLower == "" {
			continue
		}
		titleTokens := strings.Fields(titleLower)

		titleCodes := codesForTokens(titleTokens)
		phoneticMatch := codesOverlap(spokenCodes, titleCodes)

		jwScore := bestJWScore(spokenTokens, titleTokens, spokenLower, titleLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{title: title, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{title: title, score: jwScore, phonetic: false}
			}
		}
	}

	if best.title != "" {
		return best.title, best.score, true
	}
	return spoken, 0, false
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (word too short or no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the spoken
// name and the title: full strings, space-stripped strings, and the best
// pairwise token score. longTolerance stays false for standard scoring.
func bestJWScore(spokenTokens, titleTokens []string, spokenFull, titleFull string) float64 {
	score := matchr.JaroWinkler(spokenFull, titleFull, false)

	if len(spokenTokens) > 1 || len(titleTokens) > 1 {
		concat1 := strings.Join(spokenTokens, "")
		concat2 := strings.Join(titleTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, st := range spokenTokens {
		for _, tt := range titleTokens {
			if s := matchr.JaroWinkler(st, tt, false); s > score {
				score = s
			}
		}
	}

	return score
}
