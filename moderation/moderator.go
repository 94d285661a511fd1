// Package moderation masks blocked words in chat bodies before they reach
// the agent.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds an Aho-Corasick automaton over the normalized form of
// words. Words that normalize to nothing are skipped; with no usable words
// the moderator passes text through unchanged.
func NewModerator(words []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	if log == nil {
		log = slog.Default()
	}
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		if p := normalizeRunes([]rune(word)); len(p) > 0 {
			patterns = append(patterns, p)
		}
	}

	mod := &Moderator{censoredChar: censoredChar, log: log}
	if len(patterns) == 0 {
		return mod, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	mod.matcher = m
	return mod, nil
}

// Censor replaces every character spanning a blocked word, including noise
// inside it ("b.a.d"), and returns the matched words.
func (m *Moderator) Censor(original string) (string, []string) {
	if m == nil || m.matcher == nil {
		return original, nil
	}
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var words []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
		words = append(words, string(span.Word))
	}

	if len(words) > 0 {
		m.log.Debug("moderation: censored", "words", words)
	}
	return string(origRunes), words
}

func normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet substitutions back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
