package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Per-signal weights and caps. Each signal is capped independently so no
// single pattern can saturate the score on its own; the total is clamped
// to [0, 1].
const (
	keywordWeight = 0.1
	keywordCap    = 0.4

	patternWeight = 0.05
	patternCap    = 0.3

	shortBodyLimit   = 10
	shortBodyPenalty = 0.2

	longBodyLimit   = 2000
	longBodyPenalty = 0.15

	numericEmailPenalty = 0.1

	repeatedRunLength  = 5
	repeatedRunPenalty = 0.1

	noSpacePenalty = 0.2

	punctRatioLimit  = 0.1
	punctRatioWeight = 0.5
	punctRatioCap    = 0.2
)

var (
	numericLocalPart = regexp.MustCompile(`\d{5,}`)
	punctChars       = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// Signal records one scoring heuristic's outcome for diagnostics.
type Signal struct {
	Name         string  `json:"name"`
	Triggered    bool    `json:"triggered"`
	Contribution float64 `json:"contribution"`
	Detail       string  `json:"detail,omitempty"`
}

// Scorer computes a spam-likelihood score in [0, 1] from submitted content
// by accumulating independent, individually capped heuristics.
type Scorer struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewScorer compiles a Scorer from a keyword list and a set of structural
// regex patterns. Keywords are matched case-insensitively; patterns are
// applied to the original-case text (the all-caps pattern depends on it).
func NewScorer(keywords, patterns []string) (*Scorer, error) {
	s := &Scorer{keywords: make([]string, 0, len(keywords))}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			s.keywords = append(s.keywords, kw)
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("spam pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Score computes the spam score for a submission. The returned signals
// describe each heuristic's contribution; they are diagnostic only and are
// not persisted.
func (s *Scorer) Score(name, email, subject, body string) (float64, []Signal) {
	var score float64
	var signals []Signal

	allText := name + " " + email + " " + subject + " " + body
	lowerText := strings.ToLower(allText)
	trimmedBody := strings.TrimSpace(body)

	add := func(sig Signal) {
		score += sig.Contribution
		signals = append(signals, sig)
	}

	// Keyword matches, capped.
	keywordMatches := 0
	for _, kw := range s.keywords {
		if strings.Contains(lowerText, kw) {
			keywordMatches++
		}
	}
	add(Signal{
		Name:         "spam_keywords",
		Triggered:    keywordMatches > 0,
		Contribution: min(float64(keywordMatches)*keywordWeight, keywordCap),
		Detail:       fmt.Sprintf("%d matches", keywordMatches),
	})

	// Structural pattern matches, capped.
	patternMatches := 0
	for _, re := range s.patterns {
		patternMatches += len(re.FindAllStringIndex(allText, -1))
	}
	add(Signal{
		Name:         "spam_patterns",
		Triggered:    patternMatches > 0,
		Contribution: min(float64(patternMatches)*patternWeight, patternCap),
		Detail:       fmt.Sprintf("%d matches", patternMatches),
	})

	// Body length extremes. Lengths are characters, not bytes, so
	// multibyte text is judged the same as ASCII.
	bodyLen := utf8.RuneCountInString(trimmedBody)
	switch {
	case bodyLen < shortBodyLimit:
		add(Signal{Name: "very_short_body", Triggered: true, Contribution: shortBodyPenalty,
			Detail: fmt.Sprintf("%d chars", bodyLen)})
	case bodyLen > longBodyLimit:
		add(Signal{Name: "very_long_body", Triggered: true, Contribution: longBodyPenalty,
			Detail: fmt.Sprintf("%d chars", bodyLen)})
	}

	// Numeric-heavy email local part.
	localPart, _, _ := strings.Cut(email, "@")
	if numericLocalPart.MatchString(localPart) {
		add(Signal{Name: "numeric_email", Triggered: true, Contribution: numericEmailPenalty})
	}

	// Runs of identical characters anywhere in the combined text.
	if hasRepeatedRun(allText, repeatedRunLength) {
		add(Signal{Name: "repeated_chars", Triggered: true, Contribution: repeatedRunPenalty})
	}

	// Single-token bodies are typical of bot payloads.
	if !strings.Contains(trimmedBody, " ") {
		add(Signal{Name: "no_spaces", Triggered: true, Contribution: noSpacePenalty})
	}

	// Punctuation-to-length ratio, again over characters.
	if bodyRunes := utf8.RuneCountInString(body); bodyRunes > 0 {
		ratio := float64(len(punctChars.FindAllStringIndex(body, -1))) / float64(bodyRunes)
		if ratio > punctRatioLimit {
			add(Signal{
				Name:         "excessive_punctuation",
				Triggered:    true,
				Contribution: min(ratio*punctRatioWeight, punctRatioCap),
				Detail:       fmt.Sprintf("ratio %.2f", ratio),
			})
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, signals
}

// hasRepeatedRun reports whether text contains n or more identical
// consecutive runes. Go's regexp has no backreferences, so this is a plain
// scan.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}
