// Package screening decides what happens to a submitted comment before it is
// allowed to become feedback.
package screening

import (
	"context"
	"strings"
	"unicode"

	goaway "github.com/TwiN/go-away"
)

// Outcome of classifying a comment.
type Outcome int

const (
	// Clean text is persisted as-is.
	Clean Outcome = iota
	// Flag text is accepted but queued for moderator review.
	Flag
	// Reject text is never persisted as feedback; the token stays usable.
	Reject
)

// Machine reason codes. These are stored with rejected attempts and mapped to
// user copy at the API boundary; they are never shown to students verbatim.
const (
	ReasonProfanity    = "profanity"
	ReasonWatchlist    = "watchlist"
	ReasonInsufficient = "insufficient"
	ReasonUnavailable  = "unavailable"
)

// Result of a classification. Cleaned is the censored form of the text and is
// what dashboards display; it equals the input when nothing was masked.
type Result struct {
	Outcome Outcome
	Reason  string
	Cleaned string
}

// Classifier screens a comment. Implementations must be pure: same ruleset,
// same text, same result. A model-backed implementation may block on a remote
// call; callers bound it with the context.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

type lexiconClassifier struct {
	detector   *goaway.ProfanityDetector
	watchlist  []string
	minLetters int
}

// NewLexiconClassifier builds the rule-based classifier: the stock profanity
// lexicon plus extraProfanity rejects a comment outright; a watchlist phrase
// accepts it flagged for review; a comment with fewer than minLetters letters
// is rejected as insufficient rather than toxic.
func NewLexiconClassifier(extraProfanity, watchlist []string, minLetters int) Classifier {
	profanities := append([]string{}, goaway.DefaultProfanities...)
	for _, w := range extraProfanity {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			profanities = append(profanities, w)
		}
	}
	lowered := make([]string, 0, len(watchlist))
	for _, w := range watchlist {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lowered = append(lowered, w)
		}
	}
	return &lexiconClassifier{
		detector: goaway.NewProfanityDetector().
			WithCustomDictionary(profanities, goaway.DefaultFalsePositives, goaway.DefaultFalseNegatives),
		watchlist:  lowered,
		minLetters: minLetters,
	}
}

func (c *lexiconClassifier) Classify(_ context.Context, text string) (Result, error) {
	if c.detector.IsProfane(text) {
		return Result{Outcome: Reject, Reason: ReasonProfanity, Cleaned: c.detector.Censor(text)}, nil
	}
	if letterCount(text) < c.minLetters {
		return Result{Outcome: Reject, Reason: ReasonInsufficient, Cleaned: text}, nil
	}
	lower := strings.ToLower(text)
	for _, phrase := range c.watchlist {
		if strings.Contains(lower, phrase) {
			return Result{Outcome: Flag, Reason: ReasonWatchlist, Cleaned: text}, nil
		}
	}
	return Result{Outcome: Clean, Cleaned: text}, nil
}

func letterCount(s string) int {
	var n int
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
