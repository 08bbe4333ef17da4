package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

const (
	MinCommentLength = 8
	MaxCommentLength = 4000

	// Comments where a single character makes up more than this share of
	// the text are treated as keyboard mashing.
	maxDominantRuneShare = 0.5

	// Shannon entropy (bits per rune) below which a comment is considered
	// too uniform to be genuine engagement.
	minCommentEntropy = 1.5
)

// CommentResult is the outcome of the anti-spam gate.
type CommentResult struct {
	Valid  bool
	Reason string
}

// ValidateComment applies the content-quality gate that runs before a
// comment is offered to the scoring engine: length bounds, character
// repetition and entropy heuristics. It never errors; a rejected comment
// simply earns no points.
func ValidateComment(text string) CommentResult {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)

	if len(runes) < MinCommentLength {
		return CommentResult{Valid: false, Reason: fmt.Sprintf("comment shorter than %d characters", MinCommentLength)}
	}
	if len(runes) > MaxCommentLength {
		return CommentResult{Valid: false, Reason: fmt.Sprintf("comment longer than %d characters", MaxCommentLength)}
	}

	freq := make(map[rune]int, len(runes))
	letters := 0
	for _, r := range runes {
		freq[r]++
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			letters++
		}
	}
	if letters == 0 {
		return CommentResult{Valid: false, Reason: "comment contains no letters or digits"}
	}

	for _, count := range freq {
		if float64(count)/float64(len(runes)) > maxDominantRuneShare {
			return CommentResult{Valid: false, Reason: "comment is dominated by a single repeated character"}
		}
	}

	if entropy(freq, len(runes)) < minCommentEntropy {
		return CommentResult{Valid: false, Reason: "comment text is too repetitive"}
	}

	return CommentResult{Valid: true}
}

// CommentGate adapts ValidateComment to the scoring engine's validator
// interface.
type CommentGate struct{}

func (CommentGate) ValidateComment(text string) (bool, string) {
	result := ValidateComment(text)
	return result.Valid, result.Reason
}

// entropy computes Shannon entropy in bits per rune.
func entropy(freq map[rune]int, total int) float64 {
	var h float64
	for _, count := range freq {
		p := float64(count) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// ValidatePositiveInt checks that a quantity or currency field is strictly positive.
func ValidatePositiveInt(value int64, fieldName string) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	return nil
}

// ValidateNonNegativeInt checks that a counter field is not negative.
func ValidateNonNegativeInt(value int64, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s cannot be negative", fieldName)
	}
	return nil
}
