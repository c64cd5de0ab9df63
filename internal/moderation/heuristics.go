// Package moderation decides whether submitted text is acceptable: length
// rules, gibberish heuristics and a profanity check.
package moderation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/models"
)

// Rejection reasons.
const (
	ReasonRepetition = "Please avoid excessive repetition of characters or patterns"
	ReasonKeyboard   = "Please write real words instead of random keyboard characters"
	ReasonRealWords  = "Please write a proper idea with real words"
	ReasonAllCaps    = "Please avoid writing in all capital letters"
	ReasonVariety    = "Please write a more varied idea with different words"
	ReasonGeneric    = "Please write a meaningful idea with real words"
)

const allCapsMinLength = 20

var keyboardPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[qwertyuiop]+$`),
	regexp.MustCompile(`^[asdfghjkl]+$`),
	regexp.MustCompile(`^[zxcvbnm]+$`),
	regexp.MustCompile(`^[qwerty]+$`),
	regexp.MustCompile(`^[asdfgh]+$`),
	regexp.MustCompile(`^[zxcvb]+$`),
	regexp.MustCompile(`^[poiuyt]+$`),
	regexp.MustCompile(`^[lkjhgf]+$`),
	regexp.MustCompile(`^[mnbvcx]+$`),
}

var (
	vowelRe     = regexp.MustCompile(`[aeiouáéíóú]`)
	consonantRe = regexp.MustCompile(`[bcdfghjklmnpqrstvwxyzñ]`)
)

// Validate checks the length bounds. The error wraps apperr.ErrInvalidIdea.
func Validate(text string) error {
	err := validation.Validate(strings.TrimSpace(text),
		validation.Required.Error("idea text is required"),
		validation.RuneLength(models.MinTextLength, models.MaxTextLength).
			Error(fmt.Sprintf("idea must be %d to %d characters", models.MinTextLength, models.MaxTextLength)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidIdea, err)
	}
	return nil
}

// IsAcceptable reports whether text passes every heuristic.
func IsAcceptable(text string) bool {
	return check(text) == ""
}

// Reason explains why text is not acceptable. Acceptable text gets a generic
// prompt.
func Reason(text string) string {
	if r := check(text); r != "" {
		return r
	}
	return ReasonGeneric
}

func check(text string) string {
	clean := strings.ToLower(strings.TrimSpace(text))

	if hasRepetition(clean) {
		return ReasonRepetition
	}
	for _, re := range keyboardPatterns {
		if re.MatchString(clean) {
			return ReasonKeyboard
		}
	}
	if !vowelRe.MatchString(clean) || !consonantRe.MatchString(clean) {
		return ReasonRealWords
	}
	if text == strings.ToUpper(text) && utf8.RuneCountInString(text) > allCapsMinLength {
		return ReasonAllCaps
	}

	var words []string
	unique := map[string]bool{}
	for _, w := range strings.Fields(clean) {
		if utf8.RuneCountInString(w) > 2 {
			words = append(words, w)
			unique[w] = true
		}
	}
	if len(words) >= 2 && len(unique) < 2 {
		return ReasonVariety
	}
	return ""
}

// hasRepetition reports a unit of one to three characters repeated four
// times in a row. Units never span a line break.
func hasRepetition(s string) bool {
	r := []rune(s)
	for i := range r {
		for size := 1; size <= 3; size++ {
			if run(r, i, size) >= 4 {
				return true
			}
		}
	}
	return false
}

// run counts consecutive copies of r[i:i+size] starting at i.
func run(r []rune, i, size int) int {
	if i+size > len(r) {
		return 0
	}
	unit := r[i : i+size]
	for _, c := range unit {
		if c == '\n' {
			return 0
		}
	}
	n := 0
	for j := i; j+size <= len(r); j += size {
		for k := range size {
			if r[j+k] != unit[k] {
				return n
			}
		}
		n++
	}
	return n
}
