package password

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Symbols is the punctuation set accepted by the symbol rule.
const Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// A small set of passwords seen constantly in credential dumps. Matched
// case-insensitively when PolicyRules.RejectCommon is set.
var commonPasswords = []string{
	"password", "password1", "password123", "admin", "admin123",
	"12345678", "qwerty123", "letmein", "welcome", "monkey123",
}

// PolicyRules parameterizes the strength policy.
type PolicyRules struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSymbol    bool
	RejectCommon     bool
}

// Policy is the stateless password strength validator. Pure functions, no
// I/O; safe for concurrent use.
type Policy struct {
	rules PolicyRules
}

// NewPolicy returns a Policy enforcing the given rules.
func NewPolicy(rules PolicyRules) *Policy {
	if rules.MinLength < 1 {
		rules.MinLength = 1
	}
	return &Policy{rules: rules}
}

// Validate checks candidate against every rule in one pass and returns a
// description of each violated rule, so callers can present complete
// feedback rather than one complaint at a time. An empty slice means the
// candidate passes.
func (p *Policy) Validate(candidate string) []string {
	var violated []string

	// Length is counted in runes, not bytes, so multibyte characters
	// contribute one each.
	if utf8.RuneCountInString(candidate) < p.rules.MinLength {
		violated = append(violated, fmt.Sprintf("must be at least %d characters long", p.rules.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(Symbols, r):
			hasSymbol = true
		}
	}

	if p.rules.RequireUppercase && !hasUpper {
		violated = append(violated, "must contain at least one uppercase letter")
	}
	if p.rules.RequireLowercase && !hasLower {
		violated = append(violated, "must contain at least one lowercase letter")
	}
	if p.rules.RequireDigit && !hasDigit {
		violated = append(violated, "must contain at least one digit")
	}
	if p.rules.RequireSymbol && !hasSymbol {
		violated = append(violated, "must contain at least one symbol ("+Symbols+")")
	}

	if p.rules.RejectCommon {
		lowered := strings.ToLower(candidate)
		for _, common := range commonPasswords {
			if lowered == common {
				violated = append(violated, "is too common and easily guessable")
				break
			}
		}
	}

	return violated
}

// Strength scores candidate from 0 to 100 and labels the result. Advisory
// only; acceptance is decided by Validate.
func (p *Policy) Strength(candidate string) (string, int) {
	score := 0

	length := utf8.RuneCountInString(candidate)
	switch {
	case length >= 12:
		score += 30
	case length >= 10:
		score += 20
	case length >= p.rules.MinLength:
		score += 10
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	distinct := map[rune]struct{}{}
	for _, r := range candidate {
		distinct[r] = struct{}{}
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(Symbols, r):
			hasSymbol = true
		}
	}
	for _, present := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if present {
			score += 10
		}
	}

	if length > 0 && len(distinct)*10 > length*7 {
		score += 10
	}
	if length >= 16 {
		score += 20
	}
	if score > 100 {
		score = 100
	}

	switch {
	case score >= 80:
		return "very strong", score
	case score >= 60:
		return "strong", score
	case score >= 40:
		return "medium", score
	case score >= 20:
		return "weak", score
	default:
		return "very weak", score
	}
}
