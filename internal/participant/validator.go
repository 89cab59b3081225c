// Package participant checks candidate participant identifiers against an
// exam's participant rule.
package participant

import (
	"strings"
	"unicode/utf8"

	"github.com/stemsi/studyplan-backend/internal/model"
)

// Violation names the first constraint an identifier fails.
type Violation string

const (
	ViolationNone     Violation = ""
	ViolationPrefix   Violation = "prefix"
	ViolationTooShort Violation = "too_short"
	ViolationTooLong  Violation = "too_long"
)

// Validate reports whether id satisfies rule. A nil or empty rule accepts any id.
func Validate(id string, rule *model.ParticipantRule) bool {
	return Explain(id, rule) == ViolationNone
}

// Explain returns the violated constraint, or ViolationNone.
// Prefixes are alternatives; prefix, minimum and maximum length are all required.
func Explain(id string, rule *model.ParticipantRule) Violation {
	if rule.IsEmpty() {
		return ViolationNone
	}
	if id == "" {
		return ViolationTooShort
	}

	if len(rule.StartsWith) > 0 && !hasAnyPrefix(id, rule.StartsWith) {
		return ViolationPrefix
	}

	n := utf8.RuneCountInString(id)
	if rule.MinLength != nil && n < *rule.MinLength {
		return ViolationTooShort
	}
	if rule.MaxLength != nil && n > *rule.MaxLength {
		return ViolationTooLong
	}
	return ViolationNone
}

func hasAnyPrefix(id string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
