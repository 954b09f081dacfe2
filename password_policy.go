package accounts

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinPasswordLength is the shortest password the policy accepts.
const DefaultMinPasswordLength = 8

// commonPasswords is a short deny list of passwords seen in every breach
// corpus. Checked lowercase.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwerty123":   {},
	"letmein":     {},
	"iloveyou":    {},
	"admin123":    {},
	"welcome1":    {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"monkey123":   {},
	"dragon123":   {},
}

// PasswordPolicy validates new passwords against strength rules before they
// are hashed. The zero value is not usable; use DefaultPasswordPolicy.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy mirrors the rule set enforced by the platform:
// minimum length, no all-numeric passwords, no common passwords, and no
// passwords derived from the user's own attributes.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: DefaultMinPasswordLength}
}

// Validate returns the list of violated rules, empty when the password
// passes. The user is optional; attribute similarity checks are skipped
// when it is nil.
func (p PasswordPolicy) Validate(password string, user *User) []string {
	var violations []string

	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}

	if utf8.RuneCountInString(password) < minLen {
		violations = append(violations, "This password is too short. It must contain at least 8 characters.")
	}

	if password != "" && isEntirelyNumeric(password) {
		violations = append(violations, "This password is entirely numeric.")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		violations = append(violations, "This password is too common.")
	}

	if user != nil && tooSimilarToUser(password, user) {
		violations = append(violations, "The password is too similar to your personal information.")
	}

	return violations
}

// Check is a convenience wrapper returning a WeakPasswordError when the
// policy is violated.
func (p PasswordPolicy) Check(password string, user *User) error {
	if violations := p.Validate(password, user); len(violations) > 0 {
		return WeakPasswordError(violations)
	}
	return nil
}

func isEntirelyNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func tooSimilarToUser(password string, user *User) bool {
	candidate := strings.ToLower(password)

	attrs := []string{user.Username, user.FirstName, user.LastName}
	if at := strings.Index(user.Email, "@"); at > 0 {
		attrs = append(attrs, user.Email[:at])
	}

	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		// short attributes match everything, skip them
		if len(attr) < 4 {
			continue
		}
		if strings.Contains(candidate, attr) || strings.Contains(attr, candidate) {
			return true
		}
	}

	return false
}
