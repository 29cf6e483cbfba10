package entity

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

const (
	MinNameLen = 2
	MaxNameLen = 50
	MinAge     = 13
	MaxAge     = 120
)

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// Sanitize trims whitespace and strips angle brackets.
func Sanitize(s string) string {
	return angleBrackets.Replace(strings.TrimSpace(s))
}

// NormalizeEmail sanitizes and lowercases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(Sanitize(s))
}

func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidName accepts 2 to 50 characters after trimming.
func ValidName(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= MinNameLen && n <= MaxNameLen
}

// AgeOn returns the age in whole years reached by now.
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func ValidBirthDate(dob, now time.Time) bool {
	age := AgeOn(dob, now)
	return age >= MinAge && age <= MaxAge
}

// ParseBirthDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseBirthDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
