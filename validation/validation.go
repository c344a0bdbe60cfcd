package validation

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Violations maps a form field to a translation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Has reports whether field has a violation.
func (v Violations) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// MinLength requires at least n characters once surrounding spaces are trimmed.
// An empty value is reported as required.
func MinLength(field, value string, n int, v Violations) {
	s := strings.TrimSpace(value)
	if s == "" {
		v[field] = "required"
		return
	}
	if utf8.RuneCountInString(s) < n {
		v[field] = "too_short"
	}
}

// OneOf requires value to be one of the allowed choices.
func OneOf(field, value string, allowed []string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

// PositiveNumber parses value as a decimal number (a comma decimal separator
// is accepted) and requires it to be > 0. It returns the parsed value.
func PositiveNumber(field, value string, v Violations) float64 {
	s := strings.TrimSpace(value)
	if s == "" {
		v[field] = "required"
		return 0
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		v[field] = "not_a_number"
		return 0
	}
	PositiveFloat(field, f, v)
	return f
}

// Email performs a shallow shape check; the server owns real validation.
func Email(field, value string, v Violations) {
	s := strings.TrimSpace(value)
	if s == "" {
		v[field] = "required"
		return
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 || !strings.Contains(s[at+1:], ".") {
		v[field] = "invalid_email"
	}
}
