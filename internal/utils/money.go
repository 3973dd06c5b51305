package utils

import (
	"math"
	"strconv"
	"strings"
)

// ParseMoney extracts a non-negative amount from a price-like string such as
// "$1,850/mo". Every rune that is not a digit or '.' is dropped before parsing.
// ok is false for empty input or when the remainder is not a number.
func ParseMoney(input string) (float64, bool) {
	if input == "" {
		return 0, false
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, false
	}
	return value, true
}

// FormatMoney renders a whole-dollar amount with thousands separators, e.g. "$12,500".
func FormatMoney(amount float64) string {
	n := int64(math.Round(math.Abs(amount)))
	digits := strconv.FormatInt(n, 10)

	var b strings.Builder
	b.WriteByte('$')
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

// ParseCount parses a leading integer from text like "2", "4+" or "3 beds".
// atLeast reports a trailing '+' (an open-ended "N or more" request).
func ParseCount(input string) (n int, atLeast bool, ok bool) {
	s := strings.TrimSpace(input)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false, false
	}
	return n, strings.HasPrefix(strings.TrimSpace(s[end:]), "+"), true
}
