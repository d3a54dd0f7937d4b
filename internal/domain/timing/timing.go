// Package timing orders the clock strings of a racecheck feed.
//
// A clock is "HH:MM:SS" with an optional ".fraction" on the seconds. The
// ordering key is hours, then minutes, then whole seconds. Strings that do
// not have that shape are malformed and always order after well-formed
// clocks; two malformed clocks compare equal.
package timing

import (
	"strconv"
	"strings"
)

const (
	clockParts     = 3
	fractionDigits = 3
)

// Clock is a parsed elapsed time.
type Clock struct {
	Hours   int
	Minutes int
	Seconds int
	// Millis holds the fractional seconds scaled to milliseconds. It is not
	// part of the Compare key.
	Millis int
}

// Parse reads s as a clock. ok is false when s is malformed.
func Parse(s string) (Clock, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != clockParts {
		return Clock{}, false
	}
	secs, frac, _ := strings.Cut(parts[2], ".")
	h, ok := atoi(parts[0])
	if !ok {
		return Clock{}, false
	}
	m, ok := atoi(parts[1])
	if !ok {
		return Clock{}, false
	}
	sec, ok := atoi(secs)
	if !ok {
		return Clock{}, false
	}
	ms, ok := millis(frac)
	if !ok {
		return Clock{}, false
	}
	return Clock{Hours: h, Minutes: m, Seconds: sec, Millis: ms}, true
}

// Compare orders a and b ascending by hours, minutes and whole seconds. It
// returns a negative number when a is faster, zero when both share the same
// key, and a positive number otherwise.
func Compare(a, b string) int {
	ca, okA := Parse(a)
	cb, okB := Parse(b)
	if c, done := compareValidity(okA, okB); done {
		return c
	}
	return compareKey(ca, cb)
}

// CompareFractional is Compare with the fractional seconds as a final tie
// break.
func CompareFractional(a, b string) int {
	ca, okA := Parse(a)
	cb, okB := Parse(b)
	if c, done := compareValidity(okA, okB); done {
		return c
	}
	if c := compareKey(ca, cb); c != 0 {
		return c
	}
	return cmpInt(ca.Millis, cb.Millis)
}

func compareValidity(okA, okB bool) (int, bool) {
	switch {
	case okA && okB:
		return 0, false
	case okA:
		return -1, true
	case okB:
		return 1, true
	default:
		return 0, true
	}
}

func compareKey(a, b Clock) int {
	if c := cmpInt(a.Hours, b.Hours); c != 0 {
		return c
	}
	if c := cmpInt(a.Minutes, b.Minutes); c != 0 {
		return c
	}
	return cmpInt(a.Seconds, b.Seconds)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// atoi accepts a non-empty run of ASCII digits.
func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// millis scales a fraction like "5" or "123456" to milliseconds, truncating
// extra digits.
func millis(frac string) (int, bool) {
	if frac == "" {
		return 0, true
	}
	if _, ok := atoi(frac); !ok {
		return 0, false
	}
	if len(frac) > fractionDigits {
		frac = frac[:fractionDigits]
	}
	for len(frac) < fractionDigits {
		frac += "0"
	}
	return atoi(frac)
}
