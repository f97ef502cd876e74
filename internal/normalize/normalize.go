package normalize

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidAddress indicates the provided string is not a structurally
	// plausible email address.
	ErrInvalidAddress = errors.New("invalid email address")
)

var (
	localRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+$`)
	// structural pattern used by the column heuristics; intentionally cheap,
	// semantic validity is the verification service's job
	addressRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// IsBlank reports whether a raw cell value should be short-circuited to
// invalid without a network call: empty, whitespace-only, or the textual
// artifacts "null"/"undefined" left behind by upstream exporters.
func IsBlank(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "null", "undefined":
		return true
	}
	return false
}

// IsStructural reports whether s matches the cheap structural email
// pattern: one @, a non-empty local part, a dotted domain.
func IsStructural(s string) bool {
	return addressRe.MatchString(strings.TrimSpace(s))
}

// Address canonicalizes a raw address for the wire: trims whitespace,
// lowercases the domain, and converts an IDN domain to its ASCII
// (Punycode) form using the IDNA Lookup profile.
func Address(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return "", ErrInvalidAddress
	}
	local, domain := s[:at], s[at+1:]
	if !localRe.MatchString(local) {
		return "", ErrInvalidAddress
	}
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", ErrInvalidAddress
	}
	ascii = strings.ToLower(ascii)
	if !strings.Contains(ascii, ".") {
		return "", ErrInvalidAddress
	}
	return local + "@" + ascii, nil
}
