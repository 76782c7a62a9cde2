package ledger

import "strings"

const subscriberDigits = 9

// NormalizePhone returns the canonical form of a payer phone number, the country
// code followed by the 9-digit subscriber number without "+". ok is false when raw
// does not look like a phone number of that country.
func NormalizePhone(raw, countryCode string) (string, bool) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")
	if s == "" || !allDigits(s) {
		return "", false
	}

	switch {
	case strings.HasPrefix(s, countryCode) && len(s) == len(countryCode)+subscriberDigits:
		return s, true
	case strings.HasPrefix(s, "0") && len(s) == subscriberDigits+1:
		return countryCode + s[1:], true
	case len(s) == subscriberDigits:
		return countryCode + s, true
	}
	return "", false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
