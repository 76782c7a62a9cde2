package notification_parser

import (
	"regexp"
	"strings"
)

type Field string

const (
	FieldReference  Field = "reference"
	FieldAmount     Field = "amount"
	FieldAccount    Field = "account"
	FieldPhone      Field = "phone"
	FieldPayerName  Field = "payer_name"
	FieldOccurredAt Field = "occurred_at"
)

// Rule extracts one field from a notification. Each rule is matched on its own so
// a change in one part of the vendor format only breaks that rule.
type Rule struct {
	Field    Field
	Pattern  *regexp.Regexp
	Required bool
}

// Extract returns the submatches of the rule, trimmed, or nil when it does not
// match. A pattern without capture groups never yields a value.
func (r Rule) Extract(text string) []string {
	m := r.Pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	out := make([]string, 0, len(m)-1)
	for _, s := range m[1:] {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// DefaultRules matches the M-PESA paybill confirmation format, e.g.
//
//	GT87HJ890 Confirmed. Ksh1,500.00 received from JOHN DOE 254712345678 on 5/3/24 at 10:15 AM
//	Account Number 12345 New Utility balance is Ksh20,000.00.
func DefaultRules(currencyLabel string) []Rule {
	if currencyLabel == "" {
		currencyLabel = "Ksh"
	}
	cur := regexp.QuoteMeta(currencyLabel)
	return []Rule{
		{Field: FieldReference, Pattern: regexp.MustCompile(`(?i)^\s*([A-Z0-9]{6,12})\s+confirmed\b`)},
		{Field: FieldAmount, Pattern: regexp.MustCompile(`(?i)` + cur + `\.?\s?([\d,]+(?:\.\d+)?)\s+received\b`), Required: true},
		{Field: FieldAccount, Pattern: regexp.MustCompile(`(?i)\baccount(?:\s+(?:number|no\.?))?\s*[:.]?\s*(\d+)\b`), Required: true},
		{Field: FieldPhone, Pattern: regexp.MustCompile(`\b(254\d{9})\b`)},
		{Field: FieldPayerName, Pattern: regexp.MustCompile(`(?i)received\s+from\s+(.+?)\s+254\d{9}\b`)},
		{Field: FieldOccurredAt, Pattern: regexp.MustCompile(`(?i)\bon\s+(\d{1,2}/\d{1,2}/\d{2,4})\s+at\s+(\d{1,2}:\d{2}\s*[AP]M)\b`)},
	}
}
