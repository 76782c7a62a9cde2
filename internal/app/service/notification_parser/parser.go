package notification_parser

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/debtbook/pkg/types"
)

// dateLayouts are tried in order; the vendor prints day/month/year.
var dateLayouts = []string{
	"2/1/06 3:04 PM",
	"2/1/2006 3:04 PM",
}

// Parser turns raw notification text into a ParsedPayment. It does no I/O and
// holds no mutable state, so one instance is safe for concurrent use.
type Parser struct {
	rules []Rule
	loc   *time.Location
}

type Option func(*Parser)

// WithLocation sets the zone notification timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithRules replaces the extraction rules.
func WithRules(rules []Rule) Option {
	return func(p *Parser) {
		if len(rules) > 0 {
			p.rules = rules
		}
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{rules: DefaultRules(""), loc: time.FixedZone("EAT", 3*3600)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Rules() []Rule { return p.rules }

// Parse extracts amount and account token (required) and the optional reference,
// payer phone, payer name and timestamp.
func (p *Parser) Parse(raw string) (*types.ParsedPayment, error) {
	text := normalizeSpace(raw)
	if text == "" {
		return nil, &ParseError{Reason: ReasonEmptyMessage}
	}

	matches := make(map[Field][]string, len(p.rules))
	for _, rule := range p.rules {
		m := rule.Extract(text)
		if len(m) == 0 || m[0] == "" {
			if rule.Required {
				return nil, &ParseError{Reason: ReasonMissingField, Field: string(rule.Field)}
			}
			continue
		}
		matches[rule.Field] = m
	}

	// a custom rule set may omit the amount or account rule entirely
	amountMatch, ok := matches[FieldAmount]
	if !ok {
		return nil, &ParseError{Reason: ReasonMissingField, Field: string(FieldAmount)}
	}
	accountMatch, ok := matches[FieldAccount]
	if !ok {
		return nil, &ParseError{Reason: ReasonMissingField, Field: string(FieldAccount)}
	}

	amount, err := parseAmount(amountMatch[0])
	if err != nil {
		return nil, err
	}

	out := &types.ParsedPayment{
		Amount:       amount,
		AccountToken: accountMatch[0],
	}
	if m, ok := matches[FieldReference]; ok {
		out.ReferenceID = lo.ToPtr(strings.ToUpper(m[0]))
	}
	if m, ok := matches[FieldPhone]; ok {
		out.PayerPhone = lo.ToPtr(m[0])
	}
	if m, ok := matches[FieldPayerName]; ok {
		out.PayerName = lo.ToPtr(m[0])
	}
	if m, ok := matches[FieldOccurredAt]; ok && len(m) == 2 {
		// an unreadable timestamp is dropped, not fatal
		if ts, ok := p.parseTime(m[0], m[1]); ok {
			out.OccurredAt = &ts
		}
	}
	return out, nil
}

func (p *Parser) parseTime(date, clock string) (time.Time, bool) {
	clock = strings.ToUpper(strings.ReplaceAll(clock, " ", ""))
	if len(clock) > 2 {
		clock = clock[:len(clock)-2] + " " + clock[len(clock)-2:]
	}
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, date+" "+clock, p.loc); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(s, ",", "")
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, &ParseError{Reason: ReasonInvalidAmount, Field: string(FieldAmount), Value: s, Err: err}
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, &ParseError{Reason: ReasonInvalidAmount, Field: string(FieldAmount), Value: s}
	}
	return amount, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
