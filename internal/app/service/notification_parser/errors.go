package notification_parser

import (
	"errors"
	"fmt"
)

const (
	ReasonEmptyMessage  = "empty message"
	ReasonMissingField  = "missing required field"
	ReasonInvalidAmount = "invalid amount"
)

// ParseError is returned for any notification the parser cannot turn into a
// complete ParsedPayment. No partial result accompanies it.
type ParseError struct {
	Reason string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Reason, e.Field)
	}
	if e.Value != "" {
		msg = fmt.Sprintf("%s='%s'", msg, e.Value)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// AsParseError unwraps err into a *ParseError.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
