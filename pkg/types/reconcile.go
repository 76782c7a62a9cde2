package types

// ReconcileOutcome is the terminal state of one notification.
type ReconcileOutcome string

const (
	ReconcileOutcomeDone             ReconcileOutcome = "done"
	ReconcileOutcomeNotifyFailed     ReconcileOutcome = "notify_failed"
	ReconcileOutcomeParseFailed      ReconcileOutcome = "parse_failed"
	ReconcileOutcomeUnmatched        ReconcileOutcome = "unmatched"
	ReconcileOutcomeAlreadyProcessed ReconcileOutcome = "already_processed"
	ReconcileOutcomeSystemError      ReconcileOutcome = "system_error"
)

// Success reports whether the financial outcome counts as applied (or a safe no-op).
func (o ReconcileOutcome) Success() bool {
	switch o {
	case ReconcileOutcomeDone, ReconcileOutcomeNotifyFailed, ReconcileOutcomeAlreadyProcessed:
		return true
	}
	return false
}

// ErrorCategory is the caller-facing failure class.
type ErrorCategory string

const (
	ErrorCategoryNone             ErrorCategory = ""
	ErrorCategoryParseError       ErrorCategory = "parse_error"
	ErrorCategoryUnmatched        ErrorCategory = "unmatched"
	ErrorCategoryAlreadyProcessed ErrorCategory = "already_processed"
	ErrorCategorySystemError      ErrorCategory = "system_error"
)

func (o ReconcileOutcome) Category() ErrorCategory {
	switch o {
	case ReconcileOutcomeParseFailed:
		return ErrorCategoryParseError
	case ReconcileOutcomeUnmatched:
		return ErrorCategoryUnmatched
	case ReconcileOutcomeAlreadyProcessed:
		return ErrorCategoryAlreadyProcessed
	case ReconcileOutcomeSystemError:
		return ErrorCategorySystemError
	}
	return ErrorCategoryNone
}
