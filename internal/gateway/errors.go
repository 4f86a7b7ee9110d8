package gateway

// ValidationError reports missing or empty input, rejected before any
// database work happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// PolicyViolationError reports a statement rejected by the read-only policy.
// No connection is acquired for a rejected statement.
type PolicyViolationError struct {
	Detail string
}

func (e *PolicyViolationError) Error() string {
	return "read-only mode: " + e.Detail
}

// QueryError wraps a database-side failure. The driver message is passed
// through verbatim; the gateway does not categorize upstream errors.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func upstream(err error) error {
	return &QueryError{Err: err}
}
