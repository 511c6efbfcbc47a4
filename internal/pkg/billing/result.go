package billing

// Result is the outcome of a single event handler. Handler failures are
// values, not propagated errors: the webhook endpoint inspects Retryable to
// decide between acknowledging (logged, manual replay) and returning 5xx so
// the provider retries.
type Result struct {
	err       error
	Retryable bool
}

func (r Result) Success() bool {
	return r.err == nil
}

func (r Result) Failure() bool {
	return r.err != nil
}

func (r Result) Error() error {
	return r.err
}

func (r Result) ErrorMsg() string {
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}

// OK is the successful handler outcome.
func OK() Result {
	return Result{}
}

// Failed wraps a non-retryable failure: acknowledged to the provider,
// resolved by manual replay.
func Failed(err error) Result {
	return Result{err: err}
}

// FailedRetryable wraps a plausibly transient failure (datastore unreachable)
// that should surface as a 5xx so the provider retries.
func FailedRetryable(err error) Result {
	return Result{err: err, Retryable: true}
}
