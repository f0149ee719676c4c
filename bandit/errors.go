package bandit

import "fmt"

// ConfigError reports an invalid construction parameter. It is returned at
// construction time and never recovered from.
type ConfigError struct {
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// NumericError reports a degenerate statistic, such as a design matrix that
// failed to invert. The λI regularization invariant makes this structurally
// impossible, so any occurrence is an invariant violation: the epoch that
// produced it must be aborted, never silently masked.
type NumericError struct {
	Op  string
	Err error
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("numeric degeneracy in %s: %v", e.Op, e.Err)
}

func (e *NumericError) Unwrap() error { return e.Err }
