package registry

import (
	"errors"
	"fmt"
	"time"
)

// Outcome tags the variant of a Result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAdded
	OutcomeUpdated
	OutcomeNoOperation
	OutcomeArgumentError
	OutcomeCanNotBeRemoved
	OutcomeLockTimeout
	OutcomeError
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAdded:
		return "added"
	case OutcomeUpdated:
		return "updated"
	case OutcomeNoOperation:
		return "no_operation"
	case OutcomeArgumentError:
		return "argument_error"
	case OutcomeCanNotBeRemoved:
		return "can_not_be_removed"
	case OutcomeLockTimeout:
		return "lock_timeout"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Sentinel errors returned by Result.AsError.
var (
	ErrArgument    = errors.New("invalid argument")
	ErrVetoed      = errors.New("removal vetoed")
	ErrLockTimeout = errors.New("registry lock timeout")
	ErrInternal    = errors.New("internal registry error")
)

// Result is returned by every mutating registry operation.
type Result[E any] struct {
	Outcome       Outcome
	Entity        E
	CorrelationID string
	NodeID        string
	Registry      Owner

	// Reason is set for ArgumentError and CanNotBeRemoved.
	Reason string
	// Timeout is set for LockTimeout.
	Timeout time.Duration
	// Err is set for Error.
	Err error
}

// IsSuccess reports whether the operation completed without a negative outcome.
func (r Result[E]) IsSuccess() bool {
	switch r.Outcome {
	case OutcomeSuccess, OutcomeAdded, OutcomeUpdated, OutcomeNoOperation:
		return true
	default:
		return false
	}
}

// AsError maps a negative outcome onto a wrapped sentinel error. Positive outcomes return nil.
func (r Result[E]) AsError() error {
	switch r.Outcome {
	case OutcomeArgumentError:
		return fmt.Errorf("%w: %s", ErrArgument, r.Reason)
	case OutcomeCanNotBeRemoved:
		return fmt.Errorf("%w: %s", ErrVetoed, r.Reason)
	case OutcomeLockTimeout:
		return fmt.Errorf("%w after %s", ErrLockTimeout, r.Timeout)
	case OutcomeError:
		return fmt.Errorf("%w: %w", ErrInternal, r.Err)
	default:
		return nil
	}
}

// String returns a short human readable description of the result.
func (r Result[E]) String() string {
	switch r.Outcome {
	case OutcomeArgumentError, OutcomeCanNotBeRemoved:
		return fmt.Sprintf("%s: %s", r.Outcome, r.Reason)
	case OutcomeLockTimeout:
		return fmt.Sprintf("%s after %s", r.Outcome, r.Timeout)
	case OutcomeError:
		return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	default:
		return r.Outcome.String()
	}
}
