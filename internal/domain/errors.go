package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrClientInactive       = errors.New("client is not active")
	ErrQuotaExceeded        = errors.New("usage quota exceeded")
	ErrConfirmationRequired = errors.New("confirmation text required")
	ErrReasonTooShort       = errors.New("deletion reason too short")
	ErrAlreadyMarked        = errors.New("account already marked for deletion")
	ErrNotMarked            = errors.New("account is not marked for deletion")
	ErrGracePeriodExpired   = errors.New("cancellation grace period expired")
	ErrPurgeConflict        = errors.New("user is not in a purgeable state")
)

// ErrorKind classifies errors so callers can branch on category instead of
// matching message strings.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindStateConflict
	KindCapacity
	KindTransactional
)

// Kind maps an error to its taxonomy bucket.
func Kind(err error) ErrorKind {
	var pe *PurgeError
	switch {
	case errors.Is(err, ErrConfirmationRequired), errors.Is(err, ErrReasonTooShort):
		return KindValidation
	case errors.Is(err, ErrClientInactive), errors.Is(err, ErrAlreadyMarked),
		errors.Is(err, ErrNotMarked), errors.Is(err, ErrGracePeriodExpired),
		errors.Is(err, ErrPurgeConflict):
		return KindStateConflict
	case errors.Is(err, ErrQuotaExceeded):
		return KindCapacity
	case errors.As(err, &pe):
		return KindTransactional
	default:
		return KindUnknown
	}
}

// ClientInactiveError carries the client's actual status so the caller can
// say whether it is pending, suspended, or revoked.
type ClientInactiveError struct {
	Status ClientStatus
}

func (e *ClientInactiveError) Error() string {
	return fmt.Sprintf("client is not active (status %s)", e.Status)
}

func (e *ClientInactiveError) Is(target error) bool { return target == ErrClientInactive }

// QuotaExceededError carries the reset date so the caller knows when capacity
// returns.
type QuotaExceededError struct {
	ResetDate time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("usage quota exceeded, resets at %s", e.ResetDate.Format(time.RFC3339))
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// GracePeriodExpiredError carries the date the cancellation window closed.
type GracePeriodExpiredError struct {
	ExpiredAt time.Time
}

func (e *GracePeriodExpiredError) Error() string {
	return fmt.Sprintf("cancellation grace period expired at %s", e.ExpiredAt.Format(time.RFC3339))
}

func (e *GracePeriodExpiredError) Is(target error) bool { return target == ErrGracePeriodExpired }

// PurgeError wraps a failure inside the transactional purge with the step that
// failed. The whole transaction is rolled back, so the purge is retryable.
type PurgeError struct {
	Step string
	Err  error
}

func (e *PurgeError) Error() string { return fmt.Sprintf("purge step %s: %v", e.Step, e.Err) }

func (e *PurgeError) Unwrap() error { return e.Err }
