package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ProviderError represents a failed quote fetch. Throttled marks a
// provider-signaled rate limit, which warrants a longer wait than a plain
// error. Both are always retriable.
type ProviderError struct {
	Op        string // operation that failed (e.g. "fetch", "decode")
	Err       error  // underlying error
	Throttled bool
}

func (e *ProviderError) Error() string {
	if e.Throttled {
		return e.Op + " (throttled): " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ProviderError) IsRetriable() bool {
	return true
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a generic quote fetch error
func NewProviderError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Err: err}
}

// NewThrottledError creates a provider rate-limit error
func NewThrottledError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Err: err, Throttled: true}
}

// IsThrottled reports whether err carries a provider throttle signal.
func IsThrottled(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Throttled
	}
	return false
}

var (
	// ErrInvalidOrder is returned for non-positive price or quantity.
	// Rejected before any book mutation. Not retriable.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrUnknownSymbol is returned when a symbol fails caller-side
	// tradability validation.
	ErrUnknownSymbol = errors.New("unknown symbol")
)
