package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Investment-specific errors

var (
	// ErrActiveInvestmentExists indicates the user already has an active investment
	ErrActiveInvestmentExists = errors.New("user already has an active investment")

	// ErrNoActiveInvestment indicates the user has no active investment
	ErrNoActiveInvestment = errors.New("no active investment found")

	// ErrSameStrategy indicates a switch targeting the currently active strategy
	ErrSameStrategy = errors.New("already invested in this strategy")

	// ErrActionTerminal indicates a terminal agent action was marked twice
	ErrActionTerminal = errors.New("agent action already in terminal state")
)

// Integration errors

var (
	// ErrAgentUnavailable indicates the remote execution service rejected or
	// never acknowledged a dispatch
	ErrAgentUnavailable = errors.New("agent service unavailable")

	// ErrChainUnavailable indicates an on-chain balance read failed
	ErrChainUnavailable = errors.New("chain rpc unavailable")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// New creates a new error with the given message
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
