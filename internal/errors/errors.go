package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrMissingBus       = errors.New("no bus selected: use --bus system or --bus session")
	ErrInvalidBus       = errors.New("unknown bus type")
	ErrMissingService   = errors.New("no service name given")
	ErrMissingPath      = errors.New("no object path given")
	ErrMissingInterface = errors.New("no interface name given")
	ErrInvalidName      = errors.New("invalid D-Bus name")
	ErrInvalidPath      = errors.New("invalid D-Bus object path")
	ErrInvalidColor     = errors.New("color mode must be one of auto, always, never")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput        ErrorType = "input"
	ErrorTypeConnection   ErrorType = "connection"
	ErrorTypeSubscription ErrorType = "subscription"
	ErrorTypePayload      ErrorType = "payload"
	ErrorTypeConversion   ErrorType = "conversion"
	ErrorTypeQuery        ErrorType = "query"
	ErrorTypeOutput       ErrorType = "output"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewInputError creates a new error related to flags or configuration
func NewInputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInput,
		Message: message,
		Err:     err,
	}
}

// NewConnectionError creates a new error related to connecting to the bus
// or resolving the target object
func NewConnectionError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConnection,
		Message: message,
		Err:     err,
	}
}

// NewSubscriptionError creates a new error related to registering for signals
func NewSubscriptionError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeSubscription,
		Message: message,
		Err:     err,
	}
}

// NewPayloadError creates a new error related to reading a signal body
func NewPayloadError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypePayload,
		Message: message,
		Err:     err,
	}
}

// NewConversionError creates a new error related to variant to JSON conversion
func NewConversionError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConversion,
		Message: message,
		Err:     err,
	}
}

// NewQueryError creates a new error related to compiling or running the jq query
func NewQueryError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeQuery,
		Message: message,
		Err:     err,
	}
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeOutput,
		Message: message,
		Err:     err,
	}
}

// UserFriendlyError returns a user-friendly error message. The wrapped
// cause chain is always included so the operator can see why a stage failed.
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		prefix := "Error"
		switch appErr.Type {
		case ErrorTypeInput:
			prefix = "Input error"
		case ErrorTypeConnection:
			prefix = "Bus connection error"
		case ErrorTypeSubscription:
			prefix = "Subscription error"
		case ErrorTypePayload:
			prefix = "Signal payload error"
		case ErrorTypeConversion:
			prefix = "Conversion error"
		case ErrorTypeQuery:
			prefix = "Query error"
		case ErrorTypeOutput:
			prefix = "Output error"
		}
		if appErr.Err != nil {
			return fmt.Sprintf("%s: %s: %v", prefix, appErr.Message, appErr.Err)
		}
		return fmt.Sprintf("%s: %s", prefix, appErr.Message)
	}

	if errors.Is(err, ErrMissingBus) {
		return "Error: No bus selected. Use --bus system or --bus session."
	}
	if errors.Is(err, ErrInvalidColor) {
		return "Error: Color mode must be one of auto, always or never."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}
