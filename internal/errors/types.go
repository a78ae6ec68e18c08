package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeMinify     ErrorType = "minify"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeMissingURL     = "ERR_MISSING_URL"
	ErrCodeTemplateRead   = "ERR_TEMPLATE_READ"
	ErrCodeSourceRead     = "ERR_SOURCE_READ"
	ErrCodeTemplateMinify = "ERR_TEMPLATE_MINIFY"
	ErrCodeConfigInvalid  = "ERR_CONFIG_INVALID"
	ErrCodeOutputWrite    = "ERR_OUTPUT_WRITE"
	ErrCodeInternalError  = "ERR_INTERNAL"
)

// InlineError is a structured error raised while inlining templates.
//
// Message is the complete human-readable description and already names the
// file involved. Cause is kept for errors.Is and errors.As.
type InlineError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	FilePath    string
	Offset      int
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *InlineError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *InlineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *InlineError) Is(target error) bool {
	var t *InlineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *InlineError) WithContext(key string, value interface{}) *InlineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *InlineError) WithLocation(filePath string, offset int) *InlineError {
	e.FilePath = filePath
	e.Offset = offset

	return e
}

// NewExtractionError reports a match that could not be decoded. It is never
// recoverable: it points at a pattern bug, not at missing data.
func NewExtractionError(code, message string) *InlineError {
	return &InlineError{
		Type:        ErrorTypeExtraction,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *InlineError {
	return &InlineError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewMinifyError creates a minification error.
func NewMinifyError(code, message string, cause error) *InlineError {
	return &InlineError{
		Type:        ErrorTypeMinify,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *InlineError {
	return &InlineError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *InlineError {
	return &InlineError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Wrap prefixes err with a formatted message, keeping it matchable.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsRecoverable checks if an error may be downgraded to a warning.
func IsRecoverable(err error) bool {
	var ie *InlineError
	if errors.As(err, &ie) {
		return ie.Recoverable
	}

	return false
}

// IsType checks whether err is an InlineError of the given type.
func IsType(err error, t ErrorType) bool {
	var ie *InlineError
	if errors.As(err, &ie) {
		return ie.Type == t
	}

	return false
}
