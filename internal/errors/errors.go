// Package errors provides standardized error handling for waitroom.
// It defines the error kinds shared by the store, the gateway and the
// display engine, together with helpers for creating, wrapping and
// classifying them.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// Common error constants for frequently occurring errors
var (
	ErrFileNotFound    = NewFileError("file not found", "", FileNotFound, nil)
	ErrInvalidConfig   = NewConfigError("invalid configuration", "", InvalidConfig, nil)
	ErrContentNotFound = NewContentError("content file not found", "", ContentNotFound, nil)
	ErrRendererMissing = New("renderer not ready")
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	FileOperationFailed
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	// Content error kinds
	ContentNotFound
	ContentMalformed
	ContentEmpty
	// Input error kinds
	InvalidInput
	// Remote error kinds
	RemoteRequestFailed
	RemoteBadStatus
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors reading or writing the data directory
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{msg: msg, err: err, kind: kind},
		path:             path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{msg: msg, err: err, kind: kind},
		param:            param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// ContentError represents a problem with a single content file
type ContentError struct {
	ApplicationError
	filename string
}

// NewContentError creates a new content error
func NewContentError(msg string, filename string, kind ErrorKind, err error) *ContentError {
	return &ContentError{
		ApplicationError: ApplicationError{msg: msg, err: err, kind: kind},
		filename:         filename,
	}
}

// Error returns the content error message
func (e *ContentError) Error() string {
	if e.filename != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.filename, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.filename)
	}
	return e.ApplicationError.Error()
}

// Filename returns the content filename associated with the error
func (e *ContentError) Filename() string {
	return e.filename
}

// ValidationError is returned when submitted data fails validation.
type ValidationError struct {
	ApplicationError
	field string
}

// NewValidationError creates a new validation error for field
func NewValidationError(field string, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		ApplicationError: ApplicationError{msg: fmt.Sprintf(format, args...), kind: InvalidInput},
		field:            field,
	}
}

// Error returns the validation error message
func (e *ValidationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("%s: %s", e.field, e.msg)
	}
	return e.msg
}

// Field returns the offending field name
func (e *ValidationError) Field() string {
	return e.field
}

// RemoteError represents a failed call to the display gateway
type RemoteError struct {
	ApplicationError
	endpoint string
	status   int
}

// NewRemoteError creates a new remote error. status is zero when no
// response was received.
func NewRemoteError(msg string, endpoint string, status int, err error) *RemoteError {
	kind := RemoteRequestFailed
	if status != 0 {
		kind = RemoteBadStatus
	}
	return &RemoteError{
		ApplicationError: ApplicationError{msg: msg, err: err, kind: kind},
		endpoint:         endpoint,
		status:           status,
	}
}

// Error returns the remote error message
func (e *RemoteError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("%s: %s: status %d", e.msg, e.endpoint, e.status)
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.msg, e.endpoint, e.err)
	}
	return fmt.Sprintf("%s: %s", e.msg, e.endpoint)
}

// Endpoint returns the request path
func (e *RemoteError) Endpoint() string {
	return e.endpoint
}

// Status returns the HTTP status code, or zero
func (e *RemoteError) Status() int {
	return e.status
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{msg: msg, kind: Unknown}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{msg: fmt.Sprintf(format, args...), kind: Unknown}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{msg: msg, err: err, kind: Unknown}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{msg: fmt.Sprintf(format, args...), err: err, kind: Unknown}
}

// IsNotFound reports whether err is a missing file or missing content file
func IsNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) && fileErr.Kind() == FileNotFound {
		return true
	}
	var contentErr *ContentError
	return errors.As(err, &contentErr) && contentErr.Kind() == ContentNotFound
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// IsContentError checks if the error concerns a content file
func IsContentError(err error) bool {
	var contentErr *ContentError
	return errors.As(err, &contentErr)
}

// IsRemote checks if the error came from a gateway call
func IsRemote(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr)
}
