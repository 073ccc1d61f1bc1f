// Package errors defines the structured error type used across the asset
// pipeline. Every task failure is reported as a PipelineError so the CLI,
// the watch loop and the dev server can describe it the same way.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeTransform  ErrorType = "transform"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeTransformFailed  = "ERR_TRANSFORM_FAILED"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodePermissionDenied = "ERR_PERMISSION_DENIED"
	ErrCodeWriteFailed      = "ERR_WRITE_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeTaskNotFound     = "ERR_TASK_NOT_FOUND"
	ErrCodeIncludeCycle     = "ERR_INCLUDE_CYCLE"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// PipelineError is a structured error type with task and file context.
type PipelineError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Task        string
	FilePath    string
	Transformer string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Task != "" {
		parts = append(parts, "task:"+e.Task)
	}

	if e.Transformer != "" {
		parts = append(parts, "transformer:"+e.Transformer)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithTask attaches the task name. An existing task name is kept so the
// innermost task wins when errors cross task boundaries.
func (e *PipelineError) WithTask(task string) *PipelineError {
	if e.Task == "" {
		e.Task = task
	}

	return e
}

// WithFile attaches the source file the failure relates to.
func (e *PipelineError) WithFile(path string) *PipelineError {
	if e.FilePath == "" {
		e.FilePath = path
	}

	return e
}

// WithTransformer attaches the transformer name.
func (e *PipelineError) WithTransformer(name string) *PipelineError {
	e.Transformer = name

	return e
}

// NewTransformError creates an error for malformed input rejected by a
// content transformer.
func NewTransformError(transformer, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeTransform,
		Code:        ErrCodeTransformFailed,
		Message:     message,
		Cause:       cause,
		Transformer: transformer,
	}
}

// NewIOError creates a filesystem error. The code is derived from the cause
// when it is a well known fs error.
func NewIOError(message string, cause error) *PipelineError {
	code := ErrCodeWriteFailed
	switch {
	case errors.Is(cause, fs.ErrNotExist):
		code = ErrCodeFileNotFound
	case errors.Is(cause, fs.ErrPermission):
		code = ErrCodePermissionDenied
	}

	return &PipelineError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// Wrap converts err into a PipelineError tagged with task. Errors that are
// already PipelineErrors keep their type; anything else is classified as
// I/O when it wraps an fs error and as internal otherwise.
func Wrap(err error, task string) error {
	if err == nil {
		return nil
	}

	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.WithTask(task)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return NewIOError(pathErr.Op+" failed", err).WithFile(pathErr.Path).WithTask(task)
	}

	return NewInternalError("task failed", err).WithTask(task)
}

// IsType reports whether err is a PipelineError of the given type.
func IsType(err error, t ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}

// TaskOf returns the task name recorded on err, if any.
func TaskOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Task
	}

	return ""
}
