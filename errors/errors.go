package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation may succeed when attempted again.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// UnknownTask reports a task name that the pipeline does not contain.
func UnknownTask(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownTask, Message: fmt.Sprintf("task %q is not part of the pipeline", name),
		Details: map[string]any{"task": name},
	}
}

// DuplicateTask reports two tasks registered under the same name.
func DuplicateTask(name string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateTask, Message: fmt.Sprintf("task %q appears more than once", name),
		Details: map[string]any{"task": name},
	}
}

// InvalidHParams reports hyper-parameters rejected by validation.
func InvalidHParams(taskName string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInvalidHParams, Message: fmt.Sprintf("invalid hyper-parameters for task %q", taskName),
		Details: map[string]any{"task": taskName}, Cause: cause,
	}
}

// MalformedJobGraph reports a job list that breaks the chain's dependency rules.
func MalformedJobGraph(taskName, jobName, reason string) *AppError {
	return &AppError{
		Code: ErrCodeMalformedJobGraph, Message: fmt.Sprintf("task %q job %q: %s", taskName, jobName, reason),
		Details: map[string]any{"task": taskName, "job": jobName},
	}
}

// JobFailed wraps an error returned by a single job.
func JobFailed(taskName, jobName string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeJobFailed, Message: fmt.Sprintf("job %q of task %q failed", jobName, taskName),
		Details: map[string]any{"task": taskName, "job": jobName}, Cause: cause,
	}
}

// Timeout reports a job that ran past its deadline.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s timed out", operation),
		Retryable: true, Details: map[string]any{"operation": operation},
	}
}

// MetaIO wraps a failure to read or persist task metadata.
func MetaIO(taskName string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeMetaIO, Message: fmt.Sprintf("metadata of task %q could not be accessed", taskName),
		Retryable: true, Details: map[string]any{"task": taskName}, Cause: cause,
	}
}

// JobDataIO wraps a failure to read or persist a job output.
func JobDataIO(taskName, jobName string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeJobDataIO, Message: fmt.Sprintf("output of job %q in task %q could not be accessed", jobName, taskName),
		Retryable: true, Details: map[string]any{"task": taskName, "job": jobName}, Cause: cause,
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("the requested %s was not found", resource),
		Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// Internal creates a new AppError for an unexpected internal failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		Cause: cause,
	}
}

// --- Inspection ---

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether any AppError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		appErr, ok := AsAppError(err)
		if !ok {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Wrap converts any error into an *AppError. AppErrors pass through unchanged,
// anything else becomes an internal error with the original as cause.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}
