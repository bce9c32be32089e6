package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Planning and usage errors
const (
	// ErrCodeUnknownTask indicates a task name that is not part of the pipeline.
	ErrCodeUnknownTask ErrorCode = "UNKNOWN_TASK"
	// ErrCodeDuplicateTask indicates two tasks in one pipeline share a name.
	ErrCodeDuplicateTask ErrorCode = "DUPLICATE_TASK"
	// ErrCodeInvalidHParams indicates a task's hyper-parameters failed validation.
	ErrCodeInvalidHParams ErrorCode = "INVALID_HPARAMS"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Structural errors
const (
	// ErrCodeMalformedJobGraph indicates a task produced a job list that
	// violates the dependency rules of the chain.
	ErrCodeMalformedJobGraph ErrorCode = "MALFORMED_JOB_GRAPH"
)

// Execution and persistence errors
const (
	// ErrCodeJobFailed indicates a single job returned an error.
	ErrCodeJobFailed ErrorCode = "JOB_FAILED"
	// ErrCodeTimeout indicates a job exceeded its time budget.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeMetaIO indicates task metadata could not be read or written.
	ErrCodeMetaIO ErrorCode = "META_IO"
	// ErrCodeJobDataIO indicates a job output could not be read or written.
	ErrCodeJobDataIO ErrorCode = "JOB_DATA_IO"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:   true,
	ErrCodeMetaIO:    true,
	ErrCodeJobDataIO: true,
	ErrCodeInternal:  false,
}

// IsRetryableCode returns true if the error code indicates a transient failure.
// The scheduler never retries on its own; the flag is informational for callers.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
