// Package errors provides the structured error type used across taskchain.
//
// Every error that crosses a package boundary is an *AppError carrying a
// machine-readable ErrorCode. Callers branch on the code with IsCode instead
// of matching message text:
//
//	if errors.IsCode(err, errors.ErrCodeMalformedJobGraph) {
//	    // the task implementation produced an invalid job list
//	}
package errors
