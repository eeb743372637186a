// Package errors provides custom error types for the virt-who harness.
//
// Each error type includes a constructor, Error() method, and a type-checking
// helper using errors.As for proper error unwrapping.
//
// # Error Types Overview
//
//	┌────────────────────────┬─────────┬──────────────────────────────────────┐
//	│ Error Type             │ Fatal   │ Description                          │
//	├────────────────────────┼─────────┼──────────────────────────────────────┤
//	│ TransientBackendError  │ no      │ 429 throttling / 500 from backend    │
//	│ RunExhaustedError      │ yes     │ All launch attempts failed           │
//	│ ProcessCleanupError    │ yes     │ Agent process survived stop + kill   │
//	└────────────────────────┴─────────┴──────────────────────────────────────┘
//
// TransientBackendError never reaches callers of the runner: it is consumed
// by the bounded retry loop and only surfaces, after the attempt cap, as a
// RunExhaustedError.
//
// Parse-level problems (malformed JSON blocks, missing markers) are not
// errors at all; the analyzer logs a warning and degrades the affected
// result field to its default.
//
// # Type Checking Pattern
//
// All error types provide Is* helper functions that use errors.As
// for proper error chain unwrapping:
//
//	if errors.IsRunExhaustedError(err) {
//	    // the run is fatal, no point retrying at a higher level
//	}
package errors
