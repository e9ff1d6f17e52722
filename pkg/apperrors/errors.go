package apperrors

import "errors"

var (
	// ErrScopeMissing indicates a caller invoked the engine without a complete
	// tenant/project scope. Always a caller bug, never recovered.
	ErrScopeMissing = errors.New("tenant/project scope missing")

	// ErrNotFoundInScope indicates an artifact id that does not exist under the
	// caller's tenant/project. Deliberately indistinguishable from the id not
	// existing at all.
	ErrNotFoundInScope = errors.New("not found in scope")

	// ErrLevelMismatch indicates a process hierarchy node whose children are not
	// exactly one level below it. Signals corrupt hierarchy data.
	ErrLevelMismatch = errors.New("process level mismatch between parent and child")

	// ErrCycleDetected indicates a cycle in the requirement parent/child
	// hierarchy.
	ErrCycleDetected = errors.New("cycle detected in requirement hierarchy")

	// ErrConcurrentUpdate indicates the optimistic version check failed twice in
	// a row for the same fit status write.
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
)
