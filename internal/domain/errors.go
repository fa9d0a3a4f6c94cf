package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ValidationError is returned when caller input is missing or malformed.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	if e.Reason == "" {
		return "invalid input"
	}
	return e.Reason
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

// UnauthenticatedError means the caller could not be identified.
type UnauthenticatedError struct {
	Reason string
}

func (e UnauthenticatedError) Error() string {
	if e.Reason == "" {
		return "unauthenticated"
	}
	return e.Reason
}

func (e UnauthenticatedError) Is(target error) bool {
	_, ok := target.(UnauthenticatedError)
	if ok {
		return true
	}
	_, ok = target.(*UnauthenticatedError)
	return ok
}

// ForbiddenError means the caller is known but not allowed to perform the action.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return e.Reason
}

func (e ForbiddenError) Is(target error) bool {
	_, ok := target.(ForbiddenError)
	if ok {
		return true
	}
	_, ok = target.(*ForbiddenError)
	return ok
}

// ConflictError reports a uniqueness violation.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	if e.Reason == "" {
		return "conflict"
	}
	return e.Reason
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// UpstreamError wraps a failure of the voting contract or its node.
type UpstreamError struct {
	Op  string
	Err error
}

func (e UpstreamError) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return "upstream failure"
	case e.Err == nil:
		return fmt.Sprintf("upstream %s failed", e.Op)
	case e.Op == "":
		return fmt.Sprintf("upstream failure: %v", e.Err)
	}
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e UpstreamError) Unwrap() error {
	return e.Err
}

func (e UpstreamError) Is(target error) bool {
	_, ok := target.(UpstreamError)
	if ok {
		return true
	}
	_, ok = target.(*UpstreamError)
	return ok
}

// InternalError is an invariant breach that is not the caller's fault.
type InternalError struct {
	Reason string
}

func (e InternalError) Error() string {
	if e.Reason == "" {
		return "internal error"
	}
	return e.Reason
}

func (e InternalError) Is(target error) bool {
	_, ok := target.(InternalError)
	if ok {
		return true
	}
	_, ok = target.(*InternalError)
	return ok
}

// Sentinels for errors.Is matching.
var (
	ErrNotFound        = NotFoundError{}
	ErrValidation      = ValidationError{}
	ErrUnauthenticated = UnauthenticatedError{}
	ErrForbidden       = ForbiddenError{}
	ErrConflict        = ConflictError{}
	ErrUpstream        = UpstreamError{}
	ErrInternal        = InternalError{}
)
