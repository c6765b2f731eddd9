// Package core holds the error taxonomy shared by the permission, workflow and
// relation engines and the request layer that translates it.
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorization is returned when the actor lacks the permission for an action.
	ErrAuthorization = errors.New("permission denied")

	ErrInvalidTransition      = errors.New("status transition not allowed")
	ErrMissingRequiredField   = errors.New("required field missing")
	ErrReadonlyFieldViolation = errors.New("field is read-only")
	ErrUnknownField           = errors.New("unknown field")
	ErrInvalidFieldValue      = errors.New("invalid field value")

	ErrSelfRelationNotAllowed = errors.New("issue cannot be related to itself")
	ErrCyclicDependency       = errors.New("relation would create a circular dependency")
	ErrDuplicateRelation      = errors.New("relation already exists")
	ErrInvalidRelationType    = errors.New("invalid relation type")
	ErrCrossProjectRelation   = errors.New("issues belong to different projects")

	ErrUnknownPermission = errors.New("unknown permission")
	ErrBuiltinRoleRename = errors.New("builtin role cannot be renamed")
	ErrBuiltinRoleDelete = errors.New("builtin role cannot be deleted")
	ErrRoleInUse         = errors.New("role is in use and cannot be deleted")

	// ErrConcurrentModification means the row changed underneath the caller.
	// Callers may retry with fresh state; the write was not applied.
	ErrConcurrentModification = errors.New("concurrent modification")

	ErrNotFound = errors.New("not found")

	// ErrDataIntegrity signals an inconsistency in stored rows, such as a
	// member row pointing at a role that no longer exists.
	ErrDataIntegrity = errors.New("data integrity error")
)

var validationErrors = []error{
	ErrInvalidTransition,
	ErrMissingRequiredField,
	ErrReadonlyFieldViolation,
	ErrUnknownField,
	ErrInvalidFieldValue,
	ErrSelfRelationNotAllowed,
	ErrCyclicDependency,
	ErrDuplicateRelation,
	ErrInvalidRelationType,
	ErrCrossProjectRelation,
	ErrUnknownPermission,
	ErrBuiltinRoleRename,
	ErrBuiltinRoleDelete,
	ErrRoleInUse,
}

// FieldError ties a validation failure to the issue field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// NewFieldError wraps err with the offending field name.
func NewFieldError(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// AuthorizationError records which permission was missing for which project.
type AuthorizationError struct {
	UserID     int
	ProjectID  int
	Permission string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %d lacks %q in project %d: %v", e.UserID, e.Permission, e.ProjectID, ErrAuthorization)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorization }

// IsConflict reports whether err is a concurrency conflict the caller may retry.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsValidation reports whether err is a user-correctable validation failure.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthorization reports whether err is a permission denial.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrAuthorization)
}

// IsNotFound reports whether err refers to a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
