package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	t.Run("conflict is not validation", func(t *testing.T) {
		err := fmt.Errorf("update issue 7: %w", ErrConcurrentModification)
		assert.True(t, IsConflict(err))
		assert.False(t, IsValidation(err))
		assert.False(t, IsAuthorization(err))
	})

	t.Run("field error unwraps to sentinel", func(t *testing.T) {
		err := NewFieldError("due_date", ErrMissingRequiredField)
		assert.True(t, errors.Is(err, ErrMissingRequiredField))
		assert.True(t, IsValidation(err))
		assert.Equal(t, "due_date: required field missing", err.Error())

		var fe *FieldError
		assert.True(t, errors.As(err, &fe))
		assert.Equal(t, "due_date", fe.Field)
	})

	t.Run("authorization error", func(t *testing.T) {
		err := &AuthorizationError{UserID: 3, ProjectID: 9, Permission: "edit_issues"}
		assert.True(t, IsAuthorization(err))
		assert.Contains(t, err.Error(), "edit_issues")
		assert.False(t, IsValidation(err))
	})

	t.Run("relation errors are validation", func(t *testing.T) {
		for _, err := range []error{ErrSelfRelationNotAllowed, ErrCyclicDependency, ErrDuplicateRelation} {
			assert.True(t, IsValidation(err), err.Error())
		}
	})

	t.Run("data integrity is neither", func(t *testing.T) {
		assert.False(t, IsValidation(ErrDataIntegrity))
		assert.False(t, IsConflict(ErrDataIntegrity))
		assert.True(t, IsNotFound(fmt.Errorf("relation 4: %w", ErrNotFound)))
	})
}
