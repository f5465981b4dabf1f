package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"conflict":     {NewConflictError("taken", nil), 409},
		"validation":   {NewValidationError("bad", nil), 400},
		"invalid":      {NewInvalidRequestError("bad id", nil), 400},
		"not found":    {NewNotFoundError("gone", nil), 404},
		"unauthorized": {NewUnauthorizedError("no", nil), 401},
		"database":     {NewDatabaseError("db", errors.New("disk full")), 500},
		"wrapped":      {fmt.Errorf("join: %w", NewConflictError("taken", nil)), 409},
		"plain":        {errors.New("boom"), 500},
		"nil":          {nil, 500},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}

func TestGetHumanReadableMessage_HidesInternalErrors(t *testing.T) {
	assert.Equal(t, "taken", GetHumanReadableMessage(NewConflictError("taken", errors.New("pq: duplicate key"))))
	assert.Equal(t, genericMessage, GetHumanReadableMessage(errors.New("pq: relation does not exist")))
	assert.Equal(t, genericMessage, GetHumanReadableMessage(nil))
}

func TestAppError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewDatabaseError("save failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DATABASE_ERROR: save failed: disk full", err.Error())
	assert.Equal(t, "CONFLICT: taken", NewConflictError("taken", nil).Error())
}

func TestGetDetails(t *testing.T) {
	fields := []ValidationErrorResponse{{Field: "email", Message: "Invalid email format"}}

	assert.Equal(t, fields, GetDetails(NewValidationError("bad", fields)))
	assert.Nil(t, GetDetails(errors.New("plain")))
	assert.True(t, IsValidation(NewValidationError("bad", fields)))
	assert.Equal(t, "", GetErrorType(nil))
	assert.Equal(t, ErrorTypeUnknown, GetErrorType(errors.New("plain")))
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(errors.New("UNIQUE constraint failed: waitlist_entries.email")))
	assert.True(t, IsDuplicateKeyError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_email"`)))
	assert.True(t, IsDuplicateKeyError(errors.New("Error 1062 (23000): Duplicate entry 'a@b.io' for key 'email'")))
	assert.False(t, IsDuplicateKeyError(errors.New("connection refused")))
	assert.False(t, IsDuplicateKeyError(nil))
}
