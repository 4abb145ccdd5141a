package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"shelfkeeper/internal/errors"
)

func TestError_IsMatchesOnCode(t *testing.T) {
	err := errors.NotFoundf("book %d not found", 7)

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.False(t, errors.Is(err, errors.ErrUnavailable))
	assert.Equal(t, "book 7 not found", err.Error())
}

func TestError_WrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("return failed: %w", errors.Unavailablef("book %d is on loan", 3))

	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Equal(t, errors.CodeUnavailable, errors.CodeOf(err))
}

func TestError_WithCause(t *testing.T) {
	cause := stderrors.New("member does not hold book")
	err := errors.NotFoundf("return rejected").WithCause(cause)

	assert.Equal(t, "return rejected: member does not hold book", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, errors.Code(""), errors.CodeOf(stderrors.New("boom")))
	assert.Equal(t, errors.Code(""), errors.CodeOf(nil))
}

func TestError_WithDetails(t *testing.T) {
	err := errors.ValidationWithDetails("validation failed", map[string]string{"email": "is required"})

	assert.Equal(t, errors.CodeValidation, err.Code)
	assert.Equal(t, map[string]string{"email": "is required"}, err.WithDetails(err.Details).Details)
}
