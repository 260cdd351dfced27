package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkInPayload struct {
	ClassID string `validate:"required"`
	Code    string `validate:"required,len=6,numeric"`
}

func TestValidationListsFields(t *testing.T) {
	err := validator.New().Struct(checkInPayload{Code: "12"})
	require.Error(t, err)

	appErr := Validation(err, "invalid check-in payload")

	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, map[string]string{"class_id": "required", "code": "len"}, appErr.Fields)
}

func TestValidationWithoutValidatorErrors(t *testing.T) {
	appErr := Validation(fmt.Errorf("bad json"), "invalid payload")
	assert.Nil(t, appErr.Fields)
	assert.Equal(t, "invalid payload: bad json", appErr.Error())
}

func TestFromErrorAndHasCode(t *testing.T) {
	wrapped := fmt.Errorf("check in: %w", Clone(ErrAlreadyCheckedIn, ""))

	assert.True(t, HasCode(wrapped, ErrAlreadyCheckedIn))
	assert.False(t, HasCode(wrapped, ErrInvalidCheckInCode))
	assert.Equal(t, http.StatusConflict, FromError(wrapped).Status)

	internal := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, internal.Code)
	assert.Nil(t, FromError(nil))
}

func TestCloneKeepsSentinel(t *testing.T) {
	clone := Clone(ErrNoData, "file has no rows")
	assert.Equal(t, "file has no rows", clone.Message)
	assert.Equal(t, "no data", ErrNoData.Message)
}
