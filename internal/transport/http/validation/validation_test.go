package validation

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupBody struct {
	Name     string `json:"name" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type pageQuery struct {
	Limit *int `form:"limit" binding:"omitempty,min=0,max=100"`
}

func byField(fes []FieldError) map[string]FieldError {
	m := make(map[string]FieldError, len(fes))
	for _, fe := range fes {
		m[fe.Field] = fe
	}
	return m
}

func TestDetails_WireNamesAndMessages(t *testing.T) {
	require.NoError(t, Setup())
	require.NoError(t, Setup())
	assert.True(t, binding.EnableDecoderDisallowUnknownFields)

	err := binding.Validator.ValidateStruct(&signupBody{Name: "Al", Email: "nope"})
	require.Error(t, err)

	got := byField(Details(err))
	require.Len(t, got, 3)

	assert.Equal(t, FieldError{Field: "name", Rule: "min", Param: "3", Message: "name must be at least 3 characters long"}, got["name"])
	assert.Equal(t, "Please provide a valid email address", got["email"].Message)
	assert.Equal(t, "required", got["password"].Rule)
	assert.Equal(t, "password is required", got["password"].Message)
}

func TestDetails_FormNamesAndNumericMin(t *testing.T) {
	require.NoError(t, Setup())
	neg := -1

	err := binding.Validator.ValidateStruct(&pageQuery{Limit: &neg})
	got := Details(err)
	require.Len(t, got, 1)
	assert.Equal(t, "limit", got[0].Field)
	assert.Equal(t, "limit must be 0 or greater", got[0].Message)
}

func TestDetails_NonValidationError(t *testing.T) {
	assert.Nil(t, Details(assert.AnError))
}
