package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleForm struct {
	Title   string `form:"title" validate:"required,min=3"`
	Content string `form:"content" validate:"max=5"`
	Secret  string `form:"-" validate:"required"`
}

func TestFieldErrorsUsesFormNames(t *testing.T) {
	err := NewValidator().Struct(sampleForm{Title: "ab", Content: "too long", Secret: "x"})
	fields := FieldErrors(err)
	assert.Equal(t, map[string]string{
		"title":   "is too short (minimum is 3 characters)",
		"content": "is too long (maximum is 5 characters)",
	}, fields)
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, FieldErrors(errors.New("boom")))
	assert.Nil(t, FieldErrors(nil))
}
