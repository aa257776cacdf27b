package publishers

import (
	"strings"

	"github.com/gazette-app/gazette/internal/shared"
)

var validate = shared.NewValidator()

func normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// Validate checks name and description lengths.
func Validate(in Input) error {
	if fields := shared.FieldErrors(validate.Struct(in)); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func nameTaken() error {
	return &ValidationError{Fields: map[string]string{"name": "has already been taken"}}
}
