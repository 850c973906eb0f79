package validator

import (
	"github.com/go-playground/validator/v10"
)

// EchoValidator adapts go-playground/validator to echo's Validator interface
type EchoValidator struct {
	validate *validator.Validate
}

// New returns a validator ready to be set as echo's Validator
func New() *EchoValidator {
	return &EchoValidator{validate: validator.New()}
}

// Validate checks the struct tags on i
func (ev *EchoValidator) Validate(i interface{}) error {
	return ev.validate.Struct(i)
}
