package http

import "github.com/go-playground/validator/v10"

type selfValidating interface {
	Validate() error
}

// RequestValidator is the echo.Validator of the API. Requests that know how
// to check themselves are trusted to do so; everything else goes through
// struct tags.
type RequestValidator struct {
	validator *validator.Validate
}

// NewRequestValidator creates a request validator
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validator: validator.New()}
}

// Validate implements echo.Validator
func (v *RequestValidator) Validate(i interface{}) error {
	if sv, ok := i.(selfValidating); ok {
		return sv.Validate()
	}
	return v.validator.Struct(i)
}
