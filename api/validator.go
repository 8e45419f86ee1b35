package api

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var hexBytesPattern = regexp.MustCompile(`^(0[xX])?([0-9a-fA-F]{2})+$`)

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	validate := validator.New()
	_ = validate.RegisterValidation("hexbytes", func(fl validator.FieldLevel) bool {
		return hexBytesPattern.MatchString(fl.Field().String())
	})
	return &requestValidator{validate: validate}
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}
