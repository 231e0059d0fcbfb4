package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// promptValidator rejects prompts made of whitespace only. The required
// builtin catches the empty string but not "   ".
func promptValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return strings.TrimSpace(val) != ""
}
