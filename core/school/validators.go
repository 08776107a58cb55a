package school

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

var (
	schoolTypeTag  = "schooltype"
	schoolTypeText = "invalid school type"
)

// InitValidators registers this package's custom validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(schoolTypeTag, schoolTypeValidation)
	core.RegisterCustomTranslation(validate, translator, schoolTypeTag, schoolTypeText)
}

func schoolTypeValidation(fl validator.FieldLevel) bool {
	st := fl.Field().String()
	for _, t := range AllTypes {
		if st == t {
			return true
		}
	}
	return false
}
