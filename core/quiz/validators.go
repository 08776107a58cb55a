package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

var (
	testTypeTag  = "testtype"
	testTypeText = "invalid test type"

	gradingMethodTag  = "gradingmethod"
	gradingMethodText = "invalid grading method"

	questionTypeTag  = "questiontype"
	questionTypeText = "invalid question type"
)

// InitValidators registers this package's custom validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(testTypeTag, oneOfValidation(AllTestTypes))
	core.RegisterCustomTranslation(validate, translator, testTypeTag, testTypeText)

	_ = validate.RegisterValidation(gradingMethodTag, oneOfValidation(AllGradingMethods))
	core.RegisterCustomTranslation(validate, translator, gradingMethodTag, gradingMethodText)

	_ = validate.RegisterValidation(questionTypeTag, oneOfValidation(AllQuestionTypes))
	core.RegisterCustomTranslation(validate, translator, questionTypeTag, questionTypeText)
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}
